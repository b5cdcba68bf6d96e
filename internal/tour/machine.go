// Package tour implements the guided tour engine: the gating event bus and
// the state machine that walks a user through a tour's steps.
package tour

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bilancio/internal/core"
)

// FallbackContent is shown when a step's content id cannot be resolved.
var FallbackContent = core.StepContent{
	Title: "Step",
	Short: "Continue to the next step.",
}

type (
	// Catalog is the read-only source of tour definitions and step content.
	Catalog interface {
		Tour(id string) (core.Tour, bool)
		Tours() []core.Tour
		Content(id string) (core.StepContent, bool)
	}

	// StateStore persists the user's help state.
	StateStore interface {
		Load(ctx context.Context) (core.UserHelpState, error)
		Save(ctx context.Context, state core.UserHelpState) error
	}

	// AnalyticsFunc receives lifecycle notifications after the machine lock
	// is released. It must not block.
	AnalyticsFunc func(core.LifecycleEvent)
)

// Options configures a Machine. Catalog is required.
type Options struct {
	Catalog   Catalog
	Bus       *Bus
	Store     StateStore
	Analytics AnalyticsFunc
	Logger    *slog.Logger
	Now       func() time.Time
}

// Machine drives one user's tour. All methods are safe for concurrent use;
// transitions are serialized.
type Machine struct {
	mu        sync.Mutex
	catalog   Catalog
	bus       *Bus
	store     StateStore
	analytics AnalyticsFunc
	logger    *slog.Logger
	now       func() time.Time

	help        core.UserHelpState
	state       State
	tour        core.Tour
	index       int
	waitingFor  string
	unsubscribe func()
	// generation changes on every step entry; a gating listener from an
	// older generation is stale and must not advance the tour.
	generation uint64
	// queued holds lifecycle events raised under mu; unlock delivers them.
	queued []core.LifecycleEvent
}

// NewMachine builds an idle machine and loads the persisted help state.
// Load failures fall back to an empty state.
func NewMachine(ctx context.Context, opts Options) *Machine {
	m := &Machine{
		catalog:   opts.Catalog,
		bus:       opts.Bus,
		store:     opts.Store,
		analytics: opts.Analytics,
		logger:    opts.Logger,
		now:       opts.Now,
		help:      core.NewUserHelpState(),
	}
	if m.bus == nil {
		m.bus = NewBus()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.store != nil {
		state, err := m.store.Load(ctx)
		if err != nil {
			m.logger.WarnContext(ctx, "Help state load failed, using empty state", "error", err)
		} else {
			m.help = state.Normalize()
		}
	}
	return m
}

// Bus returns the event bus the machine listens on.
func (m *Machine) Bus() *Bus {
	return m.bus
}

// StartTour begins the tour at step 0. Unknown ids are logged and ignored.
func (m *Machine) StartTour(ctx context.Context, tourID string) bool {
	m.mu.Lock()
	defer m.unlock()

	t, ok := m.catalog.Tour(tourID)
	if !ok || len(t.Steps) == 0 {
		m.logger.WarnContext(ctx, "Unknown tour requested", "tour_id", tourID)
		return false
	}

	m.clearWait()
	m.tour = t
	m.help.ActiveTour = &core.ActiveTour{TourID: t.ID, StepIndex: 0, StartedAt: m.now().UTC()}
	m.notify(core.LifecycleEvent{Type: core.EventStarted, TourID: t.ID})
	m.enterStep(ctx, 0, true)

	m.logger.InfoContext(ctx, "Tour started", "tour_id", t.ID, "steps", len(t.Steps))
	return true
}

// Resume restores a tour from the persisted resumption pointer. A pointer to
// a tour that no longer exists, or to an index out of range, is cleared.
func (m *Machine) Resume(ctx context.Context) bool {
	m.mu.Lock()
	defer m.unlock()

	if m.state != StateIdle || m.help.ActiveTour == nil {
		return false
	}
	ptr := *m.help.ActiveTour
	t, ok := m.catalog.Tour(ptr.TourID)
	if !ok || ptr.StepIndex < 0 || ptr.StepIndex >= len(t.Steps) {
		m.logger.InfoContext(ctx, "Discarding stale tour resumption pointer", "tour_id", ptr.TourID, "step_index", ptr.StepIndex)
		m.help.ActiveTour = nil
		m.persist(ctx)
		return false
	}
	m.tour = t
	m.enterStep(ctx, ptr.StepIndex, false)
	return true
}

// NextStep advances on explicit user action. It does nothing while idle or
// while the current step is waiting for its gating event.
func (m *Machine) NextStep(ctx context.Context) bool {
	m.mu.Lock()
	defer m.unlock()

	switch m.state {
	case StateIdle:
		return false
	case StateWaitingForEvent:
		m.logger.DebugContext(ctx, "Step is waiting for an event, ignoring next", "tour_id", m.tour.ID, "event", m.waitingFor)
		return false
	}
	m.advance(ctx)
	return true
}

// PrevStep goes back one step. It does nothing while idle or at step 0.
func (m *Machine) PrevStep(ctx context.Context) bool {
	m.mu.Lock()
	defer m.unlock()

	if m.state == StateIdle || m.index == 0 {
		return false
	}
	m.enterStep(ctx, m.index-1, true)
	return true
}

// SkipStep drops any pending wait and moves past the current step. It is
// the escape hatch for steps whose target never appears.
func (m *Machine) SkipStep(ctx context.Context) bool {
	m.mu.Lock()
	defer m.unlock()

	if m.state == StateIdle {
		return false
	}
	m.clearWait()
	m.advance(ctx)
	return true
}

// EndTour stops the active tour. With completed the tour is recorded as
// finished; otherwise a skipped notification carries the stop index.
func (m *Machine) EndTour(ctx context.Context, completed bool) bool {
	m.mu.Lock()
	defer m.unlock()

	if m.state == StateIdle {
		return false
	}
	if completed {
		m.complete(ctx)
		return true
	}

	step := m.tour.Steps[m.index]
	m.clearWait()
	m.notify(core.LifecycleEvent{Type: core.EventSkipped, TourID: m.tour.ID}.AtStep(step.ID, m.index))
	m.logger.InfoContext(ctx, "Tour ended early", "tour_id", m.tour.ID, "step_index", m.index)
	m.reset(ctx)
	return true
}

// DismissTour opts the user out of the active tour without completing it.
func (m *Machine) DismissTour(ctx context.Context) bool {
	m.mu.Lock()
	defer m.unlock()

	if m.state == StateIdle {
		return false
	}
	m.dismiss(ctx, m.tour.ID)
	return true
}

// DismissTourID opts the user out of any catalog tour, active or not.
func (m *Machine) DismissTourID(ctx context.Context, tourID string) bool {
	m.mu.Lock()
	defer m.unlock()

	if _, ok := m.catalog.Tour(tourID); !ok {
		m.logger.WarnContext(ctx, "Unknown tour dismissed", "tour_id", tourID)
		return false
	}
	m.dismiss(ctx, tourID)
	return true
}

// MarkArticleRead records a help article view.
func (m *Machine) MarkArticleRead(ctx context.Context, articleID string) bool {
	m.mu.Lock()
	defer m.unlock()

	if !m.help.MarkArticleRead(articleID) {
		return false
	}
	m.persist(ctx)
	return true
}

// CompletePath records a finished learning path.
func (m *Machine) CompletePath(ctx context.Context, pathID string) bool {
	m.mu.Lock()
	defer m.unlock()

	if !m.help.CompletePath(pathID) {
		return false
	}
	m.persist(ctx)
	return true
}

// IsTourCompleted reports whether the user has finished the tour.
func (m *Machine) IsTourCompleted(tourID string) bool {
	m.mu.Lock()
	defer m.unlock()
	return m.help.IsCompleted(tourID)
}

// AvailableTours lists catalog tours that are neither completed nor dismissed.
func (m *Machine) AvailableTours() []core.Tour {
	m.mu.Lock()
	defer m.unlock()

	all := m.catalog.Tours()
	out := make([]core.Tour, 0, len(all))
	for _, t := range all {
		if m.help.IsCompleted(t.ID) || m.help.IsDismissed(t.ID) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// HelpState returns a copy of the user's help state.
func (m *Machine) HelpState() core.UserHelpState {
	m.mu.Lock()
	defer m.unlock()
	return m.help.Clone()
}

// ContentFor resolves a step's content, falling back to generic text.
func (m *Machine) ContentFor(step core.TourStep) core.StepContent {
	return resolveContent(m.catalog, step)
}

// Snapshot describes the current state for rendering.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.unlock()

	if m.state == StateIdle {
		return Snapshot{State: StateIdle}
	}
	step := m.tour.Steps[m.index]
	return Snapshot{
		State:      m.state,
		TourID:     m.tour.ID,
		TourName:   m.tour.Name,
		StepIndex:  m.index,
		StepCount:  len(m.tour.Steps),
		Step:       &step,
		WaitingFor: m.waitingFor,
		Content:    resolveContent(m.catalog, step),
	}
}

// Detach drops the gating listener without touching persisted state. It is
// used when a session is evicted; the resumption pointer lets the next
// session pick the tour up again.
func (m *Machine) Detach() {
	m.mu.Lock()
	defer m.unlock()

	m.clearWait()
	m.state = StateIdle
	m.tour = core.Tour{}
	m.index = 0
}

// advance moves to the next step, completing the tour past the last one.
func (m *Machine) advance(ctx context.Context) {
	next := m.index + 1
	if next >= len(m.tour.Steps) {
		m.complete(ctx)
		return
	}
	m.enterStep(ctx, next, true)
}

// enterStep makes idx the current step, installing a one-shot gating
// listener when the step waits for an event.
func (m *Machine) enterStep(ctx context.Context, idx int, notifyView bool) {
	m.clearWait()
	m.index = idx
	m.generation++
	if m.help.ActiveTour != nil {
		m.help.ActiveTour.StepIndex = idx
	}

	step := m.tour.Steps[idx]
	if step.WaitForEvent != "" {
		m.state = StateWaitingForEvent
		m.waitingFor = step.WaitForEvent
		gen, event := m.generation, step.WaitForEvent
		bg := context.WithoutCancel(ctx)
		m.unsubscribe = m.bus.Subscribe(func(name string, _ any) {
			if name == event {
				m.onGatingEvent(bg, gen)
			}
		})
	} else {
		m.state = StateActive
	}

	m.persist(ctx)
	if notifyView {
		m.notify(core.LifecycleEvent{Type: core.EventStepViewed, TourID: m.tour.ID}.AtStep(step.ID, idx))
	}
}

func (m *Machine) onGatingEvent(ctx context.Context, gen uint64) {
	m.mu.Lock()
	defer m.unlock()

	if m.state != StateWaitingForEvent || m.generation != gen {
		return
	}
	m.logger.DebugContext(ctx, "Gating event received", "tour_id", m.tour.ID, "event", m.waitingFor, "step_index", m.index)
	m.clearWait()
	m.advance(ctx)
}

func (m *Machine) complete(ctx context.Context) {
	id := m.tour.ID
	m.clearWait()
	m.help.CompleteTour(id)
	m.notify(core.LifecycleEvent{Type: core.EventCompleted, TourID: id})
	m.logger.InfoContext(ctx, "Tour completed", "tour_id", id)
	m.reset(ctx)
}

func (m *Machine) dismiss(ctx context.Context, tourID string) {
	if m.state != StateIdle && m.tour.ID == tourID {
		m.clearWait()
		m.state = StateIdle
		m.tour = core.Tour{}
		m.index = 0
		m.help.ActiveTour = nil
	}
	m.help.DismissTour(tourID)
	m.notify(core.LifecycleEvent{Type: core.EventDismissed, TourID: tourID})
	m.persist(ctx)
}

// reset returns to idle and clears the resumption pointer.
func (m *Machine) reset(ctx context.Context) {
	m.state = StateIdle
	m.tour = core.Tour{}
	m.index = 0
	m.help.ActiveTour = nil
	m.persist(ctx)
}

func (m *Machine) clearWait() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.waitingFor = ""
	if m.state == StateWaitingForEvent {
		m.state = StateActive
	}
}

func (m *Machine) persist(ctx context.Context) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, m.help.Clone()); err != nil {
		m.logger.WarnContext(ctx, "Help state save failed", "error", err)
	}
}

func (m *Machine) notify(e core.LifecycleEvent) {
	if m.analytics != nil {
		m.queued = append(m.queued, e)
	}
}

// unlock releases mu and then runs the analytics callback for every queued
// event, so the callback may call back into the machine.
func (m *Machine) unlock() {
	events := m.queued
	m.queued = nil
	m.mu.Unlock()
	for _, e := range events {
		m.analytics(e)
	}
}

func resolveContent(c Catalog, step core.TourStep) core.StepContent {
	if c == nil || step.ContentID == "" {
		return FallbackContent
	}
	content, ok := c.Content(step.ContentID)
	if !ok || content.Title == "" {
		return FallbackContent
	}
	return content
}
