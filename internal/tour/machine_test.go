package tour

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"bilancio/internal/core"
)

type fakeCatalog struct {
	tours   []core.Tour
	content map[string]core.StepContent
}

func (c fakeCatalog) Tour(id string) (core.Tour, bool) {
	for _, t := range c.tours {
		if t.ID == id {
			return t, true
		}
	}
	return core.Tour{}, false
}

func (c fakeCatalog) Tours() []core.Tour { return c.tours }

func (c fakeCatalog) Content(id string) (core.StepContent, bool) {
	v, ok := c.content[id]
	return v, ok
}

type memStore struct {
	state   core.UserHelpState
	saves   int
	loadErr error
	saveErr error
}

func (s *memStore) Load(context.Context) (core.UserHelpState, error) {
	if s.loadErr != nil {
		return core.UserHelpState{}, s.loadErr
	}
	return s.state.Clone(), nil
}

func (s *memStore) Save(_ context.Context, st core.UserHelpState) error {
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.state = st
	return nil
}

func testCatalog() fakeCatalog {
	return fakeCatalog{
		tours: []core.Tour{
			{ID: "intro", Name: "Intro", Steps: []core.TourStep{
				{ID: "s1", Target: "#a", ContentID: "c1"},
				{ID: "s2", Target: "#b"},
				{ID: "s3", Target: "#c"},
			}},
			{ID: "flows", Name: "Flows", Steps: []core.TourStep{
				{ID: "open", Target: "#add"},
				{ID: "create", Target: "#form", WaitForEvent: "flow:created"},
				{ID: "done", Target: "#list"},
			}},
			{ID: "gated-twice", Name: "Gated", Steps: []core.TourStep{
				{ID: "g1", Target: "#x", WaitForEvent: "ping"},
				{ID: "g2", Target: "#y", WaitForEvent: "ping"},
			}},
		},
		content: map[string]core.StepContent{
			"c1": {Title: "Welcome", Short: "Start here"},
		},
	}
}

type recorder struct{ events []core.LifecycleEvent }

func (r *recorder) record(e core.LifecycleEvent) { r.events = append(r.events, e) }

func (r *recorder) types() []core.LifecycleType {
	out := make([]core.LifecycleType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func newTestMachine(t *testing.T, store *memStore) (*Machine, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts := Options{
		Catalog:   testCatalog(),
		Analytics: rec.record,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:       func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
	if store != nil {
		opts.Store = store
	}
	return NewMachine(context.Background(), opts), rec
}

func TestStartTourUnknownIsNoop(t *testing.T) {
	store := &memStore{state: core.NewUserHelpState()}
	m, rec := newTestMachine(t, store)

	if m.StartTour(context.Background(), "missing") {
		t.Fatal("StartTour(missing) should report false")
	}
	if snap := m.Snapshot(); snap.State != StateIdle {
		t.Fatalf("state = %v, want idle", snap.State)
	}
	if len(rec.events) != 0 || store.saves != 0 {
		t.Fatalf("unexpected side effects: events=%v saves=%d", rec.events, store.saves)
	}
}

func TestNextStepCompletesTour(t *testing.T) {
	ctx := context.Background()
	store := &memStore{state: core.NewUserHelpState()}
	m, rec := newTestMachine(t, store)

	if !m.StartTour(ctx, "intro") {
		t.Fatal("StartTour failed")
	}
	snap := m.Snapshot()
	if snap.State != StateActive || snap.StepIndex != 0 || snap.Content.Title != "Welcome" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if store.state.ActiveTour == nil || store.state.ActiveTour.TourID != "intro" {
		t.Fatalf("resumption pointer not persisted: %+v", store.state.ActiveTour)
	}

	for i := 0; i < 3; i++ {
		if !m.NextStep(ctx) {
			t.Fatalf("NextStep %d returned false", i)
		}
	}
	if m.Snapshot().State != StateIdle {
		t.Fatal("tour should be idle after the last step")
	}
	if !m.IsTourCompleted("intro") || store.state.ActiveTour != nil {
		t.Fatalf("completion not persisted: %+v", store.state)
	}

	want := []core.LifecycleType{core.EventStarted, core.EventStepViewed, core.EventStepViewed, core.EventStepViewed, core.EventCompleted}
	got := rec.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	if idx := rec.events[1].StepIndex; idx == nil || *idx != 0 || rec.events[1].StepID != "s1" {
		t.Fatalf("first step_viewed payload = %+v", rec.events[1])
	}
	if idx := rec.events[2].StepIndex; idx == nil || *idx != 1 || rec.events[2].StepID != "s2" {
		t.Fatalf("step_viewed payload = %+v", rec.events[2])
	}
}

func TestCompletingTwiceDoesNotDuplicate(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t, &memStore{state: core.NewUserHelpState()})

	for round := 0; round < 2; round++ {
		m.StartTour(ctx, "intro")
		m.EndTour(ctx, true)
	}
	if got := m.HelpState().CompletedTours; len(got) != 1 || got[0] != "intro" {
		t.Fatalf("CompletedTours = %v", got)
	}
}

func TestPrevStep(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t, nil)

	if m.PrevStep(ctx) {
		t.Fatal("PrevStep while idle should be a no-op")
	}
	m.StartTour(ctx, "intro")
	if m.PrevStep(ctx) {
		t.Fatal("PrevStep at step 0 should be a no-op")
	}
	m.NextStep(ctx)
	m.NextStep(ctx)
	if !m.PrevStep(ctx) || m.Snapshot().StepIndex != 1 {
		t.Fatalf("PrevStep should return to step 1, got %d", m.Snapshot().StepIndex)
	}
}

func TestWaitForEventGatesAdvance(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t, nil)
	bus := m.Bus()

	m.StartTour(ctx, "flows")
	m.NextStep(ctx)

	snap := m.Snapshot()
	if snap.State != StateWaitingForEvent || snap.WaitingFor != "flow:created" {
		t.Fatalf("expected waiting state, got %+v", snap)
	}
	if bus.Len() != 1 {
		t.Fatalf("expected one gating listener, got %d", bus.Len())
	}

	if m.NextStep(ctx) {
		t.Fatal("NextStep must not advance a gated step")
	}
	bus.Emit("flow:deleted", nil)
	if m.Snapshot().StepIndex != 1 {
		t.Fatal("unrelated event advanced the tour")
	}

	bus.Emit("flow:created", nil)
	snap = m.Snapshot()
	if snap.State != StateActive || snap.StepIndex != 2 {
		t.Fatalf("expected step 2 active, got %+v", snap)
	}
	if bus.Len() != 0 {
		t.Fatalf("gating listener leaked: %d", bus.Len())
	}
}

func TestOneEmitAdvancesOneStep(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t, nil)

	m.StartTour(ctx, "gated-twice")
	m.Bus().Emit("ping", nil)
	if snap := m.Snapshot(); snap.StepIndex != 1 || snap.State != StateWaitingForEvent {
		t.Fatalf("expected to wait on step 1, got %+v", snap)
	}
	m.Bus().Emit("ping", nil)
	if !m.IsTourCompleted("gated-twice") {
		t.Fatal("second ping should complete the tour")
	}
}

func TestSkipStepClearsWait(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t, nil)

	m.StartTour(ctx, "flows")
	m.NextStep(ctx)
	if !m.SkipStep(ctx) {
		t.Fatal("SkipStep returned false")
	}
	if snap := m.Snapshot(); snap.StepIndex != 2 || snap.State != StateActive {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if m.Bus().Len() != 0 {
		t.Fatal("listener should be removed after skip")
	}
}

func TestEndTourIncompleteTearsDownListener(t *testing.T) {
	ctx := context.Background()
	m, rec := newTestMachine(t, nil)

	m.StartTour(ctx, "flows")
	m.NextStep(ctx)
	m.EndTour(ctx, false)

	if m.Bus().Len() != 0 {
		t.Fatal("listener should be removed on end")
	}
	if m.IsTourCompleted("flows") {
		t.Fatal("incomplete end must not record completion")
	}
	last := rec.events[len(rec.events)-1]
	if last.Type != core.EventSkipped || last.StepIndex == nil || *last.StepIndex != 1 {
		t.Fatalf("unexpected last event %+v", last)
	}

	// A late event from the old step must be ignored.
	m.Bus().Emit("flow:created", nil)
	if m.Snapshot().State != StateIdle {
		t.Fatal("stale event restarted the tour")
	}
}

func TestDismissTour(t *testing.T) {
	ctx := context.Background()
	store := &memStore{state: core.NewUserHelpState()}
	m, _ := newTestMachine(t, store)

	m.StartTour(ctx, "flows")
	m.NextStep(ctx)
	if !m.DismissTour(ctx) {
		t.Fatal("DismissTour returned false")
	}
	if m.Bus().Len() != 0 {
		t.Fatal("listener should be removed on dismiss")
	}
	if m.IsTourCompleted("flows") {
		t.Fatal("dismiss must not complete")
	}
	for _, tr := range m.AvailableTours() {
		if tr.ID == "flows" {
			t.Fatal("dismissed tour still available")
		}
	}
	if !store.state.IsDismissed("flows") || store.state.ActiveTour != nil {
		t.Fatalf("dismissal not persisted: %+v", store.state)
	}
}

func TestDismissTourID(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestMachine(t, nil)

	if m.DismissTourID(ctx, "nope") {
		t.Fatal("unknown id should not be dismissed")
	}
	if !m.DismissTourID(ctx, "intro") {
		t.Fatal("DismissTourID(intro) returned false")
	}
	if got := len(m.AvailableTours()); got != 2 {
		t.Fatalf("AvailableTours = %d, want 2", got)
	}
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	state := core.NewUserHelpState()
	state.ActiveTour = &core.ActiveTour{TourID: "flows", StepIndex: 1}
	m, _ := newTestMachine(t, &memStore{state: state})

	if !m.Resume(ctx) {
		t.Fatal("Resume returned false")
	}
	snap := m.Snapshot()
	if snap.TourID != "flows" || snap.StepIndex != 1 || snap.State != StateWaitingForEvent {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestResumeStalePointer(t *testing.T) {
	ctx := context.Background()
	state := core.NewUserHelpState()
	state.ActiveTour = &core.ActiveTour{TourID: "intro", StepIndex: 9}
	store := &memStore{state: state}
	m, _ := newTestMachine(t, store)

	if m.Resume(ctx) {
		t.Fatal("out-of-range pointer should not resume")
	}
	if store.state.ActiveTour != nil {
		t.Fatal("stale pointer should be cleared")
	}
}

func TestStoreErrorsAreSwallowed(t *testing.T) {
	ctx := context.Background()
	store := &memStore{loadErr: errors.New("boom"), saveErr: errors.New("disk full")}
	m, _ := newTestMachine(t, store)

	if !m.StartTour(ctx, "intro") {
		t.Fatal("StartTour should succeed despite store errors")
	}
	if got := m.HelpState(); got.CompletedTours == nil {
		t.Fatal("fallback state should have non-nil collections")
	}
}

func TestContentFallback(t *testing.T) {
	m, _ := newTestMachine(t, nil)
	got := m.ContentFor(core.TourStep{ID: "x", ContentID: "unknown"})
	if got != FallbackContent {
		t.Fatalf("got %+v", got)
	}
}

func TestMarkArticleReadAndPath(t *testing.T) {
	ctx := context.Background()
	store := &memStore{state: core.NewUserHelpState()}
	m, _ := newTestMachine(t, store)

	if !m.MarkArticleRead(ctx, "savings-rate") || m.MarkArticleRead(ctx, "savings-rate") {
		t.Fatal("MarkArticleRead should be true once then false")
	}
	if !m.CompletePath(ctx, "basics") {
		t.Fatal("CompletePath returned false")
	}
	if store.saves != 2 {
		t.Fatalf("saves = %d, want 2", store.saves)
	}
}

func TestSnapshotProgress(t *testing.T) {
	s := Snapshot{State: StateActive, StepIndex: 1, StepCount: 4}
	if s.ProgressPercent() != 50 || s.IsFirst() || s.IsLast() {
		t.Fatalf("unexpected helpers for %+v", s)
	}
}

func TestDetach(t *testing.T) {
	ctx := context.Background()
	store := &memStore{state: core.NewUserHelpState()}
	m, _ := newTestMachine(t, store)

	m.StartTour(ctx, "flows")
	m.NextStep(ctx)
	saves := store.saves
	m.Detach()
	if m.Bus().Len() != 0 {
		t.Fatal("Detach should remove the listener")
	}
	if store.saves != saves || store.state.ActiveTour == nil {
		t.Fatal("Detach must leave the resumption pointer alone")
	}
}

func TestAnalyticsCallbackMayQueryMachine(t *testing.T) {
	ctx := context.Background()
	var (
		m        *Machine
		seen     []core.LifecycleType
		complete bool
	)
	m = NewMachine(ctx, Options{
		Catalog: testCatalog(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Analytics: func(e core.LifecycleEvent) {
			seen = append(seen, e.Type)
			switch e.Type {
			case core.EventStarted:
				_ = m.Snapshot()
				_ = m.AvailableTours()
			case core.EventCompleted:
				complete = m.IsTourCompleted(e.TourID)
			}
		},
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.StartTour(ctx, "intro")
		m.EndTour(ctx, true)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("analytics callback calling the machine blocked the transition")
	}

	if !complete {
		t.Error("callback should observe the completed tour")
	}
	if len(seen) != 3 || seen[0] != core.EventStarted || seen[2] != core.EventCompleted {
		t.Errorf("events = %v", seen)
	}
}

func TestAnalyticsCallbackMayEmitGatingEvent(t *testing.T) {
	ctx := context.Background()
	var m *Machine
	m = NewMachine(ctx, Options{
		Catalog: testCatalog(),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Analytics: func(e core.LifecycleEvent) {
			if e.Type == core.EventStepViewed && e.StepID == "create" {
				m.Bus().Emit("flow:created", nil)
			}
		},
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.StartTour(ctx, "flows")
		m.NextStep(ctx)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emitting from the analytics callback blocked the transition")
	}
	if snap := m.Snapshot(); snap.StepIndex != 2 || snap.State != StateActive {
		t.Fatalf("gating event from callback should advance, got %+v", snap)
	}
}
