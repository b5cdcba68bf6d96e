package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/position"
	"bilancio/internal/spotlight"
	"bilancio/internal/storage"
	"bilancio/internal/tour"
	"bilancio/internal/tracker"
)

// DefaultTooltipSize is assumed until the browser reports the rendered size.
var DefaultTooltipSize = core.Size{Width: 320, Height: 180}

// AnalyticsFactory builds the lifecycle callback for one user.
type AnalyticsFactory func(user string) tour.AnalyticsFunc

// GuideConfig wires a GuideService.
type GuideConfig struct {
	Catalog    tour.Catalog
	KV         storage.KV
	Policy     storage.LoadPolicy
	Analytics  AnalyticsFactory
	Logger     *slog.Logger
	CacheSize  int
	SessionTTL time.Duration
	Now        func() time.Time
}

// Layout is one browser measurement tick: the viewport, the rendered
// tooltip and the rectangles of every tour target currently on the page.
type Layout struct {
	Viewport core.Size                  `json:"viewport"`
	Tooltip  core.Size                  `json:"tooltip"`
	Rects    map[string]core.TargetRect `json:"rects"`
}

// View is what the client needs to draw the current step.
type View struct {
	Snapshot tour.Snapshot      `json:"snapshot"`
	Action   tracker.Action     `json:"action"`
	Target   *core.TargetRect   `json:"target,omitempty"`
	Tooltip  *position.Position `json:"tooltip,omitempty"`
	Overlay  *spotlight.Overlay `json:"overlay,omitempty"`
	ScrollTo []string           `json:"scrollTo,omitempty"`
	Changed  bool               `json:"changed"`
	Skipped  int                `json:"skipped,omitempty"`
}

// Session is the per-user tour runtime: one machine on its own bus, the
// locator fed by browser layout reports and the tracker that joins them.
type Session struct {
	User    string
	Machine *tour.Machine
	Locator *tracker.StaticLocator
	Tracker *tracker.Tracker

	mu      sync.Mutex
	tooltip core.Size
	// pending is set when a step changed before any layout was known; the
	// next report runs a full Enter instead of a Refresh.
	pending bool
	last    View
}

// GuideService owns the tour sessions of every user.
type GuideService struct {
	cfg      GuideConfig
	logger   *slog.Logger
	sessions *cache.LRUCache[*Session]
	group    singleflight.Group
}

func NewGuideService(cfg GuideConfig) *GuideService {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.KV == nil {
		cfg.KV = storage.NewMemoryKV()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	s := &GuideService{cfg: cfg, logger: cfg.Logger}
	s.sessions = cache.NewLRUCache[*Session](cfg.CacheSize, cfg.SessionTTL,
		cache.WithSlidingExpiry[*Session](),
		cache.WithOnEvict(func(user string, sess *Session) {
			sess.Machine.Detach()
			s.logger.Debug("Guide session evicted", "user", user)
		}))
	return s
}

// Sessions exposes the session cache so a cache.Manager can expire it.
func (s *GuideService) Sessions() *cache.LRUCache[*Session] {
	return s.sessions
}

// Session returns the user's session, creating it on first use. Concurrent
// first requests for the same user share one creation.
func (s *GuideService) Session(ctx context.Context, user string) (*Session, error) {
	if sess, ok := s.sessions.Get(user); ok {
		return sess, nil
	}
	v, err, _ := s.group.Do(user, func() (any, error) {
		if sess, ok := s.sessions.Get(user); ok {
			return sess, nil
		}
		sess := s.newSession(context.WithoutCancel(ctx), user)
		s.sessions.Set(user, sess)
		return sess, nil
	})
	if err != nil {
		return nil, fmt.Errorf("guide session for %s: %w", user, err)
	}
	return v.(*Session), nil
}

func (s *GuideService) newSession(ctx context.Context, user string) *Session {
	logger := s.logger.With("user", user)
	var analytics tour.AnalyticsFunc
	if s.cfg.Analytics != nil {
		analytics = s.cfg.Analytics(user)
	}
	m := tour.NewMachine(ctx, tour.Options{
		Catalog:   s.cfg.Catalog,
		Store:     storage.NewHelpStateStore(s.cfg.KV, user, s.cfg.Policy, logger),
		Analytics: analytics,
		Logger:    logger,
		Now:       s.cfg.Now,
	})
	loc := tracker.NewStaticLocator()
	sess := &Session{
		User:    user,
		Machine: m,
		Locator: loc,
		Tracker: tracker.New(m, loc, logger),
		tooltip: DefaultTooltipSize,
	}
	if m.Resume(ctx) {
		sess.pending = true
	}
	return sess
}

// Start begins a tour for the user.
func (s *GuideService) Start(ctx context.Context, user, tourID string) (View, bool, error) {
	return s.transition(ctx, user, func(m *tour.Machine) bool { return m.StartTour(ctx, tourID) })
}

func (s *GuideService) Next(ctx context.Context, user string) (View, bool, error) {
	return s.transition(ctx, user, func(m *tour.Machine) bool { return m.NextStep(ctx) })
}

func (s *GuideService) Prev(ctx context.Context, user string) (View, bool, error) {
	return s.transition(ctx, user, func(m *tour.Machine) bool { return m.PrevStep(ctx) })
}

func (s *GuideService) Skip(ctx context.Context, user string) (View, bool, error) {
	return s.transition(ctx, user, func(m *tour.Machine) bool { return m.SkipStep(ctx) })
}

// End stops the tour; completed marks it done rather than skipped.
func (s *GuideService) End(ctx context.Context, user string, completed bool) (View, bool, error) {
	return s.transition(ctx, user, func(m *tour.Machine) bool { return m.EndTour(ctx, completed) })
}

// Dismiss dismisses the active tour, or tourID when it is not empty.
func (s *GuideService) Dismiss(ctx context.Context, user, tourID string) (View, bool, error) {
	return s.transition(ctx, user, func(m *tour.Machine) bool {
		if tourID != "" && m.Snapshot().TourID != tourID {
			return m.DismissTourID(ctx, tourID)
		}
		return m.DismissTour(ctx)
	})
}

// Key applies a keyboard binding.
func (s *GuideService) Key(ctx context.Context, user, key string) (View, bool, error) {
	return s.transition(ctx, user, func(m *tour.Machine) bool {
		return spotlight.KeyHandler{Nav: m}.Handle(ctx, key)
	})
}

// Emit publishes an application event on the user's bus. A gating listener
// may advance the tour, in which case the new step is tracked.
func (s *GuideService) Emit(ctx context.Context, user, name string, data any) (View, bool, error) {
	sess, err := s.Session(ctx, user)
	if err != nil {
		return View{}, false, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	before := sess.Machine.Snapshot()
	sess.Machine.Bus().Emit(name, data)
	after := sess.Machine.Snapshot()
	moved := before.State != after.State || before.TourID != after.TourID || before.StepIndex != after.StepIndex
	if moved {
		return sess.enter(ctx), true, nil
	}
	return sess.last, false, nil
}

// Layout records a browser measurement and recomputes placement.
func (s *GuideService) Layout(ctx context.Context, user string, l Layout) (View, error) {
	sess, err := s.Session(ctx, user)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.Locator.Report(l.Viewport, l.Rects)
	if l.Tooltip.Width > 0 && l.Tooltip.Height > 0 {
		sess.tooltip = l.Tooltip
	}
	if sess.pending {
		return sess.enter(ctx), nil
	}
	return sess.refresh(ctx), nil
}

// State returns the last computed view, refreshed against the machine.
func (s *GuideService) State(ctx context.Context, user string) (View, error) {
	sess, err := s.Session(ctx, user)
	if err != nil {
		return View{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	v := sess.last
	v.Snapshot = sess.Machine.Snapshot()
	if !v.Snapshot.Active() {
		v = View{Snapshot: v.Snapshot, Action: tracker.ActionIdle}
	}
	v.ScrollTo = nil
	return v, nil
}

// MarkArticleRead records an opened help article.
func (s *GuideService) MarkArticleRead(ctx context.Context, user, articleID string) (bool, error) {
	sess, err := s.Session(ctx, user)
	if err != nil {
		return false, err
	}
	return sess.Machine.MarkArticleRead(ctx, articleID), nil
}

// CompletePath records a finished learning path.
func (s *GuideService) CompletePath(ctx context.Context, user, pathID string) (bool, error) {
	sess, err := s.Session(ctx, user)
	if err != nil {
		return false, err
	}
	return sess.Machine.CompletePath(ctx, pathID), nil
}

// Available lists tours the user has neither completed nor dismissed.
func (s *GuideService) Available(ctx context.Context, user string) ([]core.Tour, error) {
	sess, err := s.Session(ctx, user)
	if err != nil {
		return nil, err
	}
	return sess.Machine.AvailableTours(), nil
}

// HelpState returns a copy of the user's persisted help state.
func (s *GuideService) HelpState(ctx context.Context, user string) (core.UserHelpState, error) {
	sess, err := s.Session(ctx, user)
	if err != nil {
		return core.UserHelpState{}, err
	}
	return sess.Machine.HelpState(), nil
}

func (s *GuideService) transition(ctx context.Context, user string, fn func(*tour.Machine) bool) (View, bool, error) {
	sess, err := s.Session(ctx, user)
	if err != nil {
		return View{}, false, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !fn(sess.Machine) {
		v := sess.last
		v.Snapshot = sess.Machine.Snapshot()
		v.ScrollTo = nil
		v.Changed = false
		return v, false, nil
	}
	return sess.enter(ctx), true, nil
}

// enter tracks the new step. Without a known viewport every target would
// look missing and trigger fallbacks, so tracking waits for the first
// layout report.
func (sess *Session) enter(ctx context.Context) View {
	if _, err := sess.Locator.Viewport(ctx); err != nil {
		sess.pending = sess.Machine.Snapshot().Active()
		v := View{Snapshot: sess.Machine.Snapshot(), Action: tracker.ActionIdle, Changed: true}
		if v.Snapshot.Active() {
			v.Action = tracker.ActionCentered
		}
		sess.last = v
		return v
	}
	sess.pending = false
	res := sess.Tracker.Enter(ctx)
	res.Changed = true
	return sess.build(res)
}

func (sess *Session) refresh(ctx context.Context) View {
	return sess.build(sess.Tracker.Refresh(ctx))
}

func (sess *Session) build(res tracker.Result) View {
	v := View{
		Snapshot: res.Snapshot,
		Action:   res.Action,
		Target:   res.Rect,
		Changed:  res.Changed,
		Skipped:  res.Skipped,
		ScrollTo: sess.Locator.TakeScrollRequests(),
	}
	if res.Snapshot.Active() && res.Snapshot.Step != nil {
		step := res.Snapshot.Step.WithDefaults()
		placement := step.Placement
		if res.Rect == nil {
			placement = core.PlacementCenter
		}
		pos := position.Place(res.Rect, placement, sess.tooltip, position.EdgePadding, res.Viewport)
		overlay := spotlight.Compute(res.Rect, step.Padding(), res.Viewport, step.AllowInteraction)
		v.Tooltip = &pos
		v.Overlay = &overlay
	}
	sess.last = v
	return v
}
