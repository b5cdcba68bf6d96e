package tracker

import (
	"context"
	"log/slog"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/tour"
)

// Stepper is the part of the tour machine the tracker drives.
type Stepper interface {
	Snapshot() tour.Snapshot
	SkipStep(ctx context.Context) bool
	EndTour(ctx context.Context, completed bool) bool
}

// Action is what Enter did with the current step.
type Action string

const (
	ActionIdle     Action = "idle"
	ActionTracked  Action = "tracked"
	ActionCentered Action = "centered"
	ActionSkipped  Action = "skipped"
	ActionAborted  Action = "aborted"
)

// Result describes the outcome of a tracking pass.
type Result struct {
	Action   Action
	Snapshot tour.Snapshot
	// Rect is nil when the tooltip should be centered with no cutout.
	Rect     *core.TargetRect
	Viewport core.Size
	Scrolled bool
	// Changed is set by Refresh when the rect differs from the previous pass.
	Changed  bool
	// Skipped counts steps passed over by the skip fallback.
	Skipped  int
}

// Tracker locates step targets and applies fallback behavior.
type Tracker struct {
	stepper Stepper
	loc     Locator
	logger  *slog.Logger

	mu   sync.Mutex
	last *core.TargetRect
}

func New(stepper Stepper, loc Locator, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{stepper: stepper, loc: loc, logger: logger}
}

// Enter handles a step change. Missing targets drive the step's fallback;
// a skip lands on the next step, which is entered in turn.
func (t *Tracker) Enter(ctx context.Context) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	var res Result
	for {
		snap := t.stepper.Snapshot()
		res.Snapshot = snap
		if !snap.Active() {
			t.last = nil
			if res.Skipped > 0 {
				res.Action = ActionSkipped
			} else {
				res.Action = ActionIdle
			}
			return res
		}

		step := snap.Step.WithDefaults()
		res.Viewport = t.viewport(ctx)
		if step.Placement == core.PlacementCenter || step.Target == "" {
			res.Action, res.Rect = ActionCentered, nil
			t.last = nil
			return res
		}

		rect, found, err := t.loc.Resolve(ctx, step.Target)
		if err != nil {
			// A broken locator is not a missing target; keep the step.
			t.logger.WarnContext(ctx, "Target lookup failed", "selector", step.Target, "error", err)
			t.last = nil
			res.Action, res.Rect = ActionCentered, nil
			return res
		}
		if found {
			if res.Viewport.Width > 0 && !rect.InViewport(res.Viewport) {
				if err := t.loc.ScrollIntoView(ctx, step.Target); err != nil {
					t.logger.WarnContext(ctx, "Scroll into view failed", "selector", step.Target, "error", err)
				} else {
					res.Scrolled = true
					if r, ok := t.resolve(ctx, step.Target); ok {
						rect = r
					}
				}
			}
			res.Action, res.Rect = ActionTracked, &rect
			t.last = &rect
			return res
		}

		t.logger.InfoContext(ctx, "Tour target not found",
			"tour_id", snap.TourID, "step_id", step.ID, "selector", step.Target, "fallback", step.Fallback)

		switch step.Fallback {
		case core.FallbackSkip:
			res.Skipped++
			if !t.stepper.SkipStep(ctx) {
				res.Action = ActionIdle
				return res
			}
		case core.FallbackAbort:
			t.stepper.EndTour(ctx, false)
			t.last = nil
			res.Action, res.Rect = ActionAborted, nil
			res.Snapshot = t.stepper.Snapshot()
			return res
		default:
			t.last = nil
			res.Action, res.Rect = ActionCentered, nil
			return res
		}
	}
}

// Refresh re-measures the current target after a scroll or resize. It never
// changes the tour state: a target that disappeared mid-step just centers
// the tooltip until the next step change.
func (t *Tracker) Refresh(ctx context.Context) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.stepper.Snapshot()
	res := Result{Snapshot: snap}
	if !snap.Active() {
		res.Action = ActionIdle
		res.Changed = t.last != nil
		t.last = nil
		return res
	}

	step := snap.Step.WithDefaults()
	res.Viewport = t.viewport(ctx)
	if step.Placement == core.PlacementCenter || step.Target == "" {
		res.Action = ActionCentered
		res.Changed = t.last != nil
		t.last = nil
		return res
	}

	rect, found := t.resolve(ctx, step.Target)
	if !found {
		res.Action = ActionCentered
		res.Changed = t.last != nil
		t.last = nil
		return res
	}
	res.Action, res.Rect = ActionTracked, &rect
	res.Changed = t.last == nil || *t.last != rect
	t.last = &rect
	return res
}

func (t *Tracker) resolve(ctx context.Context, selector string) (core.TargetRect, bool) {
	rect, found, err := t.loc.Resolve(ctx, selector)
	if err != nil {
		t.logger.WarnContext(ctx, "Target lookup failed", "selector", selector, "error", err)
		return core.TargetRect{}, false
	}
	return rect, found
}

func (t *Tracker) viewport(ctx context.Context) core.Size {
	vp, err := t.loc.Viewport(ctx)
	if err != nil {
		return core.Size{}
	}
	return vp
}
