package spotlight

import (
	"context"

	"bilancio/internal/tour"
)

// Navigator is the subset of the tour machine driven by the keyboard.
type Navigator interface {
	Snapshot() tour.Snapshot
	NextStep(ctx context.Context) bool
	PrevStep(ctx context.Context) bool
	EndTour(ctx context.Context, completed bool) bool
}

// Key names as reported by KeyboardEvent.key.
const (
	KeyEscape     = "Escape"
	KeyArrowRight = "ArrowRight"
	KeyArrowLeft  = "ArrowLeft"
	KeyEnter      = "Enter"
)

// KeyHandler maps key presses to tour transitions.
type KeyHandler struct {
	Nav Navigator
}

// Handle applies key and reports whether it was consumed. Bindings are
// inert while no tour is active.
func (h KeyHandler) Handle(ctx context.Context, key string) bool {
	snap := h.Nav.Snapshot()
	if !snap.Active() {
		return false
	}
	switch key {
	case KeyEscape:
		return h.Nav.EndTour(ctx, false)
	case KeyArrowRight, KeyEnter:
		return h.Nav.NextStep(ctx)
	case KeyArrowLeft:
		if snap.IsFirst() {
			return false
		}
		return h.Nav.PrevStep(ctx)
	default:
		return false
	}
}
