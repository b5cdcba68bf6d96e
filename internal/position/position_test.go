package position

import (
	"fmt"
	"testing"

	"bilancio/internal/core"
)

var (
	viewport = core.Size{Width: 1280, Height: 800}
	tooltip  = core.Size{Width: 320, Height: 160}
)

func TestPlaceCenter(t *testing.T) {
	rect := core.RectFrom(100, 100, 50, 50)
	for _, r := range []*core.TargetRect{nil, &rect} {
		got := Place(r, core.PlacementCenter, tooltip, EdgePadding, viewport)
		if got.Top != 320 || got.Left != 480 {
			t.Fatalf("center placement = %+v, want {320 480}", got)
		}
	}
	// A nil rect centers regardless of the hint.
	got := Place(nil, core.PlacementLeft, tooltip, EdgePadding, viewport)
	if got.Top != 320 || got.Left != 480 {
		t.Fatalf("nil rect placement = %+v", got)
	}
}

func TestPlaceBottomAndTop(t *testing.T) {
	rect := core.RectFrom(300, 500, 200, 40)

	bottom := Place(&rect, core.PlacementBottom, tooltip, EdgePadding, viewport)
	if bottom.Top < rect.Bottom {
		t.Fatalf("bottom placement top=%v must be >= rect.Bottom=%v", bottom.Top, rect.Bottom)
	}
	if bottom.Top != rect.Bottom+Gap || bottom.Left != 440 {
		t.Fatalf("bottom placement = %+v", bottom)
	}

	top := Place(&rect, core.PlacementTop, tooltip, EdgePadding, viewport)
	if top.Top+tooltip.Height > rect.Top {
		t.Fatalf("top placement overlaps target: %+v", top)
	}
}

func TestPlaceLeftAndRight(t *testing.T) {
	rect := core.RectFrom(300, 500, 200, 40)

	right := Place(&rect, core.PlacementRight, tooltip, EdgePadding, viewport)
	if right.Left != rect.Right+Gap || right.Top != 240 {
		t.Fatalf("right placement = %+v", right)
	}

	left := Place(&rect, core.PlacementLeft, tooltip, EdgePadding, viewport)
	if left.Left != rect.Left-tooltip.Width-Gap {
		t.Fatalf("left placement = %+v", left)
	}

	// Near the top edge the vertical center is clamped to the padding.
	high := core.RectFrom(0, 500, 200, 20)
	got := Place(&high, core.PlacementRight, tooltip, EdgePadding, viewport)
	if got.Top != EdgePadding {
		t.Fatalf("expected top clamped to padding, got %+v", got)
	}
}

func TestPlaceHorizontalAlwaysWithinPadding(t *testing.T) {
	lefts := []float64{-200, 0, 5, 400, 1100, 1270, 2000}
	placements := []core.Placement{core.PlacementTop, core.PlacementBottom, core.PlacementLeft, core.PlacementRight, core.PlacementCenter}
	for _, l := range lefts {
		for _, p := range placements {
			t.Run(fmt.Sprintf("%s_%v", p, l), func(t *testing.T) {
				rect := core.RectFrom(300, l, 60, 30)
				got := Place(&rect, p, tooltip, EdgePadding, viewport)
				if got.Left < EdgePadding || got.Left > viewport.Width-tooltip.Width-EdgePadding {
					t.Fatalf("left %v outside [%v, %v]", got.Left, EdgePadding, viewport.Width-tooltip.Width-EdgePadding)
				}
			})
		}
	}
}

func TestPlaceInContainer(t *testing.T) {
	container := core.Size{Width: 600, Height: 300}
	tip := core.Size{Width: 150, Height: 80}

	got := PlaceInContainer(core.Point{X: 100, Y: 150}, tip, container, CursorOffset)
	if got.X != 116 || got.Y != 110 {
		t.Fatalf("default placement = %+v", got)
	}

	// Flips left near the right edge.
	got = PlaceInContainer(core.Point{X: 500, Y: 150}, tip, container, CursorOffset)
	if got.X != 500-CursorOffset-150 {
		t.Fatalf("expected flip, got %+v", got)
	}
	if got.X+tip.Width > container.Width {
		t.Fatalf("tooltip overflows container: %+v", got)
	}

	// Vertical clamp at both ends.
	if got := PlaceInContainer(core.Point{X: 10, Y: 5}, tip, container, CursorOffset); got.Y != 0 {
		t.Fatalf("expected y clamped to 0, got %+v", got)
	}
	if got := PlaceInContainer(core.Point{X: 10, Y: 295}, tip, container, CursorOffset); got.Y != 220 {
		t.Fatalf("expected y clamped to 220, got %+v", got)
	}
}

func TestPlaceInContainerIsStateless(t *testing.T) {
	container := core.Size{Width: 600, Height: 300}
	tip := core.Size{Width: 150, Height: 80}
	a := PlaceInContainer(core.Point{X: 100, Y: 100}, tip, container, CursorOffset)
	_ = PlaceInContainer(core.Point{X: 590, Y: 290}, tip, container, CursorOffset)
	b := PlaceInContainer(core.Point{X: 100, Y: 100}, tip, container, CursorOffset)
	if a != b {
		t.Fatalf("same input produced %+v then %+v", a, b)
	}
}
