// Package position computes where floating tooltips go.
//
// Place handles tour tooltips relative to a target inside the viewport and
// PlaceInContainer handles chart tooltips relative to the cursor inside the
// chart container. Both are pure and keep no state between calls.
package position

import "bilancio/internal/core"

const (
	// Gap is the distance between a target edge and its tooltip.
	Gap = 12.0
	// EdgePadding is the default distance kept from the viewport edges.
	EdgePadding = 16.0
	// CursorOffset is the default horizontal distance from the chart cursor.
	CursorOffset = 16.0
)

// Position is the top-left corner of a tooltip.
type Position struct {
	Top  float64 `json:"top"`
	Left float64 `json:"left"`
}

// Place positions a tooltip of the given size next to rect. A nil rect, or
// placement center, puts the tooltip in the middle of the viewport.
func Place(rect *core.TargetRect, placement core.Placement, tooltip core.Size, padding float64, viewport core.Size) Position {
	if rect == nil || placement == core.PlacementCenter {
		return Position{
			Top:  (viewport.Height - tooltip.Height) / 2,
			Left: (viewport.Width - tooltip.Width) / 2,
		}
	}

	minLeft, maxLeft := padding, viewport.Width-tooltip.Width-padding
	minTop, maxTop := padding, viewport.Height-tooltip.Height-padding

	switch placement {
	case core.PlacementTop, core.PlacementBottom:
		left := clamp(rect.Left+rect.Width/2-tooltip.Width/2, minLeft, maxLeft)
		top := rect.Bottom + Gap
		if placement == core.PlacementTop {
			top = rect.Top - tooltip.Height - Gap
		}
		return Position{Top: top, Left: left}
	case core.PlacementLeft, core.PlacementRight:
		top := clamp(rect.Top+rect.Height/2-tooltip.Height/2, minTop, maxTop)
		left := rect.Right + Gap
		if placement == core.PlacementLeft {
			left = rect.Left - tooltip.Width - Gap
		}
		return Position{Top: top, Left: clamp(left, minLeft, maxLeft)}
	default:
		return Place(rect, core.PlacementBottom, tooltip, padding, viewport)
	}
}

// PlaceInContainer positions a chart tooltip to the right of the cursor,
// flipping to the left when it would cross the container's right edge, and
// centers it vertically on the cursor within [0, container.Height-tooltip.Height].
// The returned point is relative to the container's top-left corner.
func PlaceInContainer(cursor core.Point, tooltip core.Size, container core.Size, offset float64) core.Point {
	x := cursor.X + offset
	if x+tooltip.Width > container.Width {
		x = cursor.X - offset - tooltip.Width
	}
	if x < 0 {
		x = 0
	}
	y := clamp(cursor.Y-tooltip.Height/2, 0, container.Height-tooltip.Height)
	return core.Point{X: x, Y: y}
}

// clamp bounds v to [lo, hi]. When the range is empty (tooltip larger than
// the available space) lo wins so the tooltip stays anchored to the start edge.
func clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
