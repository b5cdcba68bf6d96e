// Package spotlight computes and renders the darkened overlay that
// highlights the active tour target, and owns the overlay's interaction
// rules: which pointer events reach the page and which keys drive the tour.
package spotlight

import (
	"math"

	"bilancio/internal/core"
)

const (
	// DefaultRadius is the corner radius of the cutout.
	DefaultRadius = 8.0
	// BorderWidth is the stroke drawn around the cutout.
	BorderWidth = 2.0
)

// Cutout is the padded hole over the target, in viewport coordinates.
type Cutout struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect returns the cutout as a TargetRect.
func (c Cutout) Rect() core.TargetRect {
	return core.RectFrom(c.Y, c.X, c.Width, c.Height)
}

// Overlay is everything needed to draw one spotlight frame.
type Overlay struct {
	Viewport     core.Size `json:"viewport"`
	Cutout       *Cutout   `json:"cutout,omitempty"`
	Radius       float64   `json:"radius"`
	BorderWidth  float64   `json:"borderWidth"`
	BlockPointer bool      `json:"blockPointer"`
}

// Compute builds the overlay for a target. A nil rect darkens the whole
// viewport with no cutout. The padded cutout is clipped to the viewport;
// a target entirely off-screen also yields no cutout.
func Compute(rect *core.TargetRect, padding float64, viewport core.Size, allowInteraction bool) Overlay {
	o := Overlay{
		Viewport:     viewport,
		Radius:       DefaultRadius,
		BorderWidth:  BorderWidth,
		BlockPointer: !allowInteraction,
	}
	if rect == nil {
		return o
	}
	if padding < 0 {
		padding = 0
	}

	x0 := math.Max(rect.Left-padding, 0)
	y0 := math.Max(rect.Top-padding, 0)
	x1 := rect.Right + padding
	y1 := rect.Bottom + padding
	if viewport.Width > 0 {
		x1 = math.Min(x1, viewport.Width)
	}
	if viewport.Height > 0 {
		y1 = math.Min(y1, viewport.Height)
	}
	if x1 <= x0 || y1 <= y0 {
		return o
	}

	c := &Cutout{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
	// A radius larger than half the short side would pinch the shape.
	o.Radius = math.Min(DefaultRadius, math.Min(c.Width, c.Height)/2)
	o.Cutout = c
	return o
}

// Gate decides whether a pointer event may reach the underlying page.
type Gate struct {
	Overlay Overlay
	Tooltip core.TargetRect
}

// Allows reports whether a pointer at p passes through the overlay. The
// tooltip is always interactive; everything else is swallowed unless the
// step allows interaction.
func (g Gate) Allows(p core.Point) bool {
	return g.Tooltip.Contains(p) || !g.Overlay.BlockPointer
}
