package core

// Point is a position in CSS pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair, used for viewports, containers and tooltips.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// TargetRect is a snapshot of an element's bounding box in viewport coordinates.
type TargetRect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
}

// RectFrom builds a rect and derives Bottom/Right.
func RectFrom(top, left, width, height float64) TargetRect {
	return TargetRect{
		Top:    top,
		Left:   left,
		Width:  width,
		Height: height,
		Bottom: top + height,
		Right:  left + width,
	}
}

// Normalize recomputes Bottom/Right from Top/Left/Width/Height.
// Browsers report all six, but clients sometimes only send four.
func (r TargetRect) Normalize() TargetRect {
	return RectFrom(r.Top, r.Left, r.Width, r.Height)
}

// InViewport reports whether every edge of r lies inside the viewport.
func (r TargetRect) InViewport(vp Size) bool {
	return r.Top >= 0 && r.Left >= 0 && r.Bottom <= vp.Height && r.Right <= vp.Width
}

func (r TargetRect) Contains(p Point) bool {
	return p.X >= r.Left && p.X <= r.Right && p.Y >= r.Top && p.Y <= r.Bottom
}
