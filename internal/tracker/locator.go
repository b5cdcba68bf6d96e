// Package tracker resolves tour step targets to on-screen rectangles and
// applies the step's fallback when a target is missing.
package tracker

import (
	"context"
	"errors"
	"sync"

	"bilancio/internal/core"
)

// ErrNoViewport is returned when a locator has not yet learned the viewport size.
var ErrNoViewport = errors.New("viewport size unknown")

// Locator finds elements by selector. A target that does not exist is
// reported as found=false with a nil error; errors are reserved for
// locator failures.
type Locator interface {
	Resolve(ctx context.Context, selector string) (rect core.TargetRect, found bool, err error)
	Viewport(ctx context.Context) (core.Size, error)
	ScrollIntoView(ctx context.Context, selector string) error
}

// StaticLocator answers from rectangles the browser reported for the
// current layout tick. Scroll requests are queued so the HTTP layer can hand
// them back to the client.
type StaticLocator struct {
	mu       sync.Mutex
	viewport core.Size
	rects    map[string]core.TargetRect
	scrolls  []string
}

func NewStaticLocator() *StaticLocator {
	return &StaticLocator{rects: make(map[string]core.TargetRect)}
}

// Report replaces the known layout. Selectors absent from rects are treated
// as missing from the page.
func (l *StaticLocator) Report(viewport core.Size, rects map[string]core.TargetRect) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.viewport = viewport
	l.rects = make(map[string]core.TargetRect, len(rects))
	for sel, r := range rects {
		l.rects[sel] = r.Normalize()
	}
}

func (l *StaticLocator) Resolve(_ context.Context, selector string) (core.TargetRect, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rects[selector]
	return r, ok, nil
}

func (l *StaticLocator) Viewport(context.Context) (core.Size, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.viewport.Width <= 0 || l.viewport.Height <= 0 {
		return core.Size{}, ErrNoViewport
	}
	return l.viewport, nil
}

// ScrollIntoView records the request and optimistically assumes the element
// will end up centered, so the next Resolve reflects the post-scroll layout
// until the browser reports real numbers.
func (l *StaticLocator) ScrollIntoView(_ context.Context, selector string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.scrolls = append(l.scrolls, selector)
	r, ok := l.rects[selector]
	if !ok || l.viewport.Width <= 0 {
		return nil
	}
	top := (l.viewport.Height - r.Height) / 2
	left := (l.viewport.Width - r.Width) / 2
	if r.Width > l.viewport.Width {
		left = 0
	}
	if r.Height > l.viewport.Height {
		top = 0
	}
	l.rects[selector] = core.RectFrom(top, left, r.Width, r.Height)
	return nil
}

// TakeScrollRequests drains the queued scroll requests.
func (l *StaticLocator) TakeScrollRequests() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.scrolls
	l.scrolls = nil
	return out
}
