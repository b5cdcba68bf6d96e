package tracker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"

	"bilancio/internal/core"
)

// RodLocator measures targets on a live page driven over CDP.
type RodLocator struct {
	page *rod.Page
}

func NewRodLocator(page *rod.Page) *RodLocator {
	return &RodLocator{page: page}
}

type jsRect struct {
	Found  bool    `json:"found"`
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (l *RodLocator) Resolve(ctx context.Context, selector string) (core.TargetRect, bool, error) {
	if selector == "" {
		return core.TargetRect{}, false, nil
	}
	res, err := l.page.Context(ctx).Eval(fmt.Sprintf(`() => {
		let el = null;
		try { el = document.querySelector(%q); } catch (e) { return JSON.stringify({found: false}); }
		if (!el) return JSON.stringify({found: false});
		const r = el.getBoundingClientRect();
		return JSON.stringify({found: true, top: r.top, left: r.left, width: r.width, height: r.height});
	}`, selector))
	if err != nil {
		return core.TargetRect{}, false, fmt.Errorf("rod: resolve %q: %w", selector, err)
	}

	var r jsRect
	if err := json.Unmarshal([]byte(res.Value.Str()), &r); err != nil {
		return core.TargetRect{}, false, fmt.Errorf("rod: decode rect: %w", err)
	}
	if !r.Found {
		return core.TargetRect{}, false, nil
	}
	return core.RectFrom(r.Top, r.Left, r.Width, r.Height), true, nil
}

func (l *RodLocator) Viewport(ctx context.Context) (core.Size, error) {
	res, err := l.page.Context(ctx).Eval(`() => JSON.stringify({width: window.innerWidth, height: window.innerHeight})`)
	if err != nil {
		return core.Size{}, fmt.Errorf("rod: viewport: %w", err)
	}
	var vp core.Size
	if err := json.Unmarshal([]byte(res.Value.Str()), &vp); err != nil {
		return core.Size{}, fmt.Errorf("rod: decode viewport: %w", err)
	}
	return vp, nil
}

func (l *RodLocator) ScrollIntoView(ctx context.Context, selector string) error {
	_, err := l.page.Context(ctx).Eval(fmt.Sprintf(`() => {
		const el = document.querySelector(%q);
		if (el) el.scrollIntoView({behavior: "instant", block: "center", inline: "center"});
	}`, selector))
	if err != nil {
		return fmt.Errorf("rod: scroll %q: %w", selector, err)
	}
	return nil
}
