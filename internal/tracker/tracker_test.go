package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/tour"
)

type catalog []core.Tour

func (c catalog) Tour(id string) (core.Tour, bool) {
	for _, t := range c {
		if t.ID == id {
			return t, true
		}
	}
	return core.Tour{}, false
}
func (c catalog) Tours() []core.Tour                      { return c }
func (c catalog) Content(string) (core.StepContent, bool) { return core.StepContent{}, false }

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func startMachine(t *testing.T, steps ...core.TourStep) *tour.Machine {
	t.Helper()
	m := tour.NewMachine(context.Background(), tour.Options{
		Catalog: catalog{{ID: "t", Name: "T", Steps: steps}},
		Logger:  quiet,
	})
	if !m.StartTour(context.Background(), "t") {
		t.Fatal("StartTour failed")
	}
	return m
}

var viewport = core.Size{Width: 1000, Height: 800}

func TestEnterTracksVisibleTarget(t *testing.T) {
	m := startMachine(t, core.TourStep{ID: "a", Target: "#a"})
	loc := NewStaticLocator()
	loc.Report(viewport, map[string]core.TargetRect{"#a": core.RectFrom(100, 100, 50, 20)})

	res := New(m, loc, quiet).Enter(context.Background())
	if res.Action != ActionTracked || res.Rect == nil || res.Rect.Bottom != 120 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Scrolled || len(loc.TakeScrollRequests()) != 0 {
		t.Fatal("visible target should not scroll")
	}
}

func TestEnterScrollsOffscreenTarget(t *testing.T) {
	m := startMachine(t, core.TourStep{ID: "a", Target: "#a"})
	loc := NewStaticLocator()
	loc.Report(viewport, map[string]core.TargetRect{"#a": core.RectFrom(1500, 100, 200, 100)})

	res := New(m, loc, quiet).Enter(context.Background())
	if !res.Scrolled {
		t.Fatal("expected scroll into view")
	}
	if got := loc.TakeScrollRequests(); len(got) != 1 || got[0] != "#a" {
		t.Fatalf("scroll requests = %v", got)
	}
	if res.Rect == nil || !res.Rect.InViewport(viewport) {
		t.Fatalf("rect after scroll should be centered, got %+v", res.Rect)
	}
	if res.Rect.Top != 350 || res.Rect.Left != 400 {
		t.Fatalf("rect = %+v, want centered at 350/400", res.Rect)
	}
}

func TestEnterFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		fallback core.FallbackBehavior
		action   Action
		idle     bool
	}{
		{"show-center", core.FallbackShowCenter, ActionCentered, false},
		{"default", "", ActionCentered, false},
		{"abort", core.FallbackAbort, ActionAborted, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := startMachine(t, core.TourStep{ID: "a", Target: "#missing", Fallback: tt.fallback})
			loc := NewStaticLocator()
			loc.Report(viewport, nil)

			res := New(m, loc, quiet).Enter(context.Background())
			if res.Action != tt.action || res.Rect != nil {
				t.Fatalf("result = %+v", res)
			}
			if got := m.Snapshot().State == tour.StateIdle; got != tt.idle {
				t.Fatalf("idle = %v, want %v", got, tt.idle)
			}
			if tt.idle && m.IsTourCompleted("t") {
				t.Fatal("abort must not complete the tour")
			}
		})
	}
}

func TestEnterSkipLandsOnNextStep(t *testing.T) {
	m := startMachine(t,
		core.TourStep{ID: "a", Target: "#gone", Fallback: core.FallbackSkip},
		core.TourStep{ID: "b", Target: "#gone2", Fallback: core.FallbackSkip},
		core.TourStep{ID: "c", Target: "#c"},
	)
	loc := NewStaticLocator()
	loc.Report(viewport, map[string]core.TargetRect{"#c": core.RectFrom(10, 10, 10, 10)})

	res := New(m, loc, quiet).Enter(context.Background())
	if res.Action != ActionTracked || res.Skipped != 2 || res.Snapshot.StepIndex != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestEnterSkipPastLastStepCompletes(t *testing.T) {
	m := startMachine(t, core.TourStep{ID: "a", Target: "#gone", Fallback: core.FallbackSkip})
	loc := NewStaticLocator()
	loc.Report(viewport, nil)

	res := New(m, loc, quiet).Enter(context.Background())
	if res.Action != ActionSkipped || !m.IsTourCompleted("t") {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestEnterCenterPlacementIgnoresTarget(t *testing.T) {
	m := startMachine(t, core.TourStep{ID: "a", Placement: core.PlacementCenter, Fallback: core.FallbackAbort})
	loc := NewStaticLocator()
	loc.Report(viewport, nil)

	if res := New(m, loc, quiet).Enter(context.Background()); res.Action != ActionCentered {
		t.Fatalf("action = %v", res.Action)
	}
}

type failingLocator struct{ StaticLocator }

func (*failingLocator) Resolve(context.Context, string) (core.TargetRect, bool, error) {
	return core.TargetRect{}, false, errors.New("cdp gone")
}

func TestEnterLocatorErrorKeepsStep(t *testing.T) {
	m := startMachine(t, core.TourStep{ID: "a", Target: "#a", Fallback: core.FallbackAbort})
	res := New(m, &failingLocator{}, quiet).Enter(context.Background())
	if res.Action != ActionCentered || m.Snapshot().State == tour.StateIdle {
		t.Fatalf("locator errors must not trigger fallback: %+v", res)
	}
}

func TestRefreshNeverTransitions(t *testing.T) {
	m := startMachine(t, core.TourStep{ID: "a", Target: "#a", Fallback: core.FallbackAbort})
	loc := NewStaticLocator()
	loc.Report(viewport, map[string]core.TargetRect{"#a": core.RectFrom(10, 10, 10, 10)})
	tr := New(m, loc, quiet)
	tr.Enter(context.Background())

	loc.Report(viewport, map[string]core.TargetRect{"#a": core.RectFrom(40, 10, 10, 10)})
	res := tr.Refresh(context.Background())
	if !res.Changed || res.Rect.Top != 40 {
		t.Fatalf("expected moved rect, got %+v", res)
	}
	if res := tr.Refresh(context.Background()); res.Changed {
		t.Fatal("unchanged layout reported as changed")
	}

	loc.Report(viewport, nil)
	res = tr.Refresh(context.Background())
	if res.Action != ActionCentered || !res.Changed {
		t.Fatalf("missing target on refresh should center, got %+v", res)
	}
	if m.Snapshot().State == tour.StateIdle {
		t.Fatal("refresh must not apply the abort fallback")
	}
}

func TestRefreshIdle(t *testing.T) {
	m := tour.NewMachine(context.Background(), tour.Options{Catalog: catalog{}, Logger: quiet})
	res := New(m, NewStaticLocator(), quiet).Refresh(context.Background())
	if res.Action != ActionIdle {
		t.Fatalf("action = %v", res.Action)
	}
}

func TestStaticLocatorViewportUnknown(t *testing.T) {
	if _, err := NewStaticLocator().Viewport(context.Background()); !errors.Is(err, ErrNoViewport) {
		t.Fatalf("err = %v", err)
	}
}

func TestDocumentLocator(t *testing.T) {
	html := `<html><body>
		<section data-tour="net-worth"><h2>Net worth</h2></section>
		<button data-tour="add-flow">Add</button>
		<button data-tour="add-flow">Add again</button>
	</body></html>`
	loc, err := NewDocumentLocator(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, found, _ := loc.Resolve(ctx, `[data-tour="net-worth"]`); !found {
		t.Fatal("net-worth should resolve")
	}
	if _, found, _ := loc.Resolve(ctx, `[data-tour="missing"]`); found {
		t.Fatal("missing selector resolved")
	}
	if n := loc.Count(`[data-tour="add-flow"]`); n != 2 {
		t.Fatalf("Count = %d, want 2", n)
	}
	if vp, _ := loc.Viewport(ctx); vp != DefaultDocumentViewport {
		t.Fatalf("viewport = %+v", vp)
	}
}
