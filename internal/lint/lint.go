// Package lint checks tour catalogs against a page: every step target must
// resolve, or the tour will fall back at runtime.
package lint

import (
	"context"
	"fmt"

	"bilancio/internal/core"
	"bilancio/internal/tracker"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one problem with one step.
type Finding struct {
	TourID   string   `json:"tourId"`
	StepID   string   `json:"stepId"`
	Target   string   `json:"target"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s %s/%s %s: %s", f.Severity, f.TourID, f.StepID, f.Target, f.Message)
}

type Options struct {
	// RequireBox also flags targets that resolve to an empty rect. Only
	// locators with a layout engine report sizes.
	RequireBox bool
}

// counter is implemented by locators that can count selector matches.
type counter interface {
	Count(selector string) int
}

// Check resolves every step target with loc. A missing target is an error
// when the step aborts the tour and a warning when it skips or centers.
// Steps without a target are not checked. Locators that can count matches
// also get a warning for ambiguous selectors. A locator failure stops the run.
func Check(ctx context.Context, loc tracker.Locator, tours []core.Tour, opts Options) ([]Finding, error) {
	var findings []Finding
	for _, t := range tours {
		for _, step := range t.Steps {
			if step.Target == "" {
				continue
			}
			step = step.WithDefaults()
			rect, found, err := loc.Resolve(ctx, step.Target)
			if err != nil {
				return findings, fmt.Errorf("resolve %s/%s: %w", t.ID, step.ID, err)
			}
			switch {
			case !found:
				findings = append(findings, Finding{
					TourID:   t.ID,
					StepID:   step.ID,
					Target:   step.Target,
					Severity: severityFor(step.Fallback),
					Message:  fmt.Sprintf("target not found (fallback %s)", step.Fallback),
				})
			case opts.RequireBox && (rect.Width <= 0 || rect.Height <= 0):
				findings = append(findings, Finding{
					TourID:   t.ID,
					StepID:   step.ID,
					Target:   step.Target,
					Severity: SeverityWarning,
					Message:  "target has an empty bounding box",
				})
			}
			if c, ok := loc.(counter); ok && found {
				if n := c.Count(step.Target); n > 1 {
					findings = append(findings, Finding{
						TourID:   t.ID,
						StepID:   step.ID,
						Target:   step.Target,
						Severity: SeverityWarning,
						Message:  fmt.Sprintf("target matches %d elements, only the first is highlighted", n),
					})
				}
			}
		}
	}
	return findings, nil
}

func severityFor(f core.FallbackBehavior) Severity {
	if f == core.FallbackAbort {
		return SeverityError
	}
	return SeverityWarning
}

// HasErrors reports whether any finding is an error.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}
