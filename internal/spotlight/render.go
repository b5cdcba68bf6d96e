package spotlight

import (
	"fmt"
	"html/template"
	"io"

	"github.com/microcosm-cc/bluemonday"

	"bilancio/internal/core"
	"bilancio/internal/position"
)

var policy = bluemonday.UGCPolicy()

// SanitizeHTML strips anything but user-content markup from s. Catalog
// bodies are authored YAML, but they are still treated as untrusted.
func SanitizeHTML(s string) template.HTML {
	return template.HTML(policy.Sanitize(s))
}

var overlayTmpl = template.Must(template.New("overlay").Parse(`<div class="tour-overlay" data-tour-overlay>
<svg class="tour-overlay__mask" width="{{.Viewport.Width}}" height="{{.Viewport.Height}}" viewBox="0 0 {{.Viewport.Width}} {{.Viewport.Height}}" aria-hidden="true">
<defs><mask id="tour-spotlight-mask">
<rect x="0" y="0" width="{{.Viewport.Width}}" height="{{.Viewport.Height}}" fill="white"/>
{{- with .Cutout}}
<rect x="{{.X}}" y="{{.Y}}" width="{{.Width}}" height="{{.Height}}" rx="{{$.Radius}}" ry="{{$.Radius}}" fill="black"/>
{{- end}}
</mask></defs>
<rect x="0" y="0" width="{{.Viewport.Width}}" height="{{.Viewport.Height}}" fill="rgba(15,23,42,0.6)" mask="url(#tour-spotlight-mask)"/>
{{- with .Cutout}}
<rect class="tour-overlay__ring" x="{{.X}}" y="{{.Y}}" width="{{.Width}}" height="{{.Height}}" rx="{{$.Radius}}" ry="{{$.Radius}}" fill="none" stroke="#0ea5e9" stroke-width="{{$.BorderWidth}}"/>
{{- end}}
</svg>
{{- if .BlockPointer}}
<div class="tour-overlay__blocker" data-tour-blocker></div>
{{- end}}
</div>
`))

// Render writes the overlay markup.
func Render(w io.Writer, o Overlay) error {
	if err := overlayTmpl.Execute(w, o); err != nil {
		return fmt.Errorf("render overlay: %w", err)
	}
	return nil
}

// TooltipView is the data behind one rendered tooltip.
type TooltipView struct {
	TourName   string
	Content    core.StepContent
	StepIndex  int
	StepCount  int
	Progress   int
	WaitingFor string
	Placement  core.Placement
	Position   position.Position
}

func (v TooltipView) StepNumber() int { return v.StepIndex + 1 }
func (v TooltipView) IsFirst() bool   { return v.StepIndex == 0 }
func (v TooltipView) IsLast() bool    { return v.StepCount > 0 && v.StepIndex == v.StepCount-1 }

// Body returns the sanitized long-form content.
func (v TooltipView) Body() template.HTML {
	return SanitizeHTML(v.Content.Body)
}

var tooltipTmpl = template.Must(template.New("tooltip").Parse(`<div class="tour-tooltip tour-tooltip--{{.Placement}}" role="dialog" aria-live="polite" style="top: {{.Position.Top}}px; left: {{.Position.Left}}px">
<header class="tour-tooltip__header">
<span class="tour-tooltip__tour">{{.TourName}}</span>
<span class="tour-tooltip__counter">{{.StepNumber}} / {{.StepCount}}</span>
</header>
<h3 class="tour-tooltip__title">{{.Content.Title}}</h3>
<p class="tour-tooltip__short">{{.Content.Short}}</p>
{{- with .Body}}
<div class="tour-tooltip__body">{{.}}</div>
{{- end}}
<div class="tour-tooltip__progress"><span style="width: {{.Progress}}%"></span></div>
<footer class="tour-tooltip__actions">
<button type="button" hx-post="/api/tour/end" hx-target="#tour-layer">Skip tour</button>
{{- if not .IsFirst}}
<button type="button" hx-post="/api/tour/prev" hx-target="#tour-layer">Back</button>
{{- end}}
{{- if .WaitingFor}}
<span class="tour-tooltip__waiting" data-waiting-for="{{.WaitingFor}}">Complete the action to continue</span>
<button type="button" class="tour-tooltip__skip-step" hx-post="/api/tour/skip" hx-target="#tour-layer">Skip step</button>
{{- else if .IsLast}}
<button type="button" class="tour-tooltip__primary" hx-post="/api/tour/next" hx-target="#tour-layer">Finish</button>
{{- else}}
<button type="button" class="tour-tooltip__primary" hx-post="/api/tour/next" hx-target="#tour-layer">Next</button>
{{- end}}
</footer>
</div>
`))

// RenderTooltip writes the tooltip markup.
func RenderTooltip(w io.Writer, v TooltipView) error {
	if err := tooltipTmpl.Execute(w, v); err != nil {
		return fmt.Errorf("render tooltip: %w", err)
	}
	return nil
}
