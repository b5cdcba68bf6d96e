package http

import (
	"net/http"
	"strings"

	"bilancio/internal/calendar"
	"bilancio/internal/chart"
	"bilancio/internal/core"
	"bilancio/internal/services"
)

type chartWindowResponse struct {
	Preset  chart.Preset          `json:"preset"`
	Presets []chart.Preset        `json:"presets"`
	Series  string                `json:"series"`
	Window  chart.Window          `json:"window"`
	Points  []core.ChartDataPoint `json:"points"`
	Range   core.ProjectionRange  `json:"range"`
}

type chartTooltipRequest struct {
	chart.Hover

	Preset string `json:"preset"`
	// X and PlotWidth locate the crosshair when Time is empty.
	X         float64 `json:"x"`
	PlotWidth float64 `json:"plotWidth"`
}

type crossingResponse struct {
	Series    string               `json:"series"`
	Threshold float64              `json:"threshold"`
	Direction chart.Direction      `json:"direction"`
	Index     int                  `json:"index"`
	Point     *core.ChartDataPoint `json:"point,omitempty"`
	Date      *core.ProjectionDate `json:"date,omitempty"`
}

// presetParam resolves the preset query value. Unknown values fall back to ALL.
func presetParam(raw string) chart.Preset {
	if p, ok := chart.ParsePreset(raw); ok {
		return p
	}
	return chart.PresetAll
}

func (s *Server) seriesParam(r *http.Request) (chart.Series, bool) {
	id := strings.TrimSpace(r.URL.Query().Get("series"))
	if id == "" {
		id = services.SeriesNetWorth
	}
	return s.deps.Projection.SeriesByID(id)
}

func (s *Server) windowed(series chart.Series, preset chart.Preset) (chart.Window, []core.ChartDataPoint) {
	w := chart.ResolvePreset(series.Points, preset, s.deps.Now())
	return w, chart.Slice(series.Points, w)
}

func (s *Server) handleChartWindow(w http.ResponseWriter, r *http.Request) {
	series, ok := s.seriesParam(r)
	if !ok {
		NotFoundError(r, "Unknown series").Write(w)
		return
	}
	preset := presetParam(r.URL.Query().Get("preset"))
	win, points := s.windowed(series, preset)
	NewHTMXResponse().JSON(chartWindowResponse{
		Preset:  preset,
		Presets: chart.Presets(),
		Series:  series.ID,
		Window:  win,
		Points:  points,
		Range:   s.deps.Projection.Range,
	}).Write(w)
}

// handleChartTooltip answers one hover frame. Without an explicit time the
// crosshair x is snapped to the nearest visible point. A frame outside the
// chart yields 204.
func (s *Server) handleChartTooltip(w http.ResponseWriter, r *http.Request) {
	var req chartTooltipRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError(r, "Invalid hover: "+err.Error()).Write(w)
		return
	}
	ref, ok := s.deps.Projection.SeriesByID(services.SeriesNetWorth)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_, points := s.windowed(ref, presetParam(req.Preset))

	h := req.Hover
	switch {
	case h.Time == "" && req.PlotWidth > 0:
		if idx := chart.NearestByX(req.X, req.PlotWidth, len(points)); idx >= 0 {
			h.Time = points[idx].Time
		}
	case h.Time != "":
		if idx := chart.NearestIndex(points, h.Time); idx >= 0 {
			h.Time = points[idx].Time
		}
	}

	td := chart.ComposeTooltip(s.deps.Projection.Series, h, chart.FormatEuros)
	if td == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	NewHTMXResponse().JSON(td).Write(w)
}

func (s *Server) handleChartCrossing(w http.ResponseWriter, r *http.Request) {
	series, ok := s.seriesParam(r)
	if !ok {
		NotFoundError(r, "Unknown series").Write(w)
		return
	}
	threshold, ok := floatQuery(r, "threshold")
	if !ok {
		BadRequestError(r, "threshold is required").Write(w)
		return
	}
	dir := chart.Direction(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("direction"))))
	if dir == "" {
		dir = chart.Above
	}
	if !dir.IsValid() {
		BadRequestError(r, "direction must be above or below").Write(w)
		return
	}

	_, points := s.windowed(series, presetParam(r.URL.Query().Get("preset")))
	resp := crossingResponse{
		Series:    series.ID,
		Threshold: threshold,
		Direction: dir,
		Index:     chart.FindThresholdCrossing(chart.Values(points), threshold, dir),
	}
	if resp.Index >= 0 {
		p := points[resp.Index]
		resp.Point = &p
		startISO := s.deps.Projection.Range.Start.ISO
		if start, err := calendar.NormalizeStart(startISO); err == nil {
			if mi, err := calendar.ISOToMonthIndex(startISO, p.Time); err == nil {
				d := calendar.DateAt(start, mi)
				resp.Date = &d
			}
		}
	}
	NewHTMXResponse().JSON(resp).Write(w)
}
