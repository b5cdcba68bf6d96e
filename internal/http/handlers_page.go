package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"bilancio/internal/catalog"
	"bilancio/internal/chart"
	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
)

const (
	plotWidth  = 800.0
	plotHeight = 240.0
)

type indexData struct {
	User       string
	Projection services.Projection
	Preset     chart.Preset
	Presets    []chart.Preset
	Window     chart.Window
	NetWorth   string
	Paid       string
	Tours      []core.Tour
	Articles   []catalog.Article
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.RenderIndex(r.Context(), &buf, userFromRequest(r), r.URL.Query().Get("preset")); err != nil {
		s.fail(w, r, applog.OpRender, "Failed to render page", err)
		return
	}
	NewHTMXResponse().BodyHTML(buf.String()).Write(w)
}

// RenderIndex writes the dashboard page as user would see it.
func (s *Server) RenderIndex(ctx context.Context, w io.Writer, user, preset string) error {
	tours, err := s.deps.Guide.Available(ctx, user)
	if err != nil {
		return fmt.Errorf("load tours: %w", err)
	}

	p := presetParam(preset)
	data := indexData{
		User:       user,
		Projection: s.deps.Projection,
		Preset:     p,
		Presets:    chart.Presets(),
		Tours:      tours,
		Articles:   s.deps.Catalog.Articles(),
	}
	if worth, ok := s.deps.Projection.SeriesByID(services.SeriesNetWorth); ok {
		win, worthPts := s.windowed(worth, p)
		data.Window = win
		paidPts := []core.ChartDataPoint{}
		if paid, ok := s.deps.Projection.SeriesByID(services.SeriesContributions); ok {
			paidPts = chart.Slice(paid.Points, win)
		}
		lo, hi := valueBounds(worthPts, paidPts)
		data.NetWorth = polyline(worthPts, lo, hi)
		data.Paid = polyline(paidPts, lo, hi)
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	return nil
}

func valueBounds(series ...[]core.ChartDataPoint) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, pts := range series {
		for _, p := range pts {
			lo = math.Min(lo, p.Value)
			hi = math.Max(hi, p.Value)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 1
	}
	if hi == lo {
		hi = lo + 1
	}
	return lo, hi
}

// polyline maps evenly spaced points into the plot box as SVG coordinates.
// The x spacing matches what chart.NearestByX assumes on hover.
func polyline(pts []core.ChartDataPoint, lo, hi float64) string {
	if len(pts) == 0 {
		return ""
	}
	var b strings.Builder
	step := 0.0
	if len(pts) > 1 {
		step = plotWidth / float64(len(pts)-1)
	}
	for i, p := range pts {
		if i > 0 {
			b.WriteByte(' ')
		}
		x := float64(i) * step
		y := plotHeight - (p.Value-lo)/(hi-lo)*plotHeight
		b.WriteString(strconv.FormatFloat(x, 'f', 1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(y, 'f', 1, 64))
	}
	return b.String()
}
