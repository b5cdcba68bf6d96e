package chart

import (
	"fmt"
	"math"
	"strconv"

	"bilancio/internal/calendar"
	"bilancio/internal/core"
	"bilancio/internal/position"
)

// Series is a named, colored time series as handed to the chart wrapper.
type Series struct {
	ID     string                `json:"id"`
	Name   string                `json:"name"`
	Color  string                `json:"color"`
	Points []core.ChartDataPoint `json:"points"`
}

// ValueAt returns the series value at an exact ISO time.
func (s Series) ValueAt(iso string) (float64, bool) {
	for _, p := range s.Points {
		if p.Time == iso {
			return p.Value, true
		}
		if p.Time > iso {
			break
		}
	}
	return 0, false
}

// Hover describes one cursor-move frame over the plot area.
type Hover struct {
	Time      string     `json:"time"`
	Cursor    core.Point `json:"cursor"`
	Tooltip   core.Size  `json:"tooltip"`
	Container core.Size  `json:"container"`
}

// Formatter renders a series value for display.
type Formatter func(float64) string

// ComposeTooltip builds the tooltip model for a hover frame. It returns nil
// when the cursor is outside the container or no series has a value at the
// hovered time.
func ComposeTooltip(series []Series, h Hover, format Formatter) *core.TooltipData {
	if h.Time == "" || !insideContainer(h.Cursor, h.Container) {
		return nil
	}
	if format == nil {
		format = FormatEuros
	}
	entries := make([]core.TooltipEntry, 0, len(series))
	for _, s := range series {
		v, ok := s.ValueAt(h.Time)
		if !ok {
			continue
		}
		entries = append(entries, core.TooltipEntry{
			SeriesID:       s.ID,
			SeriesName:     s.Name,
			Value:          v,
			ValueFormatted: format(v),
			Color:          s.Color,
		})
	}
	if len(entries) == 0 {
		return nil
	}
	return &core.TooltipData{
		Time:     h.Time,
		Label:    calendar.MonthLabel(h.Time),
		Entries:  entries,
		Position: position.PlaceInContainer(h.Cursor, h.Tooltip, h.Container, position.CursorOffset),
	}
}

func insideContainer(p core.Point, c core.Size) bool {
	return p.X >= 0 && p.Y >= 0 && p.X <= c.Width && p.Y <= c.Height
}

// FormatEuros formats a value in euros with two decimals and a comma
// separator (e.g. "€1234,50").
func FormatEuros(v float64) string {
	cents := int64(math.Round(v * 100))
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := strconv.FormatInt(cents/100, 10) + "," + fmt.Sprintf("%02d", cents%100)
	if neg {
		return "-€" + s
	}
	return "€" + s
}
