// Package chart slices time series into preset windows and builds the
// hover tooltip model for chart components.
package chart

import (
	"sort"
	"strings"
	"time"

	"bilancio/internal/calendar"
	"bilancio/internal/core"
)

const (
	Preset1Y  Preset = "1Y"
	Preset2Y  Preset = "2Y"
	Preset5Y  Preset = "5Y"
	Preset10Y Preset = "10Y"
	PresetAll Preset = "ALL"
)

// Preset is a named, fixed-width time window.
type Preset string

var presetMonths = map[Preset]int{
	Preset1Y:  12,
	Preset2Y:  24,
	Preset5Y:  60,
	Preset10Y: 120,
}

// Presets lists the presets in display order.
func Presets() []Preset {
	return []Preset{Preset1Y, Preset2Y, Preset5Y, Preset10Y, PresetAll}
}

// ParsePreset accepts presets case-insensitively.
func ParsePreset(s string) (Preset, bool) {
	p := Preset(strings.ToUpper(strings.TrimSpace(s)))
	if p == PresetAll {
		return p, true
	}
	_, ok := presetMonths[p]
	return p, ok
}

// Months returns the width of a named preset; ALL and unknown presets report 0.
func (p Preset) Months() int {
	return presetMonths[p]
}

// Window is an inclusive [From, To] range of ISO dates.
type Window struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ResolvePreset computes the visible range for a preset over data sorted by
// ascending time. Named presets end at the last point and start that many
// months earlier, never before the first point. ALL and unknown presets
// span the whole series. Empty data yields a zero-length window at now.
func ResolvePreset(data []core.ChartDataPoint, preset Preset, now time.Time) Window {
	if len(data) == 0 {
		today := now.UTC().Format(calendar.ISOLayout)
		return Window{From: today, To: today}
	}
	first, last := data[0].Time, data[len(data)-1].Time
	months := preset.Months()
	if months == 0 {
		return Window{From: first, To: last}
	}
	to, err := calendar.ParseISO(last)
	if err != nil {
		return Window{From: first, To: last}
	}
	from := calendar.SubtractMonthsClamped(to, months).Format(calendar.ISOLayout)
	// ISO dates compare correctly as strings.
	if from < first {
		from = first
	}
	return Window{From: from, To: last}
}

// Slice returns the points inside w.
func Slice(data []core.ChartDataPoint, w Window) []core.ChartDataPoint {
	lo := sort.Search(len(data), func(i int) bool { return data[i].Time >= w.From })
	hi := sort.Search(len(data), func(i int) bool { return data[i].Time > w.To })
	if lo >= hi {
		return []core.ChartDataPoint{}
	}
	out := make([]core.ChartDataPoint, hi-lo)
	copy(out, data[lo:hi])
	return out
}

// Values extracts the value column of a series.
func Values(data []core.ChartDataPoint) []float64 {
	out := make([]float64, len(data))
	for i, p := range data {
		out[i] = p.Value
	}
	return out
}
