package chart

import (
	"math"
	"sort"

	"bilancio/internal/calendar"
	"bilancio/internal/core"
)

const (
	Above Direction = "above"
	Below Direction = "below"
)

// Direction selects which side of a threshold counts as a crossing.
type Direction string

func (d Direction) IsValid() bool {
	return d == Above || d == Below
}

// FindThresholdCrossing returns the first index whose value reaches the
// threshold (>= for Above, <= for Below), or -1 when none does.
func FindThresholdCrossing(values []float64, threshold float64, dir Direction) int {
	for i, v := range values {
		switch dir {
		case Above:
			if v >= threshold {
				return i
			}
		case Below:
			if v <= threshold {
				return i
			}
		}
	}
	return -1
}

// NearestIndex maps an ISO time to the closest point of an ascending series.
// Ties resolve to the earlier point. An empty series yields -1.
func NearestIndex(data []core.ChartDataPoint, iso string) int {
	if len(data) == 0 {
		return -1
	}
	i := sort.Search(len(data), func(i int) bool { return data[i].Time >= iso })
	if i == 0 {
		return 0
	}
	if i == len(data) {
		return len(data) - 1
	}
	if data[i].Time == iso {
		return i
	}
	target, err := calendar.ParseISO(iso)
	if err != nil {
		return i
	}
	prev, errPrev := calendar.ParseISO(data[i-1].Time)
	next, errNext := calendar.ParseISO(data[i].Time)
	if errPrev != nil || errNext != nil {
		return i
	}
	if target.Sub(prev) <= next.Sub(target) {
		return i - 1
	}
	return i
}

// NearestByX maps a crosshair x offset inside a plot of plotWidth pixels to
// the index of the closest of count evenly spaced points.
func NearestByX(x, plotWidth float64, count int) int {
	if count <= 0 {
		return -1
	}
	if count == 1 || plotWidth <= 0 {
		return 0
	}
	step := plotWidth / float64(count-1)
	idx := int(math.Round(x / step))
	if idx < 0 {
		return 0
	}
	if idx > count-1 {
		return count - 1
	}
	return idx
}
