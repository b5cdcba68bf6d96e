package services

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"bilancio/internal/calendar"
	"bilancio/internal/chart"
	"bilancio/internal/core"
)

const (
	SeriesNetWorth      = "net-worth"
	SeriesContributions = "contributions"

	// MaxProjectionMonths caps the horizon at fifty years.
	MaxProjectionMonths = 600
)

var (
	ErrInvalidHorizon  = errors.New("projection horizon must be between 1 and 600 months")
	ErrNegativeExpense = errors.New("monthly expenses cannot be negative")
	ErrNegativeIncome  = errors.New("monthly income cannot be negative")
)

// ProjectionParams describes a household's monthly cashflow.
type ProjectionParams struct {
	Start           string  `json:"start"`
	Months          int     `json:"months"`
	OpeningBalance  float64 `json:"openingBalance"`
	MonthlyIncome   float64 `json:"monthlyIncome"`
	MonthlyExpenses float64 `json:"monthlyExpenses"`
	// AnnualReturn is a rate, e.g. 0.04 for 4%.
	AnnualReturn float64 `json:"annualReturn"`
}

// Metrics are the headline figures the dashboard explains with help articles.
type Metrics struct {
	NetWorth            float64 `json:"netWorth"`
	SavingsRate         float64 `json:"savingsRate"`
	EmergencyFundMonths float64 `json:"emergencyFundMonths"`
}

// Projection is a month-by-month forecast.
type Projection struct {
	Range   core.ProjectionRange `json:"range"`
	Series  []chart.Series       `json:"series"`
	Metrics Metrics              `json:"metrics"`
}

func (p ProjectionParams) Validate() error {
	var errs []string
	if p.Months < 1 || p.Months > MaxProjectionMonths {
		errs = append(errs, ErrInvalidHorizon.Error())
	}
	if p.MonthlyIncome < 0 {
		errs = append(errs, ErrNegativeIncome.Error())
	}
	if p.MonthlyExpenses < 0 {
		errs = append(errs, ErrNegativeExpense.Error())
	}
	if _, err := calendar.ParseISO(p.Start); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid projection: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Project compounds the monthly surplus at the monthly equivalent of the
// annual return. Month 0 is the opening balance.
func Project(p ProjectionParams) (Projection, error) {
	if err := p.Validate(); err != nil {
		return Projection{}, err
	}
	start, _ := calendar.NormalizeStart(p.Start)
	monthly := math.Pow(1+p.AnnualReturn, 1.0/12) - 1
	surplus := p.MonthlyIncome - p.MonthlyExpenses

	worth := make([]core.ChartDataPoint, p.Months)
	contrib := make([]core.ChartDataPoint, p.Months)
	balance, paidIn := p.OpeningBalance, p.OpeningBalance
	for i := 0; i < p.Months; i++ {
		if i > 0 {
			balance = balance*(1+monthly) + surplus
			paidIn += surplus
		}
		iso := calendar.DateAt(start, i).ISO
		worth[i] = core.ChartDataPoint{Time: iso, Value: round2(balance)}
		contrib[i] = core.ChartDataPoint{Time: iso, Value: round2(paidIn)}
	}

	return Projection{
		Range: calendar.Range(start, 0, p.Months-1),
		Series: []chart.Series{
			{ID: SeriesNetWorth, Name: "Net worth", Color: "#2563eb", Points: worth},
			{ID: SeriesContributions, Name: "Contributions", Color: "#9ca3af", Points: contrib},
		},
		Metrics: computeMetrics(p),
	}, nil
}

func computeMetrics(p ProjectionParams) Metrics {
	m := Metrics{NetWorth: round2(p.OpeningBalance)}
	if p.MonthlyIncome > 0 {
		m.SavingsRate = round2((p.MonthlyIncome - p.MonthlyExpenses) / p.MonthlyIncome * 100)
	}
	if p.MonthlyExpenses > 0 {
		m.EmergencyFundMonths = round2(p.OpeningBalance / p.MonthlyExpenses)
	}
	return m
}

// SeriesByID returns the series with the given id.
func (p Projection) SeriesByID(id string) (chart.Series, bool) {
	for _, s := range p.Series {
		if s.ID == id {
			return s, true
		}
	}
	return chart.Series{}, false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
