package services

import (
	"errors"
	"strings"
	"testing"

	"bilancio/internal/chart"
)

func TestProject(t *testing.T) {
	p, err := Project(ProjectionParams{
		Start:           "2025-06-15",
		Months:          13,
		OpeningBalance:  1000,
		MonthlyIncome:   3000,
		MonthlyExpenses: 2400,
	})
	if err != nil {
		t.Fatal(err)
	}

	if p.Range.Start.ISO != "2025-06-01" || p.Range.End.ISO != "2026-06-01" || p.Range.TotalMonths != 13 {
		t.Fatalf("range = %+v", p.Range)
	}
	worth, ok := p.SeriesByID(SeriesNetWorth)
	if !ok || len(worth.Points) != 13 {
		t.Fatalf("net worth series = %+v", worth)
	}
	// No return: the balance grows by the surplus each month.
	if got := worth.Points[12].Value; got != 1000+12*600 {
		t.Errorf("final balance = %v", got)
	}
	if p.Metrics.SavingsRate != 20 || p.Metrics.EmergencyFundMonths != 0.42 {
		t.Errorf("metrics = %+v", p.Metrics)
	}

	idx := chart.FindThresholdCrossing(chart.Values(worth.Points), 5000, chart.Above)
	if idx != 7 {
		t.Errorf("crossing 5000 at %d, want 7", idx)
	}
}

func TestProjectCompounds(t *testing.T) {
	p, err := Project(ProjectionParams{Start: "2025-01", Months: 13, OpeningBalance: 10000, AnnualReturn: 0.05})
	if err != nil {
		t.Fatal(err)
	}
	worth, _ := p.SeriesByID(SeriesNetWorth)
	contrib, _ := p.SeriesByID(SeriesContributions)
	if got := worth.Points[12].Value; got != 10500 {
		t.Errorf("one year at 5%% = %v, want 10500", got)
	}
	if got := contrib.Points[12].Value; got != 10000 {
		t.Errorf("contributions = %v", got)
	}
}

func TestProjectionValidate(t *testing.T) {
	tests := []struct {
		name   string
		params ProjectionParams
		want   string
	}{
		{"zero months", ProjectionParams{Start: "2025-01-01"}, ErrInvalidHorizon.Error()},
		{"too long", ProjectionParams{Start: "2025-01-01", Months: MaxProjectionMonths + 1}, ErrInvalidHorizon.Error()},
		{"negative income", ProjectionParams{Start: "2025-01-01", Months: 1, MonthlyIncome: -1}, ErrNegativeIncome.Error()},
		{"negative expenses", ProjectionParams{Start: "2025-01-01", Months: 1, MonthlyExpenses: -1}, ErrNegativeExpense.Error()},
		{"bad start", ProjectionParams{Start: "june", Months: 1}, "parse date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Project(tt.params)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
	if errors.Is(ProjectionParams{Start: "2025-01-01", Months: 1}.Validate(), ErrInvalidHorizon) {
		t.Fatal("valid params rejected")
	}
}
