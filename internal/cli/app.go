package cli

import (
	"fmt"

	"bilancio/internal/analytics"
	"bilancio/internal/config"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
	"bilancio/internal/tour"
)

// Projection computes the dashboard projection described by cfg.
func Projection(cfg *config.Config) (services.Projection, error) {
	p, err := services.Project(services.ProjectionParams{
		Start:           cfg.ProjectionStart,
		Months:          cfg.ProjectionMonths,
		OpeningBalance:  cfg.OpeningBalance,
		MonthlyIncome:   cfg.MonthlyIncome,
		MonthlyExpenses: cfg.MonthlyExpenses,
		AnnualReturn:    cfg.AnnualReturn,
	})
	if err != nil {
		return services.Projection{}, fmt.Errorf("build projection: %w", err)
	}
	return p, nil
}

// AnalyticsFactory logs every lifecycle event and, when pub is not nil,
// also publishes it.
func AnalyticsFactory(logger *applog.Logger, pub analytics.Publisher) services.AnalyticsFactory {
	tourLog := logger.WithComponent(applog.ComponentTour).Logger
	amqpLog := logger.WithComponent(applog.ComponentAMQP).Logger
	return func(user string) tour.AnalyticsFunc {
		callbacks := []tour.AnalyticsFunc{analytics.Log(tourLog, user)}
		if pub != nil {
			callbacks = append(callbacks, analytics.AMQP(pub, user, amqpLog))
		}
		return analytics.FanOut(callbacks...)
	}
}
