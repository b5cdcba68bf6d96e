package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"bilancio/internal/catalog"
	apphttp "bilancio/internal/http"
	"bilancio/internal/lint"
	"bilancio/internal/services"
	"bilancio/internal/storage"
	"bilancio/internal/tracker"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Check targets against the server-rendered dashboard.",
	Long: `Renders the dashboard for a fresh user and looks up every step target in
the resulting HTML. No browser is needed, so sizes are not checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cat, err := catalog.Default()
		if err != nil {
			return err
		}
		tours, err := selectTours(cmd, cat)
		if err != nil {
			return err
		}

		projection, err := services.Project(services.ProjectionParams{
			Start:           "2025-01-01",
			Months:          120,
			OpeningBalance:  10000,
			MonthlyIncome:   3000,
			MonthlyExpenses: 2000,
		})
		if err != nil {
			return err
		}
		srv, err := apphttp.NewServer("", apphttp.Deps{
			Guide: services.NewGuideService(services.GuideConfig{
				Catalog: cat,
				KV:      storage.NewMemoryKV(),
				Logger:  logger.Logger,
			}),
			Catalog:    cat,
			Projection: projection,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		defer srv.Shutdown(ctx)

		var page bytes.Buffer
		if err := srv.RenderIndex(ctx, &page, "tourlint", ""); err != nil {
			return err
		}
		loc, err := tracker.NewDocumentLocator(&page)
		if err != nil {
			return fmt.Errorf("parse rendered page: %w", err)
		}

		findings, err := lint.Check(ctx, loc, tours, lint.Options{})
		if err != nil {
			return err
		}
		return report(cmd.OutOrStdout(), findings)
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
