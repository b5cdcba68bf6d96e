package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/spf13/cobra"

	"bilancio/internal/catalog"
	"bilancio/internal/lint"
	"bilancio/internal/tracker"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Check targets in a running dashboard with headless Chrome.",
	Long: `Loads --url in a headless browser and resolves every step target
against the laid-out page. Targets that exist but have no box are reported
as warnings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pageURL, _ := cmd.Flags().GetString("url")
		remote, _ := cmd.Flags().GetString("remote")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		user, _ := cmd.Flags().GetString("user")

		cat, err := catalog.Default()
		if err != nil {
			return err
		}
		tours, err := selectTours(cmd, cat)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		wsURL := remote
		if wsURL == "" {
			l := launcher.New().Headless(true)
			defer l.Cleanup()
			if wsURL, err = l.Launch(); err != nil {
				return fmt.Errorf("launch chrome: %w", err)
			}
			logger.Debug("Launched local chrome", "url", wsURL)
		}

		browser := rod.New().ControlURL(wsURL)
		if err := browser.Connect(); err != nil {
			return fmt.Errorf("connect chrome: %w", err)
		}
		defer browser.Close()

		page, err := browser.Page(proto.TargetCreateTarget{URL: ""})
		if err != nil {
			return fmt.Errorf("open page: %w", err)
		}
		if user != "" {
			if _, err := page.SetExtraHeaders([]string{"X-Help-User", user}); err != nil {
				return fmt.Errorf("set user header: %w", err)
			}
		}
		if err := page.Context(ctx).Navigate(pageURL); err != nil {
			return fmt.Errorf("navigate %s: %w", pageURL, err)
		}
		if err := page.Context(ctx).WaitLoad(); err != nil {
			return fmt.Errorf("wait load %s: %w", pageURL, err)
		}

		findings, err := lint.Check(ctx, tracker.NewRodLocator(page), tours, lint.Options{RequireBox: true})
		if err != nil {
			return err
		}
		return report(cmd.OutOrStdout(), findings)
	},
}

func init() {
	liveCmd.Flags().String("url", "http://localhost:8081/", "Dashboard URL")
	liveCmd.Flags().String("remote", "", "DevTools websocket of an existing Chrome (default launches one)")
	liveCmd.Flags().Duration("timeout", 30*time.Second, "Overall timeout")
	liveCmd.Flags().String("user", "tourlint", "Help user sent as X-Help-User")
	rootCmd.AddCommand(liveCmd)
}
