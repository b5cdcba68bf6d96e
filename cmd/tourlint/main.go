// Command tourlint checks that every tour step target exists on the
// dashboard, either in the rendered templates or in a live page.
package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bilancio/internal/catalog"
	"bilancio/internal/cli"
	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/lint"
)

var logger *applog.Logger

var rootCmd = &cobra.Command{
	Use:   "tourlint",
	Short: "Check tour step targets against the dashboard.",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("loglevel")
		logger = cli.SetupLogger(applog.ComponentLint, level)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("loglevel", "l", "warn", "Set log level. Available: debug, info, warn, error")
	rootCmd.PersistentFlags().String("tour", "", "Only check this tour")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// selectTours returns the catalog tours, or only the one named by --tour.
func selectTours(cmd *cobra.Command, cat *catalog.Catalog) ([]core.Tour, error) {
	id, _ := cmd.Flags().GetString("tour")
	if id == "" {
		return cat.Tours(), nil
	}
	t, ok := cat.Tour(id)
	if !ok {
		return nil, fmt.Errorf("unknown tour %q", id)
	}
	return []core.Tour{t}, nil
}

// report prints findings as a table and fails when any is an error.
func report(out io.Writer, findings []lint.Finding) error {
	if len(findings) == 0 {
		fmt.Fprintln(out, "All tour targets resolved.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SEVERITY\tTOUR\tSTEP\tTARGET\tMESSAGE")
	for _, f := range findings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.Severity, f.TourID, f.StepID, f.Target, f.Message)
	}
	w.Flush()

	if lint.HasErrors(findings) {
		return fmt.Errorf("%d finding(s), at least one error", len(findings))
	}
	return nil
}
