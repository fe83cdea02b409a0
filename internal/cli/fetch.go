package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"btc-event-study/internal/app"
)

var (
	fetchFrom    string
	fetchTo      string
	fetchMetrics []string
	fetchDryRun  bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch raw daily series from configured providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.FetchOptions{
			Metrics: fetchMetrics,
			DryRun:  fetchDryRun,
		}

		if fetchFrom != "" {
			from, err := time.Parse("2006-01-02", fetchFrom)
			if err != nil {
				return fmt.Errorf("invalid --from value: %w", err)
			}
			opts.From = &from
		}

		if fetchTo != "" {
			to, err := time.Parse("2006-01-02", fetchTo)
			if err != nil {
				return fmt.Errorf("invalid --to value: %w", err)
			}
			opts.To = &to
		}

		if opts.From != nil && opts.To != nil && opts.To.Before(*opts.From) {
			return fmt.Errorf("--from must not be after --to")
		}

		return getApp().Fetch(cmd.Context(), opts)
	},
}

func init() {
	fetchCmd.Flags().StringVar(&fetchFrom, "from", "", "Start date (YYYY-MM-DD, inclusive; defaults to config)")
	fetchCmd.Flags().StringVar(&fetchTo, "to", "", "End date (YYYY-MM-DD, inclusive; defaults to config)")
	fetchCmd.Flags().StringSliceVar(&fetchMetrics, "metric", nil, "Restrict to specific raw metrics (repeatable)")
	fetchCmd.Flags().BoolVar(&fetchDryRun, "dry-run", false, "Fetch and normalize without writing to storage")
}
