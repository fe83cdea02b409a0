package cli

import (
	"github.com/spf13/cobra"

	"btc-event-study/internal/app"
)

var (
	summarizeCSVPath string
	summarizeDryRun  bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Run the event study and store the summary table",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SummarizeOptions{
			CSVPath: summarizeCSVPath,
			DryRun:  summarizeDryRun,
		}
		return getApp().Summarize(cmd.Context(), opts)
	},
}

func init() {
	summarizeCmd.Flags().StringVar(&summarizeCSVPath, "csv", "", "Also write the summary table as CSV")
	summarizeCmd.Flags().BoolVar(&summarizeDryRun, "dry-run", false, "Compute without writing to storage")
}
