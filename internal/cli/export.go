package cli

import (
	"github.com/spf13/cobra"

	"btc-event-study/internal/app"
)

var (
	exportMetric     string
	exportCSVPath    string
	exportPNGPath    string
	exportSummaryCSV string
	exportMaxPoints  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a derived series as CSV/PNG, or the summary table as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			Metric:     exportMetric,
			CSVPath:    exportCSVPath,
			PNGPath:    exportPNGPath,
			SummaryCSV: exportSummaryCSV,
			MaxPoints:  exportMaxPoints,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportMetric, "metric", "", "Derived metric to export (e.g. fee_to_subsidy)")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write series CSV")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportSummaryCSV, "summary-csv", "", "Path to write the summary table CSV")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
