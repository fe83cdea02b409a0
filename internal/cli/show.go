package cli

import (
	"github.com/spf13/cobra"

	"btc-event-study/internal/app"
)

var showLimit int

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display stored summary records",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ShowOptions{
			Limit: showLimit,
		}
		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 100, "Maximum records to display")
}
