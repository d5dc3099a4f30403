package cli

import (
	"github.com/spf13/cobra"

	"carbonstream/internal/app"
)

var (
	showLimit int
	showRuns  bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print recent telemetry samples or run outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Show(cmd.Context(), app.ShowOptions{
			Limit: showLimit,
			Runs:  showRuns,
		})
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 24, "Number of rows to display")
	showCmd.Flags().BoolVar(&showRuns, "runs", false, "Show run outcomes instead of samples")
}
