package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"carbonstream/internal/app"
)

var (
	exportCSVPath   string
	exportPNGPath   string
	exportFrom      string
	exportTo        string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export historical telemetry as CSV and/or PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			CSVPath:   exportCSVPath,
			PNGPath:   exportPNGPath,
			MaxPoints: exportMaxPoints,
		}

		if exportFrom != "" {
			from, err := time.Parse(time.RFC3339, exportFrom)
			if err != nil {
				return fmt.Errorf("parse --from: %w", err)
			}
			opts.From = &from
		}
		if exportTo != "" {
			to, err := time.Parse(time.RFC3339, exportTo)
			if err != nil {
				return fmt.Errorf("parse --to: %w", err)
			}
			opts.To = &to
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Write samples to a CSV file at this path")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Render samples to a PNG chart at this path")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Window start (RFC 3339)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Window end (RFC 3339)")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum number of data points to export")
}
