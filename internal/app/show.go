package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"carbonstream/internal/storage"
)

// Show prints recent samples or run outcomes.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if opts.Runs {
		return a.showRuns(ctx, store, opts.Limit)
	}
	return a.showSamples(ctx, store, opts.Limit)
}

func (a *App) showSamples(ctx context.Context, store storage.TelemetryStore, limit int) error {
	samples, err := store.ListRecentSamples(ctx, limit)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no samples found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tIntensity\tGas%\tNuclear%\tWind%\tSolar%")

	for _, sample := range samples {
		fmt.Fprintf(
			writer,
			"%s\t%d\t%.1f\t%.1f\t%.1f\t%.1f\n",
			sample.Timestamp.UTC().Format(time.RFC3339),
			sample.OverallIntensity,
			sample.FuelGasPerc,
			sample.FuelNuclearPerc,
			sample.FuelWindPerc,
			sample.FuelSolarPerc,
		)
	}

	return writer.Flush()
}

func (a *App) showRuns(ctx context.Context, store storage.RunStore, limit int) error {
	runs, err := store.ListRecentRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "no runs found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Run (UTC)\tStatus\tRows\tDuration (ms)\tError")

	for _, run := range runs {
		errMsg := ""
		if run.ErrorMessage != nil {
			errMsg = sanitizeInline(*run.ErrorMessage)
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%d\t%d\t%s\n",
			run.RunTS.UTC().Format(time.RFC3339),
			run.Status,
			run.RowsInserted,
			run.ExecutionTimeMS,
			errMsg,
		)
	}

	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
