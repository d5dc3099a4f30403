package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"carbonstream/internal/storage"
)

// Export renders historical telemetry as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	samples, err := store.ListSamplesBetween(ctx, from, to)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Msg("no samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSamples(samples []storage.TelemetrySample, max int) []storage.TelemetrySample {
	if max <= 0 || len(samples) <= max {
		return samples
	}

	result := make([]storage.TelemetrySample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, samples []storage.TelemetrySample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"sample_ts", "overall_intensity", "fuel_gas_perc", "fuel_nuclear_perc", "fuel_wind_perc", "fuel_solar_perc"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		record := []string{
			sample.Timestamp.Format(time.RFC3339),
			strconv.Itoa(sample.OverallIntensity),
			formatPerc(sample.FuelGasPerc),
			formatPerc(sample.FuelNuclearPerc),
			formatPerc(sample.FuelWindPerc),
			formatPerc(sample.FuelSolarPerc),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSamplesPNG(path string, samples []storage.TelemetrySample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(samples))
	intensity := make([]float64, len(samples))
	gas := make([]float64, len(samples))
	nuclear := make([]float64, len(samples))
	wind := make([]float64, len(samples))
	solar := make([]float64, len(samples))

	for i, sample := range samples {
		x[i] = sample.Timestamp
		intensity[i] = float64(sample.OverallIntensity)
		gas[i] = sample.FuelGasPerc
		nuclear[i] = sample.FuelNuclearPerc
		wind[i] = sample.FuelWindPerc
		solar[i] = sample.FuelSolarPerc
	}

	percFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.1f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Intensity (gCO2/kWh)",
			ValueFormatter: percFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Fuel mix (%)",
			ValueFormatter: percFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Intensity",
				XValues: x,
				YValues: intensity,
			},
			chart.TimeSeries{
				Name:    "Gas %",
				XValues: x,
				YValues: gas,
				YAxis:   chart.YAxisSecondary,
			},
			chart.TimeSeries{
				Name:    "Nuclear %",
				XValues: x,
				YValues: nuclear,
				YAxis:   chart.YAxisSecondary,
			},
			chart.TimeSeries{
				Name:    "Wind %",
				XValues: x,
				YValues: wind,
				YAxis:   chart.YAxisSecondary,
			},
			chart.TimeSeries{
				Name:    "Solar %",
				XValues: x,
				YValues: solar,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatPerc(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
