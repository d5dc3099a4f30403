package app

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"carbonstream/internal/storage"
)

func sampleAt(ts time.Time, intensity int) storage.TelemetrySample {
	return storage.TelemetrySample{
		Timestamp:        ts,
		OverallIntensity: intensity,
		FuelGasPerc:      20.0,
		FuelNuclearPerc:  21.9,
		FuelWindPerc:     57.0,
		FuelSolarPerc:    1.1,
	}
}

func TestDownsampleKeepsEndpoints(t *testing.T) {
	base := time.Date(2025, 12, 9, 0, 0, 0, 0, time.UTC)
	samples := make([]storage.TelemetrySample, 10)
	for i := range samples {
		samples[i] = sampleAt(base.Add(time.Duration(i)*time.Hour), 100+i)
	}

	got := downsampleSamples(samples, 4)
	if len(got) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(samples[0].Timestamp) {
		t.Fatal("first sample should survive downsampling")
	}
	if !got[3].Timestamp.Equal(samples[9].Timestamp) {
		t.Fatal("last sample should survive downsampling")
	}
}

func TestDownsampleNoopWhenUnderLimit(t *testing.T) {
	samples := []storage.TelemetrySample{sampleAt(time.Now(), 100)}
	if got := downsampleSamples(samples, 10); len(got) != 1 {
		t.Fatalf("expected passthrough, got %d samples", len(got))
	}
}

func TestWriteSamplesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "samples.csv")
	ts := time.Date(2025, 12, 9, 14, 0, 0, 0, time.UTC)

	if err := writeSamplesCSV(path, []storage.TelemetrySample{sampleAt(ts, 90)}); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d rows", len(rows))
	}
	if rows[1][0] != "2025-12-09T14:00:00Z" || rows[1][1] != "90" {
		t.Fatalf("unexpected row: %v", rows[1])
	}
}
