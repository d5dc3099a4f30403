package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"carbonstream/internal/alerting"
	"carbonstream/internal/storage"
	"carbonstream/internal/validator"
)

type fakeFetcher struct {
	payload json.RawMessage
	err     error
}

func (f *fakeFetcher) FetchIntensity(ctx context.Context) (json.RawMessage, error) {
	return f.payload, f.err
}

func (f *fakeFetcher) FetchGeneration(ctx context.Context) (json.RawMessage, error) {
	return f.payload, f.err
}

type fakeStore struct {
	samples   []storage.TelemetrySample
	outcomes  []storage.RunOutcome
	insertErr error
	existsErr error
	recordErr error
}

func (s *fakeStore) SampleExists(ctx context.Context, ts time.Time) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	for _, sample := range s.samples {
		if sample.Timestamp.Equal(ts) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) InsertSample(ctx context.Context, sample storage.TelemetrySample) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.samples = append(s.samples, sample)
	return nil
}

func (s *fakeStore) ListRecentSamples(ctx context.Context, limit int) ([]storage.TelemetrySample, error) {
	return s.samples, nil
}

func (s *fakeStore) ListSamplesBetween(ctx context.Context, from, to time.Time) ([]storage.TelemetrySample, error) {
	return s.samples, nil
}

func (s *fakeStore) CountSamples(ctx context.Context) (int64, error) {
	return int64(len(s.samples)), nil
}

func (s *fakeStore) InsertRunOutcome(ctx context.Context, outcome storage.RunOutcome) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.outcomes = append(s.outcomes, outcome)
	return nil
}

func (s *fakeStore) ListRecentRuns(ctx context.Context, limit int) ([]storage.RunOutcome, error) {
	return s.outcomes, nil
}

func freshIntensityDoc(intensity int) json.RawMessage {
	from := time.Now().UTC().Add(-15 * time.Minute).Truncate(time.Second).Format(time.RFC3339)
	return json.RawMessage(fmt.Sprintf(`{"intensity": %d, "from": %q}`, intensity, from))
}

var generationDoc = json.RawMessage(`{"wind": 57.0, "solar": 1.1, "gas": 20.0, "nuclear": 21.9}`)

func newTestPipeline(intensityDoc, generationRaw json.RawMessage, store *fakeStore) *Pipeline {
	return New(Options{
		Intensity:  &fakeFetcher{payload: intensityDoc},
		Generation: &fakeFetcher{payload: generationRaw},
		Validator:  validator.New(2*time.Hour, zerolog.Nop()),
		Store:      store,
		Runs:       store,
	}, zerolog.Nop())
}

func TestExecuteSuccess(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(freshIntensityDoc(90), generationDoc, store)

	outcome := p.Execute(context.Background())

	if outcome.Status != storage.RunStatusSuccess {
		t.Fatalf("status = %s, want success", outcome.Status)
	}
	if outcome.RowsInserted != 1 {
		t.Fatalf("rows inserted = %d, want 1", outcome.RowsInserted)
	}
	if outcome.ErrorMessage != nil {
		t.Fatalf("unexpected error message: %s", *outcome.ErrorMessage)
	}
	if len(store.samples) != 1 {
		t.Fatalf("expected 1 persisted sample, got %d", len(store.samples))
	}
	if len(store.outcomes) != 1 {
		t.Fatalf("expected 1 recorded outcome, got %d", len(store.outcomes))
	}

	sample := store.samples[0]
	if sample.OverallIntensity != 90 || sample.FuelWindPerc != 57.0 || sample.FuelSolarPerc != 1.1 {
		t.Fatalf("sample not normalized as expected: %+v", sample)
	}
}

func TestExecuteTwiceIsIdempotent(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(freshIntensityDoc(90), generationDoc, store)

	first := p.Execute(context.Background())
	second := p.Execute(context.Background())

	if first.Status != storage.RunStatusSuccess || first.RowsInserted != 1 {
		t.Fatalf("first run: %+v", first)
	}
	if second.Status != storage.RunStatusSuccess || second.RowsInserted != 0 {
		t.Fatalf("duplicate run should be a no-op success: %+v", second)
	}
	if len(store.samples) != 1 {
		t.Fatalf("expected exactly 1 telemetry row, got %d", len(store.samples))
	}
	if len(store.outcomes) != 2 {
		t.Fatalf("expected 2 run outcomes, got %d", len(store.outcomes))
	}
}

func TestExecuteFetchFailure(t *testing.T) {
	store := &fakeStore{}
	p := New(Options{
		Intensity:  &fakeFetcher{err: errors.New("connection refused")},
		Generation: &fakeFetcher{payload: generationDoc},
		Validator:  validator.New(2*time.Hour, zerolog.Nop()),
		Store:      store,
		Runs:       store,
	}, zerolog.Nop())

	outcome := p.Execute(context.Background())

	if outcome.Status != storage.RunStatusFailure {
		t.Fatalf("status = %s, want failure", outcome.Status)
	}
	if outcome.RowsInserted != 0 {
		t.Fatalf("rows inserted = %d, want 0", outcome.RowsInserted)
	}
	if outcome.ErrorMessage == nil || !strings.Contains(*outcome.ErrorMessage, "connection refused") {
		t.Fatalf("error message should carry the cause: %v", outcome.ErrorMessage)
	}
	if len(store.samples) != 0 {
		t.Fatal("no sample may be written on fetch failure")
	}
	if len(store.outcomes) != 1 {
		t.Fatalf("expected 1 recorded outcome, got %d", len(store.outcomes))
	}
}

func TestExecuteValidationFailure(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(freshIntensityDoc(1500), generationDoc, store)

	outcome := p.Execute(context.Background())

	if outcome.Status != storage.RunStatusFailure {
		t.Fatalf("status = %s, want failure", outcome.Status)
	}
	if outcome.ErrorMessage == nil || !strings.Contains(*outcome.ErrorMessage, "overall_intensity out of range") {
		t.Fatalf("error message should identify the range failure: %v", outcome.ErrorMessage)
	}
	if len(store.samples) != 0 {
		t.Fatal("no sample may be written on validation failure")
	}
	if len(store.outcomes) != 1 {
		t.Fatalf("expected 1 recorded outcome, got %d", len(store.outcomes))
	}
}

func TestExecutePersistFailure(t *testing.T) {
	store := &fakeStore{insertErr: &storage.PersistenceError{Op: "insert sample", Err: errors.New("constraint violation")}}
	p := newTestPipeline(freshIntensityDoc(90), generationDoc, store)

	outcome := p.Execute(context.Background())

	if outcome.Status != storage.RunStatusFailure {
		t.Fatalf("status = %s, want failure", outcome.Status)
	}
	if outcome.ErrorMessage == nil || !strings.Contains(*outcome.ErrorMessage, "insert sample") {
		t.Fatalf("error message should carry the persistence failure: %v", outcome.ErrorMessage)
	}
	if len(store.outcomes) != 1 {
		t.Fatalf("expected 1 recorded outcome, got %d", len(store.outcomes))
	}
}

func TestExecuteRecorderFailureDoesNotMaskResult(t *testing.T) {
	store := &fakeStore{recordErr: errors.New("etl_runs unavailable")}
	p := newTestPipeline(freshIntensityDoc(90), generationDoc, store)

	outcome := p.Execute(context.Background())

	if outcome.Status != storage.RunStatusSuccess || outcome.RowsInserted != 1 {
		t.Fatalf("recorder failure must not change the run result: %+v", outcome)
	}
	if len(store.samples) != 1 {
		t.Fatalf("expected 1 persisted sample, got %d", len(store.samples))
	}
}

func TestExecuteDispatchesThresholdAlert(t *testing.T) {
	store := &fakeStore{}
	notified := 0
	p := New(Options{
		Intensity:     &fakeFetcher{payload: freshIntensityDoc(450)},
		Generation:    &fakeFetcher{payload: generationDoc},
		Validator:     validator.New(2*time.Hour, zerolog.Nop()),
		Store:         store,
		Runs:          store,
		Notifier:      notifierFunc(func(alerting.Notification) { notified++ }),
		ThresholdGCO2: 300,
	}, zerolog.Nop())

	outcome := p.Execute(context.Background())
	if outcome.Status != storage.RunStatusSuccess {
		t.Fatalf("status = %s, want success", outcome.Status)
	}
	if notified != 1 {
		t.Fatalf("expected 1 alert, got %d", notified)
	}
}

type notifierFunc func(alerting.Notification)

func (f notifierFunc) Notify(ctx context.Context, note alerting.Notification) error {
	f(note)
	return nil
}
