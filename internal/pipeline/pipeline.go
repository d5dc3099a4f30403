package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"carbonstream/internal/alerting"
	"carbonstream/internal/fetcher"
	"carbonstream/internal/storage"
	"carbonstream/internal/validator"
)

// Pipeline sequences one ETL execution: fetch both documents, validate,
// dedup-check, persist, and record the outcome. Control flow is strictly
// linear; there is no internal concurrency.
type Pipeline struct {
	intensity  fetcher.IntensityFetcher
	generation fetcher.GenerationFetcher
	validator  *validator.Validator
	store      storage.TelemetryStore
	runs       storage.RunStore
	notifier   alerting.Notifier
	threshold  int
	logger     zerolog.Logger
}

// Options wire the pipeline's collaborators.
type Options struct {
	Intensity  fetcher.IntensityFetcher
	Generation fetcher.GenerationFetcher
	Validator  *validator.Validator
	Store      storage.TelemetryStore
	Runs       storage.RunStore

	// Notifier, when set, is told about persisted samples at or above
	// ThresholdGCO2. Alert delivery never affects the run result.
	Notifier      alerting.Notifier
	ThresholdGCO2 int
}

// New constructs a Pipeline.
func New(opts Options, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		intensity:  opts.Intensity,
		generation: opts.Generation,
		validator:  opts.Validator,
		store:      opts.Store,
		runs:       opts.Runs,
		notifier:   opts.Notifier,
		threshold:  opts.ThresholdGCO2,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// Execute performs one run and returns its outcome. Stage errors are
// absorbed here: whichever stage fails, exactly one RunOutcome is produced
// and a single best-effort attempt is made to record it. A recording
// failure is logged but never replaces the run result.
func (p *Pipeline) Execute(ctx context.Context) storage.RunOutcome {
	started := time.Now().UTC()

	rows, runErr := p.run(ctx)

	outcome := storage.RunOutcome{
		RunTS:           started,
		Status:          storage.RunStatusSuccess,
		RowsInserted:    rows,
		ExecutionTimeMS: time.Since(started).Milliseconds(),
	}
	if runErr != nil {
		msg := runErr.Error()
		outcome.Status = storage.RunStatusFailure
		outcome.ErrorMessage = &msg
	}

	var summary *zerolog.Event
	if runErr != nil {
		summary = p.logger.Error().Err(runErr)
	} else {
		summary = p.logger.Info()
	}
	summary.
		Str("status", string(outcome.Status)).
		Int("rows_inserted", outcome.RowsInserted).
		Int64("execution_time_ms", outcome.ExecutionTimeMS).
		Msg("run complete")

	if p.runs != nil {
		if err := p.runs.InsertRunOutcome(ctx, outcome); err != nil {
			p.logger.Error().Err(err).Msg("failed to record run outcome")
		}
	}

	return outcome
}

func (p *Pipeline) run(ctx context.Context) (int, error) {
	p.logger.Info().Str("stage", "fetch").Msg("fetching intensity document")
	intensityRaw, err := p.intensity.FetchIntensity(ctx)
	if err != nil {
		return 0, err
	}

	p.logger.Info().Str("stage", "fetch").Msg("fetching generation document")
	generationRaw, err := p.generation.FetchGeneration(ctx)
	if err != nil {
		return 0, err
	}

	sample, err := p.validator.Validate(intensityRaw, generationRaw)
	if err != nil {
		return 0, err
	}

	exists, err := p.store.SampleExists(ctx, sample.Timestamp)
	if err != nil {
		return 0, err
	}
	if exists {
		// Expected under an hourly schedule against a half-hourly feed.
		p.logger.Info().
			Str("stage", "dedup").
			Time("sample_ts", sample.Timestamp).
			Msg("sample already stored, skipping insert")
		return 0, nil
	}

	if err := p.store.InsertSample(ctx, sample); err != nil {
		return 0, err
	}

	p.logger.Info().
		Str("stage", "persist").
		Time("sample_ts", sample.Timestamp).
		Int("overall_intensity", sample.OverallIntensity).
		Msg("sample persisted")

	p.maybeAlert(ctx, sample)

	return 1, nil
}

func (p *Pipeline) maybeAlert(ctx context.Context, sample storage.TelemetrySample) {
	if p.notifier == nil || p.threshold <= 0 || sample.OverallIntensity < p.threshold {
		return
	}

	note := alerting.Notification{
		Timestamp:        sample.Timestamp,
		OverallIntensity: sample.OverallIntensity,
		ThresholdGCO2:    p.threshold,
		FuelGasPerc:      sample.FuelGasPerc,
		FuelNuclearPerc:  sample.FuelNuclearPerc,
		FuelWindPerc:     sample.FuelWindPerc,
		FuelSolarPerc:    sample.FuelSolarPerc,
	}
	if err := p.notifier.Notify(ctx, note); err != nil {
		p.logger.Error().Err(err).Time("sample_ts", sample.Timestamp).Msg("failed to dispatch alert")
	}
}
