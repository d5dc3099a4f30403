package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	createTelemetrySQL = `CREATE TABLE IF NOT EXISTS telemetry_samples (
        id                BIGSERIAL PRIMARY KEY,
        sample_ts         TIMESTAMPTZ NOT NULL DEFAULT now() UNIQUE,
        overall_intensity INTEGER NOT NULL,
        fuel_gas_perc     DOUBLE PRECISION NOT NULL DEFAULT 0,
        fuel_nuclear_perc DOUBLE PRECISION NOT NULL DEFAULT 0,
        fuel_wind_perc    DOUBLE PRECISION NOT NULL DEFAULT 0,
        fuel_solar_perc   DOUBLE PRECISION NOT NULL DEFAULT 0
    );`

	createRunsSQL = `CREATE TABLE IF NOT EXISTS etl_runs (
        id                BIGSERIAL PRIMARY KEY,
        run_ts            TIMESTAMPTZ NOT NULL DEFAULT now(),
        status            TEXT NOT NULL,
        rows_inserted     INTEGER NOT NULL DEFAULT 0,
        execution_time_ms BIGINT NOT NULL DEFAULT 0,
        error_message     TEXT
    );`

	sampleExistsSQL = `SELECT EXISTS (SELECT 1 FROM telemetry_samples WHERE sample_ts = $1);`

	insertSampleSQL = `INSERT INTO telemetry_samples (
        sample_ts,
        overall_intensity,
        fuel_gas_perc,
        fuel_nuclear_perc,
        fuel_wind_perc,
        fuel_solar_perc
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    );`

	insertRunSQL = `INSERT INTO etl_runs (
        run_ts,
        status,
        rows_inserted,
        execution_time_ms,
        error_message
    ) VALUES (
        $1,$2,$3,$4,$5
    );`

	listRecentSamplesSQL = `SELECT
        id,
        sample_ts,
        overall_intensity,
        fuel_gas_perc,
        fuel_nuclear_perc,
        fuel_wind_perc,
        fuel_solar_perc
    FROM telemetry_samples
    ORDER BY sample_ts DESC
    LIMIT $1;`

	listSamplesBetweenSQL = `SELECT
        id,
        sample_ts,
        overall_intensity,
        fuel_gas_perc,
        fuel_nuclear_perc,
        fuel_wind_perc,
        fuel_solar_perc
    FROM telemetry_samples
    WHERE sample_ts >= $1
      AND sample_ts < $2
    ORDER BY sample_ts;`

	listRecentRunsSQL = `SELECT
        id,
        run_ts,
        status,
        rows_inserted,
        execution_time_ms,
        error_message
    FROM etl_runs
    ORDER BY run_ts DESC
    LIMIT $1;`

	countSamplesSQL = `SELECT COUNT(*) FROM telemetry_samples;`
)

// TelemetryStore defines operations for telemetry sample persistence.
type TelemetryStore interface {
	SampleExists(ctx context.Context, ts time.Time) (bool, error)
	InsertSample(ctx context.Context, sample TelemetrySample) error
	ListRecentSamples(ctx context.Context, limit int) ([]TelemetrySample, error)
	ListSamplesBetween(ctx context.Context, from, to time.Time) ([]TelemetrySample, error)
	CountSamples(ctx context.Context) (int64, error)
}

// RunStore defines operations for run-outcome auditing.
type RunStore interface {
	InsertRunOutcome(ctx context.Context, outcome RunOutcome) error
	ListRecentRuns(ctx context.Context, limit int) ([]RunOutcome, error)
}

// Store aggregates access to telemetry samples and run outcomes.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InitSchema creates both tables if absent. Intended to run once per
// process lifetime, before the first pipeline execution.
func (s *Store) InitSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, createTelemetrySQL); err != nil {
		return fmt.Errorf("create telemetry_samples: %w", err)
	}
	if _, err := pool.Exec(ctx, createRunsSQL); err != nil {
		return fmt.Errorf("create etl_runs: %w", err)
	}
	return nil
}

// SampleExists reports whether a sample with the given timestamp is already
// stored.
func (s *Store) SampleExists(ctx context.Context, ts time.Time) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	var exists bool
	if scanErr := pool.QueryRow(ctx, sampleExistsSQL, ts).Scan(&exists); scanErr != nil {
		return false, fmt.Errorf("sample exists: %w", scanErr)
	}
	return exists, nil
}

// InsertSample writes one telemetry sample in a single transaction. Any
// failure rolls back and surfaces as a PersistenceError; the unique
// constraint on sample_ts backstops the pre-insert existence check.
func (s *Store) InsertSample(ctx context.Context, sample TelemetrySample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return &PersistenceError{Op: "begin insert sample", Err: err}
	}
	defer tx.Rollback(ctx)

	if _, execErr := tx.Exec(ctx, insertSampleSQL,
		sample.Timestamp,
		sample.OverallIntensity,
		sample.FuelGasPerc,
		sample.FuelNuclearPerc,
		sample.FuelWindPerc,
		sample.FuelSolarPerc,
	); execErr != nil {
		return &PersistenceError{Op: "insert sample", Err: execErr}
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return &PersistenceError{Op: "commit sample", Err: commitErr}
	}
	return nil
}

// InsertRunOutcome writes one run-outcome row.
func (s *Store) InsertRunOutcome(ctx context.Context, outcome RunOutcome) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var errMsg interface{}
	if outcome.ErrorMessage != nil {
		errMsg = *outcome.ErrorMessage
	}

	if _, execErr := pool.Exec(ctx, insertRunSQL,
		outcome.RunTS,
		string(outcome.Status),
		outcome.RowsInserted,
		outcome.ExecutionTimeMS,
		errMsg,
	); execErr != nil {
		return fmt.Errorf("insert run outcome: %w", execErr)
	}
	return nil
}

// ListRecentSamples lists the most recent samples ordered by descending timestamp.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]TelemetrySample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, limit)
}

// ListSamplesBetween lists samples within a time window.
func (s *Store) ListSamplesBetween(ctx context.Context, from, to time.Time) ([]TelemetrySample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, 0)
}

// ListRecentRuns lists the most recent run outcomes.
func (s *Store) ListRecentRuns(ctx context.Context, limit int) ([]RunOutcome, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent runs: %w", queryErr)
	}
	defer rows.Close()

	outcomes := make([]RunOutcome, 0, limit)
	for rows.Next() {
		var (
			outcome RunOutcome
			status  string
			errMsg  *string
		)
		if err := rows.Scan(
			&outcome.ID,
			&outcome.RunTS,
			&status,
			&outcome.RowsInserted,
			&outcome.ExecutionTimeMS,
			&errMsg,
		); err != nil {
			return nil, err
		}
		outcome.Status = RunStatus(status)
		outcome.ErrorMessage = errMsg
		outcomes = append(outcomes, outcome)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return outcomes, nil
}

// CountSamples counts stored samples.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

func collectSamples(rows pgx.Rows, sizeHint int) ([]TelemetrySample, error) {
	samples := make([]TelemetrySample, 0, sizeHint)
	for rows.Next() {
		var sample TelemetrySample
		if err := rows.Scan(
			&sample.ID,
			&sample.Timestamp,
			&sample.OverallIntensity,
			&sample.FuelGasPerc,
			&sample.FuelNuclearPerc,
			&sample.FuelWindPerc,
			&sample.FuelSolarPerc,
		); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

var (
	_ TelemetryStore = (*Store)(nil)
	_ RunStore       = (*Store)(nil)
)
