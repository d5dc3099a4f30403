package storage

import (
	"fmt"
	"time"
)

// RunStatus classifies the outcome of one pipeline execution.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailure RunStatus = "failure"
)

// TelemetrySample is one validated observation of grid state. The sample
// timestamp is the deduplication key; a persisted sample is never updated
// or deleted.
type TelemetrySample struct {
	ID               int64
	Timestamp        time.Time
	OverallIntensity int
	FuelGasPerc      float64
	FuelNuclearPerc  float64
	FuelWindPerc     float64
	FuelSolarPerc    float64
}

// RunOutcome is the audit record written once per pipeline execution,
// regardless of which stage failed.
type RunOutcome struct {
	ID              int64
	RunTS           time.Time
	Status          RunStatus
	RowsInserted    int
	ExecutionTimeMS int64
	ErrorMessage    *string
}

// PersistenceError reports a transactional write failure. The transaction
// is rolled back before this error propagates, so no partial row exists.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
