package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
)

// IntensityFetcher retrieves the instantaneous grid carbon intensity document.
type IntensityFetcher interface {
	FetchIntensity(ctx context.Context) (json.RawMessage, error)
}

// GenerationFetcher retrieves the generation fuel-mix document.
type GenerationFetcher interface {
	FetchGeneration(ctx context.Context) (json.RawMessage, error)
}

// FetchError reports an endpoint that stayed unreachable after the full
// retry schedule. It carries the last underlying cause.
type FetchError struct {
	Endpoint string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.Endpoint, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
