package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"carbonstream/internal/retry"
)

const (
	intensityPath  = "/intensity"
	generationPath = "/generation"
)

// Options parameterise the carbon-intensity API client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Retry     retry.Policy
}

// Client fetches documents from the National Grid carbon-intensity API.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs an API client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.carbonintensity.org.uk"
	}

	if opts.Retry.MaxAttempts < 1 {
		opts.Retry = retry.Default()
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchIntensity retrieves the current intensity document.
func (c *Client) FetchIntensity(ctx context.Context) (json.RawMessage, error) {
	return c.fetch(ctx, intensityPath)
}

// FetchGeneration retrieves the current generation-mix document.
func (c *Client) FetchGeneration(ctx context.Context) (json.RawMessage, error) {
	return c.fetch(ctx, generationPath)
}

// fetch GETs one endpoint under the retry policy. A 2xx body is returned
// verbatim; whether it parses is the validator's concern, so malformed
// payloads are never retried here.
func (c *Client) fetch(ctx context.Context, path string) (json.RawMessage, error) {
	endpoint := c.baseURL + path

	var payload []byte
	attempts := 0
	op := func() error {
		attempts++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
			req.Header.Set("User-Agent", ua)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
		}

		payload = body
		return nil
	}

	onRetry := func(attempt int, wait time.Duration, err error) {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Dur("wait", wait).
			Err(err).
			Msg("fetch attempt failed, backing off")
	}

	// Attempts reflects the calls actually made; a cancelled context can
	// stop the schedule before MaxAttempts is reached.
	if err := c.opts.Retry.Do(ctx, op, onRetry); err != nil {
		return nil, &FetchError{Endpoint: endpoint, Attempts: attempts, Err: err}
	}

	return json.RawMessage(payload), nil
}

var (
	_ IntensityFetcher  = (*Client)(nil)
	_ GenerationFetcher = (*Client)(nil)
)
