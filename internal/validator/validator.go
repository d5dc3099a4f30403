package validator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"carbonstream/internal/storage"
)

// Check names the validation stage that rejected a payload.
type Check string

const (
	CheckPresence  Check = "presence"
	CheckType      Check = "type"
	CheckRange     Check = "range"
	CheckFreshness Check = "freshness"
)

// ValidationError reports a payload that failed a data-quality check. It
// carries which check rejected it and the offending value.
type ValidationError struct {
	Check  Check
	Field  string
	Reason string
	Value  string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s", e.Field, e.Reason, e.Value)
}

// Payload shapes as delivered by the upstream API. Fields stay untyped so
// each conformance failure can be reported distinctly instead of as one
// opaque decode error.
type intensityPayload struct {
	Intensity any `json:"intensity"`
	From      any `json:"from"`
}

type generationPayload struct {
	Gas     any `json:"gas"`
	Nuclear any `json:"nuclear"`
	Wind    any `json:"wind"`
	Solar   any `json:"solar"`
}

// Validator normalizes raw API payloads into telemetry samples.
type Validator struct {
	maxAge time.Duration
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Validator rejecting samples older than maxAge.
func New(maxAge time.Duration, logger zerolog.Logger) *Validator {
	if maxAge <= 0 {
		maxAge = 2 * time.Hour
	}
	return &Validator{
		maxAge: maxAge,
		logger: logger.With().Str("component", "validator").Logger(),
		now:    time.Now,
	}
}

// Validate checks presence, type conformance, numeric range, and freshness
// of the two fetched documents, producing a normalized sample or the first
// rejection encountered. All returned errors are *ValidationError.
func (v *Validator) Validate(intensityRaw, generationRaw json.RawMessage) (storage.TelemetrySample, error) {
	var intensity intensityPayload
	if err := decodeStrict(intensityRaw, &intensity); err != nil {
		return storage.TelemetrySample{}, &ValidationError{
			Check: CheckType, Field: "intensity_payload", Reason: "malformed JSON", Value: err.Error(),
		}
	}

	var generation generationPayload
	if err := decodeStrict(generationRaw, &generation); err != nil {
		return storage.TelemetrySample{}, &ValidationError{
			Check: CheckType, Field: "generation_payload", Reason: "malformed JSON", Value: err.Error(),
		}
	}

	ts, err := v.validateTimestamp(intensity.From)
	if err != nil {
		return storage.TelemetrySample{}, err
	}

	overall, err := validateIntensity(intensity.Intensity)
	if err != nil {
		return storage.TelemetrySample{}, err
	}

	gas, err := fuelPerc("fuel_gas_perc", generation.Gas)
	if err != nil {
		return storage.TelemetrySample{}, err
	}
	nuclear, err := fuelPerc("fuel_nuclear_perc", generation.Nuclear)
	if err != nil {
		return storage.TelemetrySample{}, err
	}
	wind, err := fuelPerc("fuel_wind_perc", generation.Wind)
	if err != nil {
		return storage.TelemetrySample{}, err
	}
	solar, err := fuelPerc("fuel_solar_perc", generation.Solar)
	if err != nil {
		return storage.TelemetrySample{}, err
	}

	sample := storage.TelemetrySample{
		Timestamp:        ts,
		OverallIntensity: overall,
		FuelGasPerc:      gas,
		FuelNuclearPerc:  nuclear,
		FuelWindPerc:     wind,
		FuelSolarPerc:    solar,
	}

	v.logger.Debug().
		Time("sample_ts", sample.Timestamp).
		Int("overall_intensity", sample.OverallIntensity).
		Msg("sample validated")

	return sample, nil
}

// decodeStrict keeps numbers as json.Number so integer-vs-float conformance
// is checked explicitly rather than through float64 coercion.
func decodeStrict(raw json.RawMessage, target any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(target)
}

func (v *Validator) validateTimestamp(raw any) (time.Time, error) {
	if raw == nil {
		return time.Time{}, &ValidationError{Check: CheckPresence, Field: "timestamp", Reason: "missing"}
	}

	str, ok := raw.(string)
	if !ok {
		return time.Time{}, &ValidationError{
			Check: CheckType, Field: "timestamp", Reason: "not a string", Value: fmt.Sprintf("%v", raw),
		}
	}

	ts, err := parseTimestamp(str)
	if err != nil {
		return time.Time{}, &ValidationError{
			Check: CheckType, Field: "timestamp", Reason: "malformed ISO-8601 timestamp", Value: str,
		}
	}

	if v.now().Sub(ts) > v.maxAge {
		return time.Time{}, &ValidationError{
			Check: CheckFreshness, Field: "timestamp", Reason: fmt.Sprintf("older than %s", v.maxAge), Value: str,
		}
	}

	return ts.UTC(), nil
}

// minutePrecisionLayout covers instants without a seconds field, the form
// the upstream API emits ("2025-12-09T14:00Z", "2025-12-09T14:00+00:00").
const minutePrecisionLayout = "2006-01-02T15:04Z07:00"

// parseTimestamp accepts ISO-8601 with a UTC offset at second or minute
// precision.
func parseTimestamp(str string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, str)
	if err != nil {
		ts, err = time.Parse(minutePrecisionLayout, str)
	}
	return ts, err
}

func validateIntensity(raw any) (int, error) {
	if raw == nil {
		return 0, &ValidationError{Check: CheckPresence, Field: "overall_intensity", Reason: "missing"}
	}

	num, ok := raw.(json.Number)
	if !ok {
		return 0, &ValidationError{
			Check: CheckType, Field: "overall_intensity", Reason: "not an integer", Value: fmt.Sprintf("%v", raw),
		}
	}

	value, err := num.Int64()
	if err != nil {
		return 0, &ValidationError{
			Check: CheckType, Field: "overall_intensity", Reason: "not an integer", Value: num.String(),
		}
	}

	if value < 0 || value > 1000 {
		return 0, &ValidationError{
			Check: CheckRange, Field: "overall_intensity", Reason: "out of range", Value: num.String(),
		}
	}

	return int(value), nil
}

// fuelPerc validates one fuel category. Categories the upstream omits count
// as 0%; present values must be numeric and within [0, 100].
func fuelPerc(field string, raw any) (float64, error) {
	if raw == nil {
		return 0, nil
	}

	num, ok := raw.(json.Number)
	if !ok {
		return 0, &ValidationError{
			Check: CheckType, Field: field, Reason: "not a number", Value: fmt.Sprintf("%v", raw),
		}
	}

	value, err := num.Float64()
	if err != nil {
		return 0, &ValidationError{
			Check: CheckType, Field: field, Reason: "not a number", Value: num.String(),
		}
	}

	if value < 0 || value > 100 {
		return 0, &ValidationError{
			Check: CheckRange, Field: field, Reason: "out of range", Value: num.String(),
		}
	}

	return value, nil
}
