package qr

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/xk6-qr/qr/store"
)

// exportedInt widens the integer shapes sobek exports into int64.
// The second result is false for non-integer types.
func exportedInt(v any) (int64, bool, error) {
	switch x := v.(type) {
	case int:
		return int64(x), true, nil
	case int32:
		return int64(x), true, nil
	case int64:
		return x, true, nil
	case uint32:
		return int64(x), true, nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, true, fmt.Errorf("value too large: %d", x)
		}

		return int64(x), true, nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, true, fmt.Errorf("value too large: %d", x)
		}

		return int64(x), true, nil
	case float64:
		if math.Trunc(x) != x || math.IsInf(x, 0) {
			return 0, true, fmt.Errorf("value must be a whole number: %v", x)
		}

		return int64(x), true, nil
	default:
		return 0, false, nil
	}
}

// parseSizeValue parses a size that is either a number of bytes or a string like "64mb".
// Caller is responsible for wrapping the error, if it's used in JS code.
func parseSizeValue(v any) (uint64, error) {
	if s, ok := v.(string); ok {
		size, err := humanize.ParseBytes(s)
		if err != nil {
			return 0, fmt.Errorf("invalid size string %q: %w", s, err)
		}

		return size, nil
	}

	n, ok, err := exportedInt(v)

	switch {
	case !ok:
		return 0, fmt.Errorf("unsupported size type: %T", v)
	case err != nil:
		return 0, err
	case n < 0:
		return 0, fmt.Errorf("negative size: %d", n)
	}

	return uint64(n), nil
}

// parseIntSize is parseSizeValue bounded to a non-negative int64.
func parseIntSize(v any) (int64, error) {
	size, err := parseSizeValue(v)
	if err != nil {
		return 0, err
	}

	if size > math.MaxInt64 {
		return 0, fmt.Errorf("size too large: %d", size)
	}

	return int64(size), nil
}

// parseDurationValue parses a duration that is either a number of
// milliseconds or a Go duration string like "1.5s".
// Caller is responsible for wrapping the error, if it's used in JS code.
func parseDurationValue(v any) (time.Duration, error) {
	if s, ok := v.(string); ok {
		duration, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration string %q: %w", s, err)
		}

		if duration < 0 {
			return 0, fmt.Errorf("negative duration: %s", s)
		}

		return duration, nil
	}

	ms, ok, err := exportedInt(v)

	switch {
	case !ok:
		return 0, fmt.Errorf("unsupported duration type: %T", v)
	case err != nil:
		return 0, fmt.Errorf("duration must be whole milliseconds: %w", err)
	}

	return durationFromMillis(ms)
}

// durationFromMillis converts milliseconds to a time.Duration and returns an error if invalid.
func durationFromMillis(ms int64) (time.Duration, error) {
	if ms < 0 {
		return 0, fmt.Errorf("negative duration: %d", ms)
	}

	maxMillis := math.MaxInt64 / int64(time.Millisecond)
	if ms > maxMillis {
		return 0, fmt.Errorf("duration too large: %dms", ms)
	}

	return time.Duration(ms) * time.Millisecond, nil
}

// parseScoreValue converts an exported JS number into a priority score.
func parseScoreValue(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) {
			return 0, fmt.Errorf("%w: NaN", store.ErrInvalidScore)
		}

		return x, nil
	case float32:
		return parseScoreValue(float64(x))
	}

	n, ok, err := exportedInt(v)
	if !ok || err != nil {
		return 0, fmt.Errorf("%w: must be a number, got %T", store.ErrInvalidScore, v)
	}

	return float64(n), nil
}
