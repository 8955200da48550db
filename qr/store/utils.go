package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ResolveDiskPath normalizes user-provided paths and applies fast-fail defaults.
// Empty strings revert to fallback.
// When wantDir is false a path pointing at an existing directory is rejected.
func ResolveDiskPath(dbPath, fallback string, wantDir bool) (string, error) {
	trimmedPath := strings.TrimSpace(dbPath)
	if trimmedPath == "" {
		trimmedPath = fallback
	}

	cleanedPath := filepath.Clean(trimmedPath)

	absPath, err := filepath.Abs(cleanedPath)
	if err != nil {
		return "", fmt.Errorf("%w: path %q: %w", ErrDiskPathResolveFailed, cleanedPath, err)
	}

	info, err := os.Stat(absPath)
	switch {
	case err == nil:
		if info.IsDir() && !wantDir {
			return absPath, fmt.Errorf("%w: %q", ErrDiskPathIsDirectory, absPath)
		}

		return absPath, nil
	case errors.Is(err, os.ErrNotExist):
		return absPath, nil
	default:
		return absPath, fmt.Errorf("%w: %q: %w", ErrDiskPathResolveFailed, absPath, err)
	}
}

// ensureParentDir creates the directory that will hold path.
func ensureParentDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrDiskDirectoryCreateFailed, filepath.Dir(path), err)
	}

	return nil
}

// normalizeRange resolves Redis-style inclusive bounds against a sequence of
// length n. It returns the half-open interval [lo, hi) and false when the
// range selects nothing.
func normalizeRange(start, stop, n int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}

	if stop < 0 {
		stop += n
	}

	start = max(start, 0)
	stop = min(stop, n-1)

	if n == 0 || start > stop {
		return 0, 0, false
	}

	return start, stop + 1, true
}

// normalizeIndex resolves a possibly negative index against length n.
func normalizeIndex(i, n int64) (int64, bool) {
	if i < 0 {
		i += n
	}

	if i < 0 || i >= n {
		return 0, false
	}

	return i, true
}

// cloneValues copies every slice so replies never alias backend memory.
func cloneValues(values [][]byte) [][]byte {
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = slices.Clone(v)
	}

	return out
}

// clamp constrains a value to lie within [low, high] bounds.
// Used to cap preallocation sizes to prevent OOM while avoiding tiny allocations.
func clamp(value, low, high int) int {
	return max(low, min(value, high))
}
