package lshgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/lshgo/internal/lsh"
)

var (
	// ErrConfiguration marks invalid construction input: a bad (n, d) pair, a
	// point set that does not match its ParameterSet, or parameters the
	// engine rejects.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation marks invalid query or tuning input.
	ErrValidation = errors.New("validation error")

	// ErrTuning is returned when probe tuning cannot reach its target.
	ErrTuning = errors.New("tuning error")

	// ErrClosed is returned by operations on a closed Index.
	ErrClosed = errors.New("index is closed")
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = fmt.Errorf("%w: k must be positive", ErrValidation)

	// ErrNegativeRadius is returned when a search radius is negative.
	ErrNegativeRadius = fmt.Errorf("%w: radius must not be negative", ErrValidation)

	// ErrInvalidNumProbes is returned when a probe count is not positive.
	ErrInvalidNumProbes = fmt.Errorf("%w: number of probes must be positive", ErrValidation)

	// ErrInvalidMaxCandidates is returned for a non-positive candidate cap other than NoMaxCandidates.
	ErrInvalidMaxCandidates = fmt.Errorf("%w: maximum number of candidates must be positive or NoMaxCandidates", ErrValidation)

	// ErrMaxIterations is returned when exponential probe search exhausts its iteration cap.
	ErrMaxIterations = fmt.Errorf("%w: maximum iterations exceeded while tuning number of probes", ErrTuning)
)

// ErrDimensionMismatch indicates a vector/query dimensionality mismatch.
//
// It is always returned wrapped in ErrConfiguration (construction) or
// ErrValidation (queries and tuning).
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
	// Row is the offending row of a point or query set, or -1 for a single vector.
	Row int
}

func (e *ErrDimensionMismatch) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("dimension mismatch in row %d: expected %d, got %d", e.Row, e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func dimensionError(category error, expected, actual, row int) error {
	return fmt.Errorf("%w: %w", category, &ErrDimensionMismatch{Expected: expected, Actual: actual, Row: row})
}

// translateError maps engine errors onto the public error categories.
// Engine messages are kept verbatim behind the category.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, lsh.ErrTableClosed):
		return fmt.Errorf("%w: %w", ErrClosed, err)
	case errors.Is(err, lsh.ErrInvalidNumProbes):
		return fmt.Errorf("%w: %w", ErrInvalidNumProbes, err)
	case errors.Is(err, lsh.ErrInvalidMaxCandidates):
		return fmt.Errorf("%w: %w", ErrInvalidMaxCandidates, err)
	}

	var perr *lsh.ErrInvalidParameter
	if errors.As(err, &perr) || errors.Is(err, lsh.ErrEmptyPointSet) {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return err
}
