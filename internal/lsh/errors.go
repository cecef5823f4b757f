package lsh

import (
	"errors"
	"fmt"
)

var (
	// ErrTableClosed is returned by queries against a closed table.
	ErrTableClosed = errors.New("lsh: table is closed")

	// ErrEmptyPointSet is returned when a table is constructed without points.
	ErrEmptyPointSet = errors.New("lsh: point set is empty")

	// ErrInvalidNumProbes is returned when the probe count is not positive.
	ErrInvalidNumProbes = errors.New("lsh: number of probes must be at least 1")

	// ErrInvalidMaxCandidates is returned for a non-positive candidate cap other than NoMaxCandidates.
	ErrInvalidMaxCandidates = errors.New("lsh: maximum number of candidates must be positive or NoMaxCandidates")
)

// ErrInvalidParameter reports a construction parameter the engine rejects.
type ErrInvalidParameter struct {
	Name   string
	Value  int
	Reason string
}

func (e *ErrInvalidParameter) Error() string {
	return fmt.Sprintf("lsh: invalid parameter %s=%d: %s", e.Name, e.Value, e.Reason)
}
