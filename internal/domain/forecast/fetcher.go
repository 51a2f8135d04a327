// internal/domain/forecast/fetcher.go

package forecast

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies fetch failures
type ErrorKind string

const (
	KindNetwork   ErrorKind = "network"
	KindStatus    ErrorKind = "status"
	KindMalformed ErrorKind = "malformed"
)

// FetchError describes why a fetch produced no data
type FetchError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("forecast fetch failed: %s %d: %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("forecast fetch failed: %s: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrSuperseded is returned when a newer fetch was issued before this one resolved
var ErrSuperseded = errors.New("forecast request superseded by a newer request")

// Fetcher retrieves prediction points for a query
type Fetcher interface {
	// Fetch issues one request and returns the normalized points
	Fetch(ctx context.Context, q Query) ([]PredictionPoint, error)
}

// KindOf extracts the failure kind of err, or "" when err is not a FetchError
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
