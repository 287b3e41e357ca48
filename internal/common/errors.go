package common

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConfig means a required credential or setting is missing.
	ErrConfig = errors.New("configuration error")
	// ErrProcessorUnavailable means the payment processor could not be reached.
	ErrProcessorUnavailable = errors.New("payment processor unavailable")
	// ErrProcessorResponse means the processor answered 2xx with a body we cannot read.
	ErrProcessorResponse = errors.New("unreadable payment processor response")
	ErrNotFound             = errors.New("not found")
	// ErrReconciliationWrite means local persistence failed after a successful processor read.
	ErrReconciliationWrite = errors.New("reconciliation write failed")
	ErrConfirmationTimeout = errors.New("payment confirmation timed out")
	ErrRateLimited         = errors.New("rate limited")
	ErrConflict            = errors.New("conflict")
)

// ProcessorError describes a failed call to the payment processor.
type ProcessorError struct {
	Op         string
	StatusCode int
	Message    string
	// Lookup marks read operations, where any client error means the id is unknown.
	Lookup bool
	Err    error
}

func (e *ProcessorError) Error() string {
	if e.StatusCode != 0 && e.Err != nil {
		return fmt.Sprintf("processor %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("processor %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("processor %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("processor %s: %s", e.Op, e.Message)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

// Is classifies the failure: 5xx and transport failures are
// ErrProcessorUnavailable, 401/403 are ErrConfig, 404 (or any other 4xx on a
// lookup) is ErrNotFound. A 2xx carrying an error failed to decode.
func (e *ProcessorError) Is(target error) bool {
	switch target {
	case ErrProcessorResponse:
		return e.Err != nil && e.StatusCode >= http.StatusOK && e.StatusCode < http.StatusMultipleChoices
	case ErrProcessorUnavailable:
		return (e.StatusCode == 0 && e.Err != nil) || e.StatusCode >= http.StatusInternalServerError
	case ErrConfig:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		if e.StatusCode == http.StatusNotFound {
			return true
		}
		return e.Lookup && e.StatusCode >= 400 && e.StatusCode < 500 &&
			e.StatusCode != http.StatusUnauthorized && e.StatusCode != http.StatusForbidden
	}
	return false
}

// ReconciliationWriteError wraps a persistence failure during reconciliation.
type ReconciliationWriteError struct {
	Step string
	Err  error
}

func (e *ReconciliationWriteError) Error() string {
	return fmt.Sprintf("reconciliation write failed at %s: %v", e.Step, e.Err)
}

func (e *ReconciliationWriteError) Unwrap() error {
	return e.Err
}

func (e *ReconciliationWriteError) Is(target error) bool {
	return target == ErrReconciliationWrite
}

func NewWriteError(step string, err error) error {
	return &ReconciliationWriteError{Step: step, Err: err}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}

func IsProcessorUnavailable(err error) bool {
	return errors.Is(err, ErrProcessorUnavailable)
}

func IsProcessorResponseError(err error) bool {
	return errors.Is(err, ErrProcessorResponse)
}

func IsWriteError(err error) bool {
	return errors.Is(err, ErrReconciliationWrite)
}

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
