package app

import "errors"

// ErrNotFound and related errors classify collaborator and runtime failures.
var (
	ErrNotFound        = errors.New("not found")
	ErrNetwork         = errors.New("network failure")
	ErrValidation      = errors.New("validation failure")
	ErrUnsupported     = errors.New("operation not supported by backend")
	ErrNoSuchContainer = errors.New("container not displayed")
	ErrTaskNotVisible  = errors.New("task not on board")
	ErrNotRecurring    = errors.New("task does not recur")
)

// FailureKind names the error taxonomy class of a collaborator failure.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureNetwork    FailureKind = "network"
	FailureNotFound   FailureKind = "not_found"
	FailureValidation FailureKind = "validation"
)

// Classify maps an error onto the failure taxonomy; unknown errors count as network failures.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrNotFound):
		return FailureNotFound
	case errors.Is(err, ErrValidation):
		return FailureValidation
	default:
		return FailureNetwork
	}
}
