// Package interview coordinates the lifecycle of voice interviews: scheduling,
// starting the outbound call, synthesizing the final report and the
// candidate and report bookkeeping around them.
package interview

import (
	"errors"
	"fmt"

	"github.com/recruitx/recruitx/internal/storage"
)

// Failure kinds shared by the lifecycle service and the call dialogue.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyComplete = errors.New("interview already complete")
	ErrInvalidIndex    = errors.New("invalid question index")
	ErrUpstream        = errors.New("upstream failure")
	ErrValidation      = errors.New("validation failed")
)

// ErrCallUnconfirmed marks a dial failure after which the provider may still
// have placed the call, such as a timeout.
var ErrCallUnconfirmed = errors.New("call outcome unknown")

// ErrCancelled is returned for work on a cancelled interview. It is a
// validation failure.
var ErrCancelled = fmt.Errorf("%w: interview cancelled", ErrValidation)

// Kind names the failure kind of err for logs and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyComplete):
		return "already_complete"
	case errors.Is(err, ErrInvalidIndex):
		return "invalid_index"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrValidation):
		return "validation"
	}
	return "internal"
}

// Translate maps storage errors onto the failure kinds above. Unknown
// errors pass through unchanged.
func Translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, storage.ErrCompleted):
		return fmt.Errorf("%w: %v", ErrAlreadyComplete, err)
	case errors.Is(err, storage.ErrOutOfOrder):
		return fmt.Errorf("%w: %v", ErrInvalidIndex, err)
	case errors.Is(err, storage.ErrInactive):
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	case errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrStatus):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return err
}

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func upstream(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUpstream, what, err)
}
