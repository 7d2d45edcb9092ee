package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrPositionNotFound signals a position that has been closed
	// externally. It is terminal for that position's monitoring and
	// hedging, and must be distinguished from transient errors.
	ErrPositionNotFound = errors.New("position not found")
	// ErrInsufficientBalance is raised when the wallet cannot fund an
	// action; callers record it to suppress immediate retries.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrNoPrice is returned by a price source when no usable USD price is
	// present in its response.
	ErrNoPrice = errors.New("no usable price")
	// ErrStalePrice is returned when every price source failed and no
	// cached value exists. Retryable, never fatal.
	ErrStalePrice = errors.New("price unavailable")
	ErrLockHeld   = errors.New("lock already held")
)

// SimulationError carries the program logs of a transaction that failed
// preflight simulation or validation before submission.
type SimulationError struct {
	Signature string
	Message   string
	Logs      []string
}

func (e *SimulationError) Error() string {
	if len(e.Logs) == 0 {
		return fmt.Sprintf("transaction simulation failed: %s", e.Message)
	}
	return fmt.Sprintf("transaction simulation failed: %s\n%s", e.Message, strings.Join(e.Logs, "\n"))
}
