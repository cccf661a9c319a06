package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("not found")
	ErrNoActiveSession = errors.New("no active session")

	ErrAlreadyRunning = errors.New("timer already running")
	ErrNotRunning     = errors.New("timer not running")
	ErrAlreadyPaused  = errors.New("timer already paused")
	ErrNotPaused      = errors.New("timer not paused")
	ErrInvalidRoutine = errors.New("invalid routine")
)

// RoutineError carries the reason a routine or a check-in request was rejected.
type RoutineError struct {
	Reason string
}

func InvalidRoutine(reason string) error {
	return &RoutineError{Reason: reason}
}

func (e *RoutineError) Error() string {
	return fmt.Sprintf("invalid routine: %s", e.Reason)
}

func (e *RoutineError) Unwrap() error {
	return ErrInvalidRoutine
}
