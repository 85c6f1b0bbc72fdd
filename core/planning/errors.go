package planning

import (
	"errors"
	"fmt"

	"github.com/kilianp07/fieldplan/core/model"
	"github.com/kilianp07/fieldplan/core/store"
)

var (
	// ErrNotFound is returned when a referenced task, technician or
	// assignment does not exist.
	ErrNotFound = errors.New("planning: not found")
	// ErrInvalidState is returned when an operation's preconditions on the
	// task, technician or assignment status do not hold.
	ErrInvalidState = errors.New("planning: invalid state")
	// ErrInvalidInput is returned for requests that fail validation.
	ErrInvalidInput = model.ErrInvalid
)

// notFound converts a store miss into ErrNotFound and wraps everything
// else as a store failure.
func notFound(kind, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("load %s %s: %w", kind, id, err)
}

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
