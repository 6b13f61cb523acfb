package evaluator

import (
	"errors"
	"fmt"

	"lodepa-air/internal/models"
)

var (
	// ErrStorageUnavailable the threshold store could not answer. Not retried here.
	ErrStorageUnavailable = errors.New("threshold storage unavailable")

	// ErrDuplicateParameter two raw keys of one batch canonicalize to the same parameter
	ErrDuplicateParameter = errors.New("duplicate parameter")
)

// StorageError a failed threshold lookup. errors.Is(err, ErrStorageUnavailable) holds
// and the driver error stays reachable through Unwrap.
type StorageError struct {
	Op        string
	RoomID    string
	Parameter models.Parameter
	Err       error
}

func (e *StorageError) Error() string {
	if e.Parameter != "" {
		return fmt.Sprintf("%s room=%s parameter=%s: %v", e.Op, e.RoomID, e.Parameter, e.Err)
	}
	return fmt.Sprintf("%s room=%s: %v", e.Op, e.RoomID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorageUnavailable }
