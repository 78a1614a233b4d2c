package booking

import "fmt"

// ValidationError marks an event or request that failed validation and must
// not be processed. It is never retried internally.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewValidationError(code, msg string) error {
	return &ValidationError{Code: code, Message: msg}
}

// StorageError marks a failed transition attempt. It is surfaced so the
// payment provider retries delivery.
type StorageError struct {
	Message string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storageError: %s: %v", e.Message, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorageError(msg string, err error) error {
	return &StorageError{Message: msg, Err: err}
}

// ErrSlotUnavailable is returned by checkout when the requested slot is
// missing or already booked.
var ErrSlotUnavailable = NewValidationError("slotUnavailable", "slot is not available for booking")
