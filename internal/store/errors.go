package store

import "fmt"

// DecodeError indicates a persisted file was present but not valid for its
// schema. Non-fatal: the caller falls back to defaults.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsTransient returns false: the file stays corrupt until overwritten.
func (e *DecodeError) IsTransient() bool {
	return false
}

// PersistError indicates a write to durable storage failed. Fatal to the
// calling process: accumulated statistics would otherwise be silently lost
// on the next crash.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// NotFoundError indicates a requested day-history record does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}
