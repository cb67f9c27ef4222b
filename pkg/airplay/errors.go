package airplay

import (
	"errors"
	"fmt"
)

// ErrCaptureFailed marks a sampling attempt that produced no audio. It is a
// soft failure: the cycle is skipped and nothing is recorded.
var ErrCaptureFailed = errors.New("audio capture failed")

// ErrorClassifier lets errors declare a kind for status mapping in outer layers.
type ErrorClassifier interface {
	ErrorKind() string
}

// NotFoundError reports a missing channel, song, detection or session.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) ErrorKind() string { return "not_found" }

// ValidationError reports malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) ErrorKind() string { return "validation" }

// StorageError wraps a persistence failure. Fatal for the current operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) ErrorKind() string { return "storage" }

// ProviderError wraps a recognition provider failure. It is absorbed by the
// identifier and turned into "no match from this provider".
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) ErrorKind() string { return "provider" }

func notFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// ErrorKind returns the classification of err, or "internal" when it has none.
func ErrorKind(err error) string {
	if errors.Is(err, ErrCaptureFailed) {
		return "capture"
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return "internal"
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
