package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Invalid-input sentinels. Operations receiving these inputs are no-ops.
var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrEmptyFile    = errors.New("file is missing or empty")
	ErrNoIdentity   = errors.New("identity not available")
)

// TransportError means the request never produced a response: connection
// refused, DNS failure, timeout.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: request to %s failed: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError means the service answered with a non-success status. The
// Message carries the server-provided detail when one was present.
type ServiceError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: service returned %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: service returned %d", e.Op, e.Status)
}

// DecodeError means the service answered with a success status but the
// body could not be decoded into the expected shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: malformed response body: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PartialIngestionError signals that processing succeeded but indexing did
// not: a ProcessedBook exists with no Collection. The caller can retry
// just the indexing half.
type PartialIngestionError struct {
	BookName string
	Err      error
}

func (e *PartialIngestionError) Error() string {
	return fmt.Sprintf("book %q was processed but not indexed: %v", e.BookName, e.Err)
}

func (e *PartialIngestionError) Unwrap() error { return e.Err }

// PartialDeletionError signals that the Collection was deleted but the
// ProcessedBook was not. The book is already gone from the catalog; the
// caller can retry just the processing-side delete.
type PartialDeletionError struct {
	BookName string
	Err      error
}

func (e *PartialDeletionError) Error() string {
	return fmt.Sprintf("collection %q deleted but processed book remains: %v", e.BookName, e.Err)
}

func (e *PartialDeletionError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a ServiceError with a 404 status.
func IsNotFound(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}
