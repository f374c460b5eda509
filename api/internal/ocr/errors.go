package ocr

import (
	"context"
	"errors"
	"fmt"
)

// ErrExternalService matches every ExternalServiceError via errors.Is.
var ErrExternalService = errors.New("external service error")

// Category is the normalized failure taxonomy for upstream calls.
type Category string

const (
	CategoryTimeout         Category = "timeout"
	CategoryUnavailable     Category = "unavailable"
	CategoryBadResponse     Category = "bad_response"
	CategoryInputUnreadable Category = "input_unreadable"
	CategoryAuth            Category = "auth"
	CategoryQuota           Category = "quota"
)

// ExternalServiceError is the hard failure of the extraction path.
type ExternalServiceError struct {
	Op       string
	Service  string
	Category Category
	Err      error
}

func (e *ExternalServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s [%s]: %v", e.Service, e.Op, e.Category, e.Err)
	}
	return fmt.Sprintf("%s %s [%s]", e.Service, e.Op, e.Category)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }

// NewExternalServiceError wraps err. Context expiry is always reported as a timeout.
func NewExternalServiceError(service, op string, category Category, err error) *ExternalServiceError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		category = CategoryTimeout
	}
	return &ExternalServiceError{Op: op, Service: service, Category: category, Err: err}
}

// AsExternalServiceError wraps err unless it already is one.
func AsExternalServiceError(service, op string, err error) error {
	if err == nil {
		return nil
	}
	var ese *ExternalServiceError
	if errors.As(err, &ese) {
		return err
	}
	return NewExternalServiceError(service, op, CategoryUnavailable, err)
}
