package biz

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a callback failure. Every error that escapes the
// callback flow carries exactly one kind; the transport layer maps kinds to
// HTTP statuses and never exposes the wrapped internal detail.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation_error"
	KindExchange      ErrorKind = "exchange_error"
	KindPersistence   ErrorKind = "persistence_error"
	KindConfiguration ErrorKind = "configuration_error"
)

// HTTPStatus returns the HTTP-equivalent status code for the kind.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindExchange:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// FlowError is the single terminal error shape produced by the callback
// flow. Message is safe to show to a caller; Err holds internal detail and
// is only for diagnostic logging.
type FlowError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FlowError) Unwrap() error { return e.Err }

// NewValidationError reports a client-fixable request problem.
func NewValidationError(message string) *FlowError {
	return &FlowError{Kind: KindValidation, Message: message}
}

// NewExchangeError reports a failed authorization-code exchange.
func NewExchangeError(err error) *FlowError {
	return &FlowError{Kind: KindExchange, Message: "authentication with the provider failed", Err: err}
}

// NewPersistenceError reports an account-store failure not resolved by the
// retry-as-lookup policy.
func NewPersistenceError(err error) *FlowError {
	return &FlowError{Kind: KindPersistence, Message: "failed to resolve account", Err: err}
}

// NewConfigurationError reports missing or broken service configuration,
// e.g. absent signing material.
func NewConfigurationError(err error) *FlowError {
	return &FlowError{Kind: KindConfiguration, Message: "service is misconfigured", Err: err}
}

// AsFlowError unwraps err into a *FlowError if it is one.
func AsFlowError(err error) (*FlowError, bool) {
	var fe *FlowError
	ok := errors.As(err, &fe)
	return fe, ok
}
