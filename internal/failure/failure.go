package failure

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindUnknownProvider       Kind = "unknown_provider"
	KindUnknownModel          Kind = "unknown_model"
	KindMissingCredential     Kind = "missing_credential"
	KindEmptyInput            Kind = "empty_input"
	KindInputTooLong          Kind = "input_too_long"
	KindEmptyFeedback         Kind = "empty_feedback"
	KindInvalidInput          Kind = "invalid_input"
	KindTimeout               Kind = "timeout"
	KindProviderError         Kind = "provider_error"
	KindEmptyProviderResponse Kind = "empty_provider_response"
	KindNetworkError          Kind = "network_error"
	KindInternalError         Kind = "internal_error"
)

// Error is the classified form of every failure leaving the optimization
// subsystem. Message is safe to show to end users; Err keeps the raw cause
// for logs and non-production details.
type Error struct {
	Kind     Kind
	Status   int // upstream HTTP status, only for KindProviderError
	Provider string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a caller may reasonably retry the same request.
// Validation kinds are terminal until the input changes.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindProviderError, KindNetworkError:
		return true
	}
	return false
}

// Validation reports whether the failure was caused by the caller's input
// rather than by the upstream provider.
func (e *Error) Validation() bool {
	switch e.Kind {
	case KindUnknownProvider, KindUnknownModel, KindMissingCredential,
		KindEmptyInput, KindInputTooLong, KindEmptyFeedback, KindInvalidInput:
		return true
	}
	return false
}

// HTTPStatus maps the kind onto the status code returned to API clients.
func (e *Error) HTTPStatus() int {
	switch {
	case e.Validation():
		return http.StatusBadRequest
	case e.Kind == KindTimeout:
		return http.StatusGatewayTimeout
	case e.Kind == KindProviderError, e.Kind == KindNetworkError, e.Kind == KindEmptyProviderResponse:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Details returns the raw cause, or "" when there is none.
func (e *Error) Details() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// As extracts a classified error from err's chain.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

func UnknownProvider(id string) *Error {
	return &Error{Kind: KindUnknownProvider, Provider: id, Message: fmt.Sprintf("unsupported AI provider: %s", id)}
}

func UnknownModel(providerID, model string) *Error {
	return &Error{Kind: KindUnknownModel, Provider: providerID, Message: fmt.Sprintf("unsupported model: %s", model)}
}

func MissingCredential(providerID, envName string) *Error {
	return &Error{
		Kind:     KindMissingCredential,
		Provider: providerID,
		Message:  fmt.Sprintf("API key for %s is not configured, set %s", providerID, envName),
	}
}

func EmptyInput(field string) *Error {
	return &Error{Kind: KindEmptyInput, Message: fmt.Sprintf("%s must not be empty", field)}
}

func InputTooLong(field string, max int) *Error {
	return &Error{Kind: KindInputTooLong, Message: fmt.Sprintf("%s must not exceed %d characters", field, max)}
}

func EmptyFeedback() *Error {
	return &Error{Kind: KindEmptyFeedback, Message: "feedback must not be empty"}
}

func InvalidInput(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}
