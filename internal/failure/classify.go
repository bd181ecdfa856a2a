package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// Hint rewrites the user message when the raw upstream error contains
// Contains. Hints come from the provider catalog.
type Hint struct {
	Contains string `yaml:"contains"`
	Message  string `yaml:"message"`
}

// StatusCoder is implemented by transport errors that carry an upstream HTTP
// status.
type StatusCoder interface {
	StatusCode() int
}

// Classify maps any error produced while talking to a provider onto the
// taxonomy. It never panics and never returns nil for a non-nil err.
func Classify(err error, provider string, hints ...Hint) *Error {
	if err == nil {
		return nil
	}

	if fe, ok := As(err); ok {
		out := *fe
		if out.Provider == "" {
			out.Provider = provider
		}
		return &out
	}

	name := provider
	if name == "" {
		name = "provider"
	}

	var classified *Error
	var sc StatusCoder
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		classified = &Error{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("%s request timed out, please retry later", name),
		}
	case errors.Is(err, context.Canceled):
		classified = &Error{
			Kind:    KindNetworkError,
			Message: fmt.Sprintf("%s request was cancelled", name),
		}
	case errors.As(err, &sc):
		classified = &Error{
			Kind:    KindProviderError,
			Status:  sc.StatusCode(),
			Message: fmt.Sprintf("%s API request failed with status %d", name, sc.StatusCode()),
		}
	case isTimeout(err):
		classified = &Error{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("%s request timed out, please retry later", name),
		}
	case isNetwork(err):
		classified = &Error{
			Kind:    KindNetworkError,
			Message: fmt.Sprintf("could not reach %s, please retry later", name),
		}
	default:
		classified = &Error{
			Kind:    KindInternalError,
			Message: "request processing failed",
		}
	}

	classified.Provider = provider
	classified.Err = err

	raw := err.Error()
	for _, h := range hints {
		if h.Contains != "" && strings.Contains(raw, h.Contains) {
			classified.Message = h.Message
			break
		}
	}
	return classified
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isNetwork(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
