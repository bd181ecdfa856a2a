package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/vnmchuo/prompt-optimizer/internal/registry"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

type Response struct {
	ID           string
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	Provider     string
}

// Client performs one non-streaming chat completion against the provider
// described by cfg. Implementations must honour ctx cancellation.
type Client interface {
	Complete(ctx context.Context, cfg registry.RequestConfig, messages []Message) (*Response, error)
}

// APIError is returned for non-2xx provider responses.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api error (status %d): %s", e.Provider, e.Status, e.Body)
}

func (e *APIError) StatusCode() int {
	return e.Status
}

var ErrUnsupportedDialect = errors.New("unsupported provider dialect")

// Mux routes a call to the client registered for the config's dialect.
type Mux struct {
	clients map[string]Client
}

func NewMux(clients map[string]Client) *Mux {
	m := &Mux{clients: make(map[string]Client, len(clients))}
	for dialect, c := range clients {
		m.clients[dialect] = c
	}
	return m
}

func (m *Mux) Complete(ctx context.Context, cfg registry.RequestConfig, messages []Message) (*Response, error) {
	c, ok := m.clients[cfg.Dialect]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, cfg.Dialect)
	}
	return c.Complete(ctx, cfg, messages)
}

// MergeSystem folds leading system messages into the first user message for
// models that reject the system role.
func MergeSystem(messages []Message) []Message {
	var system string
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		out = append(out, m)
	}
	if system == "" {
		return out
	}
	for i := range out {
		if out[i].Role == RoleUser {
			out[i].Content = system + "\n\n" + out[i].Content
			return out
		}
	}
	return append([]Message{{Role: RoleUser, Content: system}}, out...)
}

// HeaderTransport sets the resolved request headers on every outgoing
// request, replacing whatever an SDK put there.
type HeaderTransport struct {
	Headers http.Header
	Base    http.RoundTripper
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	for k, v := range t.Headers {
		r.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

// HTTPClient builds a per-call client that carries cfg's headers.
func HTTPClient(cfg registry.RequestConfig, base http.RoundTripper) *http.Client {
	return &http.Client{Transport: &HeaderTransport{Headers: cfg.Headers, Base: base}}
}
