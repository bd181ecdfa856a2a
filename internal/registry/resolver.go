package registry

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/vnmchuo/prompt-optimizer/internal/failure"
)

// Credentials supplies provider API keys resolved from process
// configuration.
type Credentials interface {
	APIKey(providerID string) string
}

// RequestConfig is everything a transport needs for one provider call. It is
// built fresh for every invocation and never shared between calls.
type RequestConfig struct {
	ProviderID        string
	ProviderName      string
	ModelKey          string
	Dialect           string
	Endpoint          string
	Credential        string
	Headers           http.Header
	Model             string // wire-level model name
	Temperature       *float64
	TemperatureFixed  bool
	MaxTokens         int
	MergeSystemPrompt bool
	Hints             []failure.Hint
}

// WithTemperature returns a copy using t unless the model pins or omits its
// temperature.
func (c RequestConfig) WithTemperature(t *float64) RequestConfig {
	if t == nil || c.TemperatureFixed {
		return c
	}
	v := *t
	c.Temperature = &v
	return c
}

type Resolver struct {
	registry    *Registry
	credentials Credentials
	logger      *slog.Logger
}

func NewResolver(registry *Registry, credentials Credentials, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		registry:    registry,
		credentials: credentials,
		logger:      logger,
	}
}

func (r *Resolver) Registry() *Registry {
	return r.registry
}

// Resolve validates a provider/model pair and produces its request config.
// Validation failures are returned as *failure.Error before any network
// activity can happen.
func (r *Resolver) Resolve(providerID, modelKey string) (RequestConfig, error) {
	p, ok := r.registry.Provider(providerID)
	if !ok {
		return RequestConfig{}, failure.UnknownProvider(providerID)
	}

	m, ok := p.Model(modelKey)
	if !ok {
		return RequestConfig{}, failure.UnknownModel(p.ID, modelKey)
	}

	key := ""
	if r.credentials != nil {
		key = r.credentials.APIKey(p.ID)
	}
	if key == "" {
		return RequestConfig{}, failure.MissingCredential(p.ID, p.CredentialEnv+"_API_KEY")
	}

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set(p.AuthHeader, strings.ReplaceAll(p.AuthTemplate, "{key}", key))
	for k, v := range p.ExtraHeaders {
		headers.Set(k, v)
	}

	temp := p.DefaultTemperature
	cfg := RequestConfig{
		ProviderID:   p.ID,
		ProviderName: p.Name,
		ModelKey:     m.Key,
		Dialect:      p.Dialect,
		Endpoint:     strings.TrimRight(p.BaseURL, "/"),
		Credential:   key,
		Headers:      headers,
		Model:        r.wireModel(p, m),
		Temperature:  &temp,
		MaxTokens:    p.DefaultMaxTokens,
		Hints:        p.ErrorHints,
	}

	for _, o := range r.registry.overridesFor(p.ID, m.Key) {
		if o.FixedTemperature != nil {
			v := *o.FixedTemperature
			cfg.Temperature = &v
			cfg.TemperatureFixed = true
		}
		if o.OmitTemperature {
			cfg.Temperature = nil
			cfg.TemperatureFixed = true
		}
		if o.MaxTokensCap > 0 && (cfg.MaxTokens == 0 || cfg.MaxTokens > o.MaxTokensCap) {
			cfg.MaxTokens = o.MaxTokensCap
		}
		if o.MergeSystemPrompt {
			cfg.MergeSystemPrompt = true
		}
	}

	return cfg, nil
}

func (r *Resolver) wireModel(p *ProviderDescriptor, m ModelDescriptor) string {
	if m.WireName != "" {
		return m.WireName
	}
	if p.WireModels == nil {
		return m.Key
	}
	if wire, ok := p.WireModels[m.Key]; ok {
		return wire
	}

	fallback := p.DefaultModel
	if d, ok := p.Model(p.DefaultModel); ok && d.WireName != "" {
		fallback = d.WireName
	} else if wire, ok := p.WireModels[p.DefaultModel]; ok {
		fallback = wire
	}
	r.logger.Warn("model not in provider mapping, using provider default",
		"provider", p.ID, "model", m.Key, "fallback", fallback)
	return fallback
}
