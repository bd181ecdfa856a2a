package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vnmchuo/prompt-optimizer/internal/failure"
	"github.com/vnmchuo/prompt-optimizer/internal/logging"
	"github.com/vnmchuo/prompt-optimizer/internal/normalize"
	"github.com/vnmchuo/prompt-optimizer/internal/provider"
	"github.com/vnmchuo/prompt-optimizer/internal/registry"
)

const (
	MaxInputLength = 10000
	DefaultTimeout = 60 * time.Second
)

const (
	OperationOptimize = "optimize"
	OperationGenerate = "generate"
	OperationRefine   = "refine"
)

const OutcomeSuccess = "success"

// Observer receives call outcomes, typically for metrics.
type Observer interface {
	ObserveRequest(operation, provider, outcome string)
	ObserveLatency(provider string, d time.Duration)
}

// Target selects the provider and model for a call. Empty fields fall back
// to the service defaults.
type Target struct {
	Provider    string
	Model       string
	Temperature *float64
}

type Result struct {
	Success        bool
	Content        string
	Error          *failure.Error
	ProcessingTime float64 // seconds, 2 decimal places
	Provider       string
	Model          string
}

type OptimizeRequest struct {
	Prompt string
	Mode   string
	Target
}

type GenerateRequest struct {
	UserInfo          string
	TargetDescription string
	WritingStyle      string
	Tone              string
	OutputFormat      string
	Examples          string
	Tags              []string
	Target
}

// Service runs single provider round trips. It holds no per-call state and
// is safe for concurrent use.
type Service struct {
	resolver        *registry.Resolver
	client          provider.Client
	logger          *slog.Logger
	tracer          trace.Tracer
	observer        Observer
	timeout         time.Duration
	retry           RetryPolicy
	defaultProvider string
	defaultModel    string
}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Service) { s.retry = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func WithDefaults(providerID, modelKey string) Option {
	return func(s *Service) {
		s.defaultProvider = providerID
		s.defaultModel = modelKey
	}
}

func New(resolver *registry.Resolver, client provider.Client, opts ...Option) *Service {
	s := &Service{
		resolver: resolver,
		client:   client,
		logger:   slog.Default(),
		tracer:   otel.GetTracerProvider().Tracer("prompt-optimizer"),
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Optimize rewrites a draft instruction into a structured prompt.
func (s *Service) Optimize(ctx context.Context, req OptimizeRequest) Result {
	if fe := ValidateText("prompt", req.Prompt); fe != nil {
		return s.reject(OperationOptimize, req.Target, fe)
	}
	if fe := ValidateTemperature(req.Temperature); fe != nil {
		return s.reject(OperationOptimize, req.Target, fe)
	}

	messages := []provider.Message{
		{Role: provider.RoleSystem, Content: optimizeSystem(req.Mode)},
		{Role: provider.RoleUser, Content: fmt.Sprintf(optimizeUserTemplate, req.Prompt)},
	}
	return s.Complete(ctx, OperationOptimize, req.Target, messages)
}

// Generate writes a new prompt from a user profile and a goal.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) Result {
	if fe := ValidateText("userInfo", req.UserInfo); fe != nil {
		return s.reject(OperationGenerate, req.Target, fe)
	}
	if fe := ValidateText("targetDescription", req.TargetDescription); fe != nil {
		return s.reject(OperationGenerate, req.Target, fe)
	}
	if fe := ValidateTemperature(req.Temperature); fe != nil {
		return s.reject(OperationGenerate, req.Target, fe)
	}

	messages := []provider.Message{
		{Role: provider.RoleSystem, Content: generateSystemPrompt},
		{Role: provider.RoleUser, Content: generateUserMessage(req)},
	}
	return s.Complete(ctx, OperationGenerate, req.Target, messages)
}

func generateUserMessage(req GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User info: %s\nGoal: %s", strings.TrimSpace(req.UserInfo), strings.TrimSpace(req.TargetDescription))

	optional := []struct{ label, value string }{
		{"Writing style", req.WritingStyle},
		{"Tone", req.Tone},
		{"Output format", req.OutputFormat},
		{"Examples", req.Examples},
	}
	for _, o := range optional {
		if v := strings.TrimSpace(o.value); v != "" {
			fmt.Fprintf(&b, "\n%s: %s", o.label, v)
		}
	}

	var tags []string
	for _, t := range req.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) > 0 {
		fmt.Fprintf(&b, "\nTags: %s", strings.Join(tags, ", "))
	}
	return b.String()
}

// Complete resolves target, sends messages and returns the normalized
// completion. Resolution failures never reach the network.
func (s *Service) Complete(ctx context.Context, operation string, target Target, messages []provider.Message) Result {
	start := time.Now()
	target = s.withDefaults(target)

	cfg, err := s.resolver.Resolve(target.Provider, target.Model)
	if err != nil {
		return s.reject(operation, target, failure.Classify(err, target.Provider))
	}
	cfg = cfg.WithTemperature(target.Temperature)

	logger := logging.FromContext(ctx, s.logger).With(
		"operation", operation,
		"provider", cfg.ProviderID,
		"model", cfg.ModelKey,
	)

	ctx, span := s.tracer.Start(ctx, "optimizer."+operation, trace.WithAttributes(
		attribute.String("provider", cfg.ProviderID),
		attribute.String("model", cfg.ModelKey),
		attribute.String("wire_model", cfg.Model),
	))
	defer span.End()

	res := Result{Provider: cfg.ProviderID, Model: cfg.ModelKey}

	resp, err := s.call(ctx, cfg, messages)
	if s.observer != nil {
		s.observer.ObserveLatency(cfg.ProviderID, time.Since(start))
	}
	if err != nil {
		fe := failure.Classify(err, cfg.ProviderID, cfg.Hints...)
		logger.Error("provider call failed",
			"kind", fe.Kind,
			"status", fe.Status,
			"error", err,
		)
		return s.fail(span, operation, res, fe, start)
	}

	text := normalize.StripReasoning(resp.Content)
	if text == "" {
		fe := failure.New(failure.KindEmptyProviderResponse, fmt.Sprintf("%s returned an empty response", cfg.ProviderName))
		fe.Provider = cfg.ProviderID
		logger.Warn("provider returned empty content", "response_id", resp.ID)
		return s.fail(span, operation, res, fe, start)
	}

	res.Success = true
	res.Content = normalize.Normalize(text)
	res.ProcessingTime = round2(time.Since(start).Seconds())

	span.SetAttributes(
		attribute.String("outcome", OutcomeSuccess),
		attribute.Int("input_tokens", resp.InputTokens),
		attribute.Int("output_tokens", resp.OutputTokens),
	)
	s.observe(operation, cfg.ProviderID, OutcomeSuccess)
	logger.Info("provider call completed",
		"processing_time", res.ProcessingTime,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
	)
	return res
}

// call makes one attempt, or several when the retry policy allows it. Each
// attempt gets its own deadline.
func (s *Service) call(ctx context.Context, cfg registry.RequestConfig, messages []provider.Message) (*provider.Response, error) {
	attempt := func() (*provider.Response, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := s.client.Complete(callCtx, cfg, messages)
		if err != nil {
			return nil, failure.Classify(err, cfg.ProviderID, cfg.Hints...)
		}
		return resp, nil
	}

	if s.retry.MaxRetries == 0 {
		return attempt()
	}

	return backoff.Retry(ctx, func() (*provider.Response, error) {
		resp, err := attempt()
		if err != nil {
			fe, _ := failure.As(err)
			if !s.retry.retryable(fe) {
				return nil, backoff.Permanent(err)
			}
			s.logger.Warn("retrying provider call", "provider", cfg.ProviderID, "kind", fe.Kind)
			return nil, err
		}
		return resp, nil
	}, s.retry.options()...)
}

func (s *Service) withDefaults(t Target) Target {
	if t.Provider == "" {
		t.Provider = s.defaultProvider
		if t.Model == "" {
			t.Model = s.defaultModel
		}
	}
	if t.Model == "" {
		if p, ok := s.resolver.Registry().Provider(t.Provider); ok {
			t.Model = p.DefaultModel
		}
	}
	return t
}

func (s *Service) reject(operation string, target Target, fe *failure.Error) Result {
	target = s.withDefaults(target)
	s.observe(operation, target.Provider, string(fe.Kind))
	return Result{Error: fe, Provider: target.Provider, Model: target.Model}
}

func (s *Service) fail(span trace.Span, operation string, res Result, fe *failure.Error, start time.Time) Result {
	res.ProcessingTime = round2(time.Since(start).Seconds())
	span.SetAttributes(attribute.String("outcome", string(fe.Kind)))
	span.SetStatus(codes.Error, fe.Message)
	if fe.Err != nil {
		span.RecordError(fe.Err)
	}
	s.observe(operation, res.Provider, string(fe.Kind))
	res.Error = fe
	return res
}

func (s *Service) observe(operation, providerID, outcome string) {
	if s.observer != nil {
		s.observer.ObserveRequest(operation, providerID, outcome)
	}
}

// ValidateText rejects blank text and text longer than MaxInputLength
// characters.
func ValidateText(field, text string) *failure.Error {
	if strings.TrimSpace(text) == "" {
		return failure.EmptyInput(field)
	}
	if utf8.RuneCountInString(text) > MaxInputLength {
		return failure.InputTooLong(field, MaxInputLength)
	}
	return nil
}

func ValidateTemperature(t *float64) *failure.Error {
	if t == nil {
		return nil
	}
	if math.IsNaN(*t) || *t < 0 || *t > 1 {
		return failure.InvalidInput("temperature must be between 0 and 1")
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
