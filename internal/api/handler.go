package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vnmchuo/prompt-optimizer/internal/auth"
	"github.com/vnmchuo/prompt-optimizer/internal/failure"
	"github.com/vnmchuo/prompt-optimizer/internal/logging"
	"github.com/vnmchuo/prompt-optimizer/internal/optimizer"
	"github.com/vnmchuo/prompt-optimizer/internal/provider"
	"github.com/vnmchuo/prompt-optimizer/internal/refine"
	"github.com/vnmchuo/prompt-optimizer/internal/registry"
	"github.com/vnmchuo/prompt-optimizer/internal/usage"
	"github.com/vnmchuo/prompt-optimizer/pkg/ratelimit"
)

type Generator interface {
	Generate(ctx context.Context, req optimizer.GenerateRequest) optimizer.Result
}

type Refiner interface {
	Start(ctx context.Context, req refine.StartRequest) (refine.Session, optimizer.Result)
	Refine(ctx context.Context, req refine.RefineRequest) refine.RefineResult
}

type Recorder interface {
	Record(log *usage.Log)
}

// KeyManager lists and revokes the caller's own API keys.
type KeyManager interface {
	List(ctx context.Context, userID string) ([]*auth.APIKey, error)
	Revoke(ctx context.Context, userID, keyID string) error
}

// maxBodyBytes caps request bodies. Inputs are limited to 10000 characters,
// so anything near this size is abuse.
const maxBodyBytes = 10 << 20

type Deps struct {
	Generator       Generator
	Refiner         Refiner
	Resolver        *registry.Resolver
	Usage           usage.Store
	Recorder        Recorder
	Keys            KeyManager
	Limiter         *ratelimit.Limiter
	Tracer          trace.Tracer
	Production      bool
	DefaultProvider string
	DefaultModel    string
	OnRateLimited   func()
}

type Handler struct {
	generator       Generator
	refiner         Refiner
	resolver        *registry.Resolver
	usage           usage.Store
	recorder        Recorder
	keys            KeyManager
	limiter         *ratelimit.Limiter
	tracer          trace.Tracer
	production      bool
	defaultProvider string
	defaultModel    string
	onRateLimited   func()
}

func NewHandler(d Deps) *Handler {
	tracer := d.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	return &Handler{
		generator:       d.Generator,
		refiner:         d.Refiner,
		resolver:        d.Resolver,
		usage:           d.Usage,
		recorder:        d.Recorder,
		keys:            d.Keys,
		limiter:         d.Limiter,
		tracer:          tracer,
		production:      d.Production,
		defaultProvider: d.DefaultProvider,
		defaultModel:    d.DefaultModel,
		onRateLimited:   d.OnRateLimited,
	}
}

func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	call, ok := h.prepare(w, r, optimizer.OperationOptimize, &req)
	if !ok {
		return
	}
	defer call.span.End()

	prompt, mode := req.instruction()
	session, res := h.refiner.Start(call.ctx, refine.StartRequest{
		Instruction: prompt,
		Requirement: req.Requirement,
		Mode:        mode,
		Target:      req.target(),
	})
	h.record(call, res.Provider, res.Model, res.Error, session.Round)

	if !res.Success {
		h.writeFailure(w, res.Error, map[string]interface{}{
			"processing_time": res.ProcessingTime,
			"provider":        res.Provider,
			"model":           res.Model,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":             true,
		"optimized":           res.Content,
		"optimizedPrompt":     res.Content,
		"processing_time":     res.ProcessingTime,
		"provider":            res.Provider,
		"model":               res.Model,
		"conversationHistory": session.History,
		"round":               session.Round,
	})
}

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	call, ok := h.prepare(w, r, optimizer.OperationGenerate, &req)
	if !ok {
		return
	}
	defer call.span.End()

	res := h.generator.Generate(call.ctx, optimizer.GenerateRequest{
		UserInfo:          req.UserInfo,
		TargetDescription: req.TargetDescription,
		WritingStyle:      req.WritingStyle,
		Tone:              req.Tone,
		OutputFormat:      req.OutputFormat,
		Examples:          req.Examples,
		Tags:              req.Tags,
		Target:            req.target(),
	})
	h.record(call, res.Provider, res.Model, res.Error, 0)

	if !res.Success {
		h.writeFailure(w, res.Error, map[string]interface{}{
			"processing_time": res.ProcessingTime,
			"provider":        res.Provider,
			"model":           res.Model,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"generated":       res.Content,
		"generatedPrompt": res.Content,
		"processing_time": res.ProcessingTime,
		"provider":        res.Provider,
		"model":           res.Model,
	})
}

func (h *Handler) HandleRefine(w http.ResponseWriter, r *http.Request) {
	var req refineRequest
	call, ok := h.prepare(w, r, optimizer.OperationRefine, &req)
	if !ok {
		return
	}
	defer call.span.End()

	res := h.refiner.Refine(call.ctx, refine.RefineRequest{
		OriginalInstruction: req.OriginalPrompt,
		CurrentInstruction:  req.CurrentPrompt,
		Feedback:            req.UserFeedback,
		History:             req.ConversationHistory,
		Mode:                refine.Mode(req.OptimizationMode),
		Target:              req.target(),
	})
	h.record(call, res.Provider, res.Model, res.Error, res.Round)

	history := res.ConversationHistory
	if history == nil {
		history = []provider.Message{}
	}

	if !res.Success {
		h.writeFailure(w, res.Error, map[string]interface{}{
			"conversationHistory": history,
			"round":               res.Round,
			"processing_time":     res.ProcessingTime,
			"provider":            res.Provider,
			"model":               res.Model,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":             true,
		"optimizedPrompt":     res.OptimizedPrompt,
		"conversationHistory": history,
		"round":               res.Round,
		"processing_time":     res.ProcessingTime,
		"provider":            res.Provider,
		"model":               res.Model,
	})
}

// HandleModels lists every provider with its models.
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	reg := h.resolver.Registry()

	providers := []map[string]interface{}{}
	for _, p := range reg.Providers() {
		models := []map[string]interface{}{}
		for _, m := range reg.Models(p.ID) {
			models = append(models, map[string]interface{}{
				"key":         m.Key,
				"name":        m.Name,
				"recommended": m.Recommended,
			})
		}
		providers = append(providers, map[string]interface{}{
			"id":           p.ID,
			"name":         p.Name,
			"defaultModel": p.DefaultModel,
			"models":       models,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"providers":   providers,
		"recommended": recommended(reg),
	})
}

// HandleStatus validates a provider/model pair without calling it.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	providerID := r.URL.Query().Get("provider")
	model := r.URL.Query().Get("model")
	if providerID == "" {
		providerID = h.defaultProvider
		if model == "" {
			model = h.defaultModel
		}
	}
	if model == "" {
		if p, ok := h.resolver.Registry().Provider(providerID); ok {
			model = p.DefaultModel
		}
	}

	current := map[string]interface{}{
		"provider": providerID,
		"model":    model,
		"isValid":  true,
	}
	if _, err := h.resolver.Resolve(providerID, model); err != nil {
		fe := failure.Classify(err, providerID)
		current["isValid"] = false
		current["error"] = fe.Message
		current["kind"] = fe.Kind
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data": map[string]interface{}{
			"currentModel": current,
			"recommended":  recommended(h.resolver.Registry()),
		},
	})
}

func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Parse query parameters
	now := time.Now()
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")

	from := now.AddDate(0, 0, -30) // Default: last 30 days
	to := now

	if fromStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'from' date format (use RFC3339)")
			return
		}
	}

	if toStr != "" {
		var err error
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid 'to' date format (use RFC3339)")
			return
		}
	}

	logs, err := h.usage.GetUsageByUser(ctx, userID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, h.internalMessage(err))
		return
	}

	summary, err := h.usage.GetSummaryByUser(ctx, userID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, h.internalMessage(err))
		return
	}

	if logs == nil {
		logs = []*usage.Log{}
	}

	body := map[string]interface{}{
		"success":        true,
		"user_id":        userID,
		"total_requests": summary.Total,
		"succeeded":      summary.Succeeded,
		"failed":         summary.Failed,
		"logs":           logs,
		"from":           from,
		"to":             to,
	}

	// Reading the budget does not consume it.
	if st, err := h.limiter.Status(ctx, userID, auth.GetRateLimit(ctx)); err != nil {
		logging.FromContext(ctx, slog.Default()).Warn("rate limit status unavailable", "error", err)
	} else {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(st.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(st.Remaining, 10))
		body["rate_limit"] = map[string]interface{}{
			"limit":               st.Limit,
			"remaining":           st.Remaining,
			"reset_after_seconds": int64(st.ResetAfter.Seconds()),
		}
	}

	writeJSON(w, http.StatusOK, body)
}

// HandleListKeys lists the caller's API keys without their hashes.
func (h *Handler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	keys, err := h.keys.List(ctx, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, h.internalMessage(err))
		return
	}

	current := auth.GetAPIKeyID(ctx)
	out := []map[string]interface{}{}
	for _, k := range keys {
		out = append(out, map[string]interface{}{
			"id":         k.ID,
			"rate_limit": k.RateLimit,
			"active":     k.Active,
			"current":    k.ID == current,
			"created_at": k.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"keys":    out,
	})
}

// HandleRevokeKey deactivates one of the caller's keys.
func (h *Handler) HandleRevokeKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := auth.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	keyID := chi.URLParam(r, "id")
	if keyID == "" {
		writeError(w, http.StatusBadRequest, "key id is required")
		return
	}

	err := h.keys.Revoke(ctx, userID, keyID)
	if errors.Is(err, auth.ErrKeyNotFound) {
		writeError(w, http.StatusNotFound, "api key not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, h.internalMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      keyID,
		"revoked": true,
	})
}

type call struct {
	ctx       context.Context
	span      trace.Span
	operation string
	userID    string
	requestID string
	started   time.Time
}

// prepare authenticates, decodes the body into dst and applies the user's
// rate limit. It writes the error response itself and reports ok=false.
func (h *Handler) prepare(w http.ResponseWriter, r *http.Request, operation string, dst interface{}) (call, bool) {
	ctx := r.Context()
	userID := auth.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return call{}, false
	}

	requestID := auth.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return call{}, false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return call{}, false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return call{}, false
	}

	allowed, err := h.limiter.Allow(ctx, userID, auth.GetRateLimit(ctx))
	if err != nil || !allowed {
		if h.onRateLimited != nil {
			h.onRateLimited()
		}
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"success":     false,
			"error":       "rate limit exceeded, please retry later",
			"retry_after": 60,
		})
		return call{}, false
	}

	ctx, span := h.tracer.Start(ctx, "api."+operation)
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("request_id", requestID),
	)

	return call{
		ctx:       ctx,
		span:      span,
		operation: operation,
		userID:    userID,
		requestID: requestID,
		started:   time.Now(),
	}, true
}

func (h *Handler) record(c call, providerID, model string, fe *failure.Error, round int) {
	if h.recorder == nil {
		return
	}
	l := &usage.Log{
		UserID:       c.userID,
		RequestID:    c.requestID,
		Operation:    c.operation,
		Provider:     providerID,
		Model:        model,
		Success:      fe == nil,
		ProcessingMs: time.Since(c.started).Milliseconds(),
		Round:        round,
	}
	if fe != nil {
		l.ErrorKind = string(fe.Kind)
	}
	h.recorder.Record(l)
}

func (h *Handler) writeFailure(w http.ResponseWriter, fe *failure.Error, extra map[string]interface{}) {
	if fe == nil {
		fe = failure.New(failure.KindInternalError, "request processing failed")
	}
	body := map[string]interface{}{
		"success": false,
		"error":   fe.Message,
		"kind":    fe.Kind,
	}
	if !h.production {
		if d := fe.Details(); d != "" {
			body["details"] = d
		}
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, fe.HTTPStatus(), body)
}

func (h *Handler) internalMessage(err error) string {
	if h.production {
		return "internal server error"
	}
	return fmt.Sprintf("internal server error: %v", err)
}

func recommended(reg *registry.Registry) []map[string]interface{} {
	out := []map[string]interface{}{}
	for _, m := range reg.Recommended() {
		out = append(out, map[string]interface{}{
			"provider": m.Provider,
			"model":    m.Key,
			"name":     m.Name,
			"reason":   m.Reason,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}
