package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vnmchuo/prompt-optimizer/internal/logging"
)

var (
	ErrKeyNotFound = errors.New("api key not found")
	ErrKeyExists   = errors.New("api key already exists")
)

const cacheTTL = 5 * time.Minute

type APIKey struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	KeyHash   string    `json:"key_hash"`
	RateLimit int64     `json:"rate_limit"` // requests per minute, 0 uses the service default
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// MarshalBinary implements encoding.BinaryMarshaler for Redis
func (a *APIKey) MarshalBinary() ([]byte, error) {
	return json.Marshal(a)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Redis
func (a *APIKey) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, a)
}

type Store interface {
	GetByKey(ctx context.Context, key string) (*APIKey, error)
	ListByUser(ctx context.Context, userID string) ([]*APIKey, error)
	Create(ctx context.Context, apiKey *APIKey) error
	Revoke(ctx context.Context, userID, keyID string) (keyHash string, err error)
}

// Cache is the part of *redis.Client the middleware uses.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func cacheKey(keyHash string) string {
	return fmt.Sprintf("auth:%s", keyHash)
}

type Middleware func(next http.Handler) http.Handler

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	apiKeyIDKey  contextKey = "api_key_id"
	requestIDKey contextKey = "request_id"
	rateLimitKey contextKey = "rate_limit"
)

func HashKey(key string) string {
	h := sha256.New()
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}

func NewMiddleware(store Store, cache Cache, logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			requestID := uuid.New().String()
			ctx = context.WithValue(ctx, requestIDKey, requestID)
			w.Header().Set("X-Request-ID", requestID)

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				unauthorized(w, "missing or invalid Authorization header")
				return
			}
			key := strings.TrimPrefix(authHeader, "Bearer ")

			redisKey := cacheKey(HashKey(key))

			var apiKey APIKey
			err := cache.Get(ctx, redisKey).Scan(&apiKey)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(withKey(ctx, &apiKey, requestID, logger)))
				return
			} else if err != redis.Nil {
				logger.Warn("auth cache lookup failed", "error", err)
			}

			// Cache miss or error: lookup in store
			found, err := store.GetByKey(ctx, key)
			if err != nil {
				if errors.Is(err, ErrKeyNotFound) {
					unauthorized(w, "invalid API key")
					return
				}
				logger.Error("auth store lookup failed", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}

			if err := cache.Set(ctx, redisKey, found, cacheTTL).Err(); err != nil {
				logger.Warn("auth cache write failed", "error", err)
			}

			next.ServeHTTP(w, r.WithContext(withKey(ctx, found, requestID, logger)))
		})
	}
}

func withKey(ctx context.Context, k *APIKey, requestID string, logger *slog.Logger) context.Context {
	ctx = context.WithValue(ctx, userIDKey, k.UserID)
	ctx = context.WithValue(ctx, apiKeyIDKey, k.ID)
	ctx = context.WithValue(ctx, rateLimitKey, k.RateLimit)
	return logging.NewContext(ctx, logging.WithRequest(logger, requestID, k.UserID))
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, "unauthorized: "+msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}

// Helpers to extract from context
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

func GetAPIKeyID(ctx context.Context) string {
	if id, ok := ctx.Value(apiKeyIDKey).(string); ok {
		return id
	}
	return ""
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetRateLimit returns the per-key requests-per-minute limit, or 0.
func GetRateLimit(ctx context.Context) int64 {
	if n, ok := ctx.Value(rateLimitKey).(int64); ok {
		return n
	}
	return 0
}

// Helpers for testing
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func WithAPIKeyID(ctx context.Context, apiKeyID string) context.Context {
	return context.WithValue(ctx, apiKeyIDKey, apiKeyID)
}

func WithRateLimit(ctx context.Context, rpm int64) context.Context {
	return context.WithValue(ctx, rateLimitKey, rpm)
}
