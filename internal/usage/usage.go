package usage

import (
	"context"
	"time"
)

// Log is one audited optimization request.
type Log struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RequestID    string    `json:"request_id"`
	Operation    string    `json:"operation"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Success      bool      `json:"success"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ProcessingMs int64     `json:"processing_ms"`
	Round        int       `json:"round,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Summary struct {
	Total     int64 `json:"total"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

type Store interface {
	LogUsage(ctx context.Context, log *Log) error
	GetUsageByUser(ctx context.Context, userID string, from, to time.Time) ([]*Log, error)
	GetSummaryByUser(ctx context.Context, userID string, from, to time.Time) (*Summary, error)
}
