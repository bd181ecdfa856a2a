package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) Store {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) LogUsage(ctx context.Context, log *Log) error {
	query := `
		INSERT INTO usage_logs (user_id, request_id, operation, provider, model, success, error_kind, processing_ms, round)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := s.db.QueryRow(ctx, query,
		log.UserID, log.RequestID, log.Operation, log.Provider, log.Model,
		log.Success, log.ErrorKind, log.ProcessingMs, log.Round,
	).Scan(&log.ID, &log.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to log usage: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetUsageByUser(ctx context.Context, userID string, from, to time.Time) ([]*Log, error) {
	query := `
		SELECT id, user_id, request_id, operation, provider, model, success, error_kind, processing_ms, round, created_at
		FROM usage_logs
		WHERE user_id = $1 AND created_at BETWEEN $2 AND $3
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage logs: %w", err)
	}
	defer rows.Close()

	var logs []*Log
	for rows.Next() {
		var l Log
		err := rows.Scan(
			&l.ID, &l.UserID, &l.RequestID, &l.Operation, &l.Provider, &l.Model,
			&l.Success, &l.ErrorKind, &l.ProcessingMs, &l.Round, &l.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage log: %w", err)
		}
		logs = append(logs, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage logs: %w", err)
	}

	return logs, nil
}

func (s *PostgresStore) GetSummaryByUser(ctx context.Context, userID string, from, to time.Time) (*Summary, error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE success)
		FROM usage_logs
		WHERE user_id = $1 AND created_at BETWEEN $2 AND $3
	`
	var sum Summary
	err := s.db.QueryRow(ctx, query, userID, from, to).Scan(&sum.Total, &sum.Succeeded)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	sum.Failed = sum.Total - sum.Succeeded

	return &sum, nil
}
