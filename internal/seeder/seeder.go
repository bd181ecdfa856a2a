package seeder

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vnmchuo/prompt-optimizer/internal/auth"
)

const (
	TestAPIKey = "test-api-key-12345"
	TestUserID = "00000000-0000-0000-0000-000000000001"
	TestRPM    = 600
)

// SeedTestAPIKey inserts a development key. An existing key is not an error.
func SeedTestAPIKey(ctx context.Context, store auth.Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	apiKey := &auth.APIKey{
		UserID:    TestUserID,
		KeyHash:   auth.HashKey(TestAPIKey),
		RateLimit: TestRPM,
		Active:    true,
	}

	err := store.Create(ctx, apiKey)
	if errors.Is(err, auth.ErrKeyExists) {
		logger.Info("seed api key already exists, skipping", "user_id", TestUserID)
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("seed api key created", "key", TestAPIKey, "user_id", TestUserID, "rate_limit", TestRPM)
	return nil
}
