package auth

import (
	"context"
	"log/slog"
)

// Keys manages a user's own API keys.
type Keys struct {
	store  Store
	cache  Cache
	logger *slog.Logger
}

func NewKeys(store Store, cache Cache, logger *slog.Logger) *Keys {
	if logger == nil {
		logger = slog.Default()
	}
	return &Keys{store: store, cache: cache, logger: logger}
}

func (k *Keys) List(ctx context.Context, userID string) ([]*APIKey, error) {
	return k.store.ListByUser(ctx, userID)
}

// Revoke deactivates the key and evicts it from the auth cache so it stops
// working immediately rather than when the cache entry expires.
func (k *Keys) Revoke(ctx context.Context, userID, keyID string) error {
	keyHash, err := k.store.Revoke(ctx, userID, keyID)
	if err != nil {
		return err
	}
	if err := k.cache.Del(ctx, cacheKey(keyHash)).Err(); err != nil {
		k.logger.Warn("auth cache eviction failed", "key_id", keyID, "error", err)
	}
	return nil
}
