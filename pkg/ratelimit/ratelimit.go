package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	extratelimit "github.com/vnmchuo/ratelimiter"
)

// Limiter counts requests per user per minute. It is a thin wrapper around
// github.com/vnmchuo/ratelimiter with one backing store per distinct limit,
// so API keys may carry their own requests-per-minute budget.
type Limiter struct {
	defaultRPM int64
	newStore   func(limit int64) extratelimit.Limiter

	mu     sync.Mutex
	stores map[int64]extratelimit.Limiter
}

func NewLimiter(rdb *redis.Client, defaultRPM int64) *Limiter {
	return &Limiter{
		defaultRPM: defaultRPM,
		newStore: func(limit int64) extratelimit.Limiter {
			return extratelimit.NewRedisStore(rdb,
				extratelimit.WithLimit(int(limit)),
				extratelimit.WithWindow(time.Minute),
			)
		},
		stores: make(map[int64]extratelimit.Limiter),
	}
}

// NewTestLimiter uses store for every limit.
func NewTestLimiter(store extratelimit.Limiter) *Limiter {
	return &Limiter{
		newStore: func(int64) extratelimit.Limiter { return store },
		stores:   make(map[int64]extratelimit.Limiter),
	}
}

func key(userID string) string {
	return fmt.Sprintf("ratelimit:user:%s", userID)
}

// Allow consumes one request from the user's budget. rpm <= 0 selects the
// default limit.
func (l *Limiter) Allow(ctx context.Context, userID string, rpm int64) (bool, error) {
	res, err := l.storeFor(rpm).Allow(ctx, key(userID))
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

func (l *Limiter) Status(ctx context.Context, userID string, rpm int64) (*extratelimit.Result, error) {
	return l.storeFor(rpm).Status(ctx, key(userID))
}

func (l *Limiter) storeFor(rpm int64) extratelimit.Limiter {
	if rpm <= 0 {
		rpm = l.defaultRPM
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.stores[rpm]
	if !ok {
		s = l.newStore(rpm)
		l.stores[rpm] = s
	}
	return s
}
