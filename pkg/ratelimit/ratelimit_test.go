package ratelimit

import (
	"context"
	"errors"
	"testing"

	extratelimit "github.com/vnmchuo/ratelimiter"
)

type countingStore struct {
	limit int
	seen  map[string]int
	err   error
}

func (s *countingStore) Allow(ctx context.Context, key string) (*extratelimit.Result, error) {
	return s.AllowN(ctx, key, 1)
}

func (s *countingStore) AllowN(ctx context.Context, key string, n int) (*extratelimit.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.seen[key] += n
	return &extratelimit.Result{Allowed: s.seen[key] <= s.limit}, nil
}

func (s *countingStore) Status(ctx context.Context, key string) (*extratelimit.Result, error) {
	return &extratelimit.Result{Allowed: s.seen[key] < s.limit}, nil
}

func newLimiter(defaultRPM int64, created *[]int64) *Limiter {
	return &Limiter{
		defaultRPM: defaultRPM,
		newStore: func(limit int64) extratelimit.Limiter {
			*created = append(*created, limit)
			return &countingStore{limit: int(limit), seen: map[string]int{}}
		},
		stores: make(map[int64]extratelimit.Limiter),
	}
}

func TestAllow_PerUserBudget(t *testing.T) {
	var created []int64
	l := newLimiter(2, &created)
	ctx := context.Background()

	for i, want := range []bool{true, true, false} {
		got, err := l.Allow(ctx, "alice", 0)
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if got != want {
			t.Errorf("request %d: expected %v, got %v", i+1, want, got)
		}
	}

	ok, _ := l.Allow(ctx, "bob", 0)
	if !ok {
		t.Errorf("bob has his own budget")
	}
	if len(created) != 1 || created[0] != 2 {
		t.Errorf("Expected one default store, got %v", created)
	}
}

func TestAllow_KeySpecificLimit(t *testing.T) {
	var created []int64
	l := newLimiter(2, &created)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, _ := l.Allow(ctx, "carol", 5)
		if !ok {
			t.Fatalf("request %d should be allowed under a limit of 5", i+1)
		}
	}
	if ok, _ := l.Allow(ctx, "carol", 5); ok {
		t.Errorf("6th request should be rejected")
	}
	if len(created) != 1 || created[0] != 5 {
		t.Errorf("Expected a single store for limit 5, got %v", created)
	}
}

func TestAllow_StoreError(t *testing.T) {
	l := NewTestLimiter(&countingStore{err: errors.New("redis down")})

	ok, err := l.Allow(context.Background(), "dave", 0)
	if err == nil || ok {
		t.Errorf("Expected error and rejection, got ok=%v err=%v", ok, err)
	}
}

func TestStatus_DoesNotConsume(t *testing.T) {
	var created []int64
	l := newLimiter(2, &created)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Status(ctx, "erin", 0)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("status check %d consumed the budget", i+1)
		}
	}

	l.Allow(ctx, "erin", 0)
	l.Allow(ctx, "erin", 0)
	if res, _ := l.Status(ctx, "erin", 0); res.Allowed {
		t.Errorf("Expected exhausted budget after two requests")
	}
}
