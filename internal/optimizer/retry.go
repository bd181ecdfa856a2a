package optimizer

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/vnmchuo/prompt-optimizer/internal/failure"
)

// RetryPolicy controls repeated attempts of one provider call. The zero
// value makes exactly one attempt.
type RetryPolicy struct {
	MaxRetries      uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p RetryPolicy) options() []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.MaxRetries + 1),
	}
}

// retryable limits provider errors to throttling and server faults; a 4xx
// other than 429 will fail the same way again.
func (p RetryPolicy) retryable(fe *failure.Error) bool {
	if fe == nil || !fe.Retryable() {
		return false
	}
	if fe.Kind == failure.KindProviderError {
		return fe.Status == http.StatusTooManyRequests || fe.Status >= http.StatusInternalServerError
	}
	return true
}

// Budget is the longest one call can take under p when each attempt is
// bounded by timeout: every attempt plus the largest possible wait between
// them.
func (p RetryPolicy) Budget(timeout time.Duration) time.Duration {
	wait := p.MaxInterval
	if wait <= 0 {
		wait = backoff.DefaultMaxInterval
	}
	wait = time.Duration(float64(wait) * (1 + backoff.DefaultRandomizationFactor))
	return time.Duration(p.MaxRetries+1)*timeout + time.Duration(p.MaxRetries)*wait
}
