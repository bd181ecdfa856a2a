package usage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

const writeTimeout = 5 * time.Second

// Recorder persists usage logs off the request path. A circuit breaker stops
// hammering the database once writes keep failing; dropped records are
// reported through onDrop.
type Recorder struct {
	store   Store
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	onDrop  func()
	wg      sync.WaitGroup
}

func NewRecorder(store Store, logger *slog.Logger, onDrop func()) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        "usage-store",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &Recorder{
		store:   store,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
		onDrop:  onDrop,
	}
}

// Record writes log asynchronously.
func (r *Recorder) Record(log *Log) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		_ = r.Write(ctx, log)
	}()
}

// Write persists log through the circuit breaker.
func (r *Recorder) Write(ctx context.Context, log *Log) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.store.LogUsage(ctx, log)
	})
	if err != nil {
		r.logger.Warn("usage record dropped",
			"request_id", log.RequestID,
			"operation", log.Operation,
			"error", err,
		)
		if r.onDrop != nil {
			r.onDrop()
		}
	}
	return err
}

// Wait blocks until pending asynchronous writes finish.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) State() gobreaker.State {
	return r.breaker.State()
}
