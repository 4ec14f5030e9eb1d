package exchange

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 60 * time.Second
)

// limiter spaces outbound exchange calls behind a minimum inter-request
// delay and escalates an exponential backoff on failures. All calls share one
// outbound rate budget: the mutex is held across the wait so concurrent
// callers pass the gate one at a time, though the HTTP round trips themselves
// may still overlap.
type limiter struct {
	mu             sync.Mutex
	minDelay       time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration

	backoff     time.Duration
	failures    int
	lastRequest time.Time

	rng *rand.Rand
	log *zap.Logger
}

func newLimiter(minDelay time.Duration, log *zap.Logger) *limiter {
	return &limiter{
		minDelay:       minDelay,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		lastRequest:    time.Now().Add(-minDelay),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		log:            log,
	}
}

// wait blocks until at least minDelay+backoff has elapsed since the previous
// request. It returns early with the context error on cancellation.
func (l *limiter) wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := l.minDelay + l.backoff
	elapsed := time.Since(l.lastRequest)

	if elapsed < total {
		sleep := total - elapsed
		l.log.Debug("rate limiting", zap.Duration("sleep", sleep))

		timer := time.NewTimer(sleep)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	l.lastRequest = time.Now()
	return nil
}

// failure escalates the backoff: initial value on the first failure, doubled
// and capped afterwards, plus jitter in [0, backoff/2].
func (l *limiter) failure() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failures++

	if l.backoff == 0 {
		l.backoff = l.initialBackoff
	} else {
		l.backoff *= 2
		if l.backoff > l.maxBackoff {
			l.backoff = l.maxBackoff
		}
	}
	jitter := time.Duration(l.rng.Int63n(int64(l.backoff/2) + 1))
	l.backoff += jitter

	l.log.Warn("applying backoff",
		zap.Duration("backoff", l.backoff),
		zap.Int("consecutive_failures", l.failures))
}

func (l *limiter) success() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.backoff = 0
	l.failures = 0
}

func (l *limiter) consecutiveFailures() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures
}
