package exchange

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLimiter_EnforcesMinDelay(t *testing.T) {
	l := newLimiter(50*time.Millisecond, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, l.wait(ctx)) // first call passes immediately

	start := time.Now()
	require.NoError(t, l.wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}

func TestLimiter_BackoffEscalatesAndCaps(t *testing.T) {
	l := newLimiter(0, zap.NewNop())

	l.failure()
	first := l.backoff
	assert.GreaterOrEqual(t, first, l.initialBackoff)
	assert.LessOrEqual(t, first, l.initialBackoff+l.initialBackoff/2)

	l.failure()
	assert.GreaterOrEqual(t, l.backoff, 2*l.initialBackoff)

	for i := 0; i < 20; i++ {
		l.failure()
	}
	assert.LessOrEqual(t, l.backoff, l.maxBackoff+l.maxBackoff/2)
	assert.Equal(t, 22, l.consecutiveFailures())
}

func TestLimiter_SuccessResets(t *testing.T) {
	l := newLimiter(0, zap.NewNop())

	l.failure()
	l.failure()
	require.Positive(t, l.backoff)
	require.Equal(t, 2, l.consecutiveFailures())

	l.success()
	assert.Zero(t, l.backoff)
	assert.Zero(t, l.consecutiveFailures())
}

func TestLimiter_WaitCancellable(t *testing.T) {
	l := newLimiter(10*time.Second, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, l.wait(ctx))

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := l.wait(cancelCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
