package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type countingRefresher struct {
	calls atomic.Int32
}

func (r *countingRefresher) PollPendingWithdrawals(context.Context) (int, error) {
	if r.calls.Add(1)%2 == 0 {
		return 0, errors.New("gateway down")
	}
	return 1, nil
}

func TestPollWithdrawalsRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &countingRefresher{}
	done := make(chan struct{})
	go func() {
		PollWithdrawals(ctx, svc, 5*time.Millisecond, zaptest.NewLogger(t))
		close(done)
	}()

	assert.Eventually(t, func() bool { return svc.calls.Load() >= 3 }, time.Second, 5*time.Millisecond,
		"keeps polling after a failed round")
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
