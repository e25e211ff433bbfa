package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// WithdrawalRefresher is the slice of the payment service the poller needs.
type WithdrawalRefresher interface {
	PollPendingWithdrawals(ctx context.Context) (int, error)
}

// PollWithdrawals refreshes pending payout transfers every interval until ctx
// is cancelled. A failed round is logged and retried on the next tick.
func PollWithdrawals(ctx context.Context, svc WithdrawalRefresher, interval time.Duration, log *zap.Logger) {
	log.Info("withdrawal polling started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("withdrawal polling stopped")
			return
		case <-ticker.C:
			changed, err := svc.PollPendingWithdrawals(ctx)
			if err != nil {
				log.Error("withdrawal poll failed", zap.Error(err))
				continue
			}
			if changed > 0 {
				log.Info("withdrawals updated", zap.Int("changed", changed))
			}
		}
	}
}
