package rewards

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// NotificationSender delivers a reward notification to the user-facing
// transport. Delivery is best effort; failures are logged, never retried
// into the reward path.
type NotificationSender interface {
	SendRewardNotification(ctx context.Context, notification RewardNotification) error
}

const (
	defaultDispatchInterval = 5 * time.Second
	defaultDispatchBatch    = 50
)

// Dispatcher drains the notification outbox. Pending rows are written in the
// same transaction as the reward they announce; the dispatcher delivers them
// asynchronously so a slow notification channel never blocks a grant.
type Dispatcher struct {
	store    Store
	sender   NotificationSender
	logger   *zap.Logger
	clock    func() time.Time
	interval time.Duration
	batch    int
}

// NewDispatcher wires an outbox dispatcher.
func NewDispatcher(store Store, sender NotificationSender, logger *zap.Logger, now func() time.Time) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		store:    store,
		sender:   sender,
		logger:   logger,
		clock:    now,
		interval: defaultDispatchInterval,
		batch:    defaultDispatchBatch,
	}
}

// Run drains the outbox until the context is cancelled.
func (dispatcher *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(dispatcher.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := dispatcher.DrainOnce(ctx); err != nil {
				dispatcher.logger.Warn("notification drain failed", zap.Error(err))
			}
		}
	}
}

// DrainOnce delivers one batch of pending notifications and returns how many
// were sent. A failed send leaves its row pending for the next pass.
func (dispatcher *Dispatcher) DrainOnce(ctx context.Context) (int, error) {
	pending, err := dispatcher.store.PendingNotifications(ctx, dispatcher.batch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, notification := range pending {
		if err := dispatcher.sender.SendRewardNotification(ctx, notification); err != nil {
			dispatcher.logger.Warn("reward notification delivery failed",
				zap.String("user_id", notification.UserID),
				zap.String("related_id", notification.RelatedID),
				zap.Error(err))
			continue
		}
		if err := dispatcher.store.MarkNotificationSent(ctx, notification.NotificationID, dispatcher.clock().UTC().Unix()); err != nil {
			dispatcher.logger.Warn("notification ack failed",
				zap.String("notification_id", notification.NotificationID),
				zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}
