// Package notify holds the notification sender used when no push transport
// is wired. The real delivery channel lives outside this service; the log
// sender keeps the outbox draining in environments without one.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/lumoapp/rewards/pkg/rewards"
)

// LogSender implements rewards.NotificationSender by logging deliveries.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender wires a sender over the given logger.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// SendRewardNotification records the notification and reports success.
func (sender *LogSender) SendRewardNotification(_ context.Context, notification rewards.RewardNotification) error {
	sender.logger.Info("reward notification",
		zap.String("user_id", notification.UserID),
		zap.String("type", notification.Type.String()),
		zap.Int64("amount", notification.Amount.Int64()),
		zap.String("related_id", notification.RelatedID),
		zap.String("description", notification.Description),
	)
	return nil
}
