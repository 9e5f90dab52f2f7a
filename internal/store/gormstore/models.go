package gormstore

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreditTransaction mirrors the credit_transactions table. Rows are append
// only; the unique (user_id, related_id) index is the duplicate-prevention
// boundary for automated rewards.
type CreditTransaction struct {
	TransactionID string         `gorm:"type:uuid;primaryKey"`
	UserID        string         `gorm:"not null;index:idx_tx_user_created,priority:1;index:uniq_tx_user_related,unique,priority:1"`
	Amount        int64          `gorm:"not null"`
	Type          string         `gorm:"not null"`
	Description   string         `gorm:""`
	RelatedID     *string        `gorm:"index:uniq_tx_user_related,unique,priority:2"`
	Visibility    string         `gorm:"not null"`
	Source        string         `gorm:"not null"`
	Intent        string         `gorm:"not null"`
	Metadata      datatypes.JSON `gorm:"not null"`
	CreatedAt     time.Time      `gorm:"not null;index:idx_tx_user_created,priority:2"`
}

func (CreditTransaction) TableName() string { return "credit_transactions" }

func (transaction *CreditTransaction) BeforeCreate(tx *gorm.DB) error {
	if transaction.TransactionID == "" {
		transaction.TransactionID = uuid.NewString()
	}
	return nil
}

// ActivityMetaRow mirrors the activity_meta table, one row per user.
type ActivityMetaRow struct {
	UserID                   string         `gorm:"primaryKey"`
	TotalActiveDays          int            `gorm:"not null"`
	LastBalancedBonusDay     string         `gorm:""`
	LastReflectionRewardWeek string         `gorm:""`
	SeasonRewardMeta         datatypes.JSON `gorm:"not null"`
	CreatedAt                time.Time      `gorm:"not null"`
	UpdatedAt                time.Time      `gorm:"not null"`
}

func (ActivityMetaRow) TableName() string { return "activity_meta" }

// StreakStateRow mirrors the streak_states table.
type StreakStateRow struct {
	UserID        string    `gorm:"primaryKey"`
	StreakType    string    `gorm:"primaryKey"`
	CurrentCount  int       `gorm:"not null"`
	CycleNumber   int       `gorm:"not null"`
	LastActiveDay string    `gorm:""`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (StreakStateRow) TableName() string { return "streak_states" }

// UserIdentity maps a user id to the stable phone hash used by the global
// one-time reward history.
type UserIdentity struct {
	UserID    string    `gorm:"primaryKey"`
	PhoneHash string    `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

func (UserIdentity) TableName() string { return "user_identities" }

// OneTimeRewardRow mirrors the reward_history table, keyed by phone hash so
// account recreation cannot re-claim a one-time grant.
type OneTimeRewardRow struct {
	PhoneHash  string    `gorm:"primaryKey"`
	RewardType string    `gorm:"primaryKey"`
	GrantedAt  time.Time `gorm:"not null"`
}

func (OneTimeRewardRow) TableName() string { return "reward_history" }

// RewardNotificationRow mirrors the reward_notifications outbox table.
// sent_at stays null while delivery is pending.
type RewardNotificationRow struct {
	NotificationID string     `gorm:"type:uuid;primaryKey"`
	UserID         string     `gorm:"not null;index"`
	Type           string     `gorm:"not null"`
	Amount         int64      `gorm:"not null"`
	RelatedID      string     `gorm:""`
	Description    string     `gorm:""`
	CreatedAt      time.Time  `gorm:"not null;index:idx_notifications_pending,priority:2"`
	SentAt         *time.Time `gorm:"index:idx_notifications_pending,priority:1"`
}

func (RewardNotificationRow) TableName() string { return "reward_notifications" }

func (notification *RewardNotificationRow) BeforeCreate(tx *gorm.DB) error {
	if notification.NotificationID == "" {
		notification.NotificationID = uuid.NewString()
	}
	return nil
}

// Models lists every table for schema migration.
func Models() []any {
	return []any{
		&CreditTransaction{},
		&ActivityMetaRow{},
		&StreakStateRow{},
		&UserIdentity{},
		&OneTimeRewardRow{},
		&RewardNotificationRow{},
	}
}
