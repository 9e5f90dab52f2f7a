package rewards

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AmountCredits is an integer amount of the app's virtual currency.
type AmountCredits int64

// Int64 returns the raw amount.
func (amount AmountCredits) Int64() int64 {
	return int64(amount)
}

// TransactionType enumerates ledger transaction kinds.
type TransactionType string

const (
	TxStreakReward     TransactionType = "streak_reward"
	TxConsistencyBonus TransactionType = "consistency_bonus"
	TxBalancedDayBonus TransactionType = "balanced_day_bonus"
	TxWeeklyReflection TransactionType = "weekly_reflection"
	TxFirstTimeBonus   TransactionType = "first_time_bonus"
	TxSeasonalReward   TransactionType = "seasonal_reward"
	TxManualAdjustment TransactionType = "manual_adjustment"
	TxPurchaseDebit    TransactionType = "purchase_debit"
)

// String returns the stored representation.
func (transactionType TransactionType) String() string {
	return string(transactionType)
}

// Visibility controls whether a transaction is shown to the end user.
type Visibility string

const (
	VisibilityVisible Visibility = "visible"
	VisibilityHidden  Visibility = "hidden"
)

// String returns the stored representation.
func (visibility Visibility) String() string {
	return string(visibility)
}

// RewardSource identifies the subsystem that produced a transaction.
type RewardSource string

const (
	SourceStreak   RewardSource = "streak"
	SourceSystem   RewardSource = "system"
	SourceSeasonal RewardSource = "seasonal"
	SourceManual   RewardSource = "manual"
)

// String returns the stored representation.
func (source RewardSource) String() string {
	return string(source)
}

// Intent classifies the direction of a transaction.
type Intent string

const (
	IntentReward     Intent = "reward"
	IntentDebit      Intent = "debit"
	IntentAdjustment Intent = "adjustment"
)

// String returns the stored representation.
func (intent Intent) String() string {
	return string(intent)
}

// StreakType names a tracked habit dimension.
type StreakType string

const (
	StreakPresence StreakType = "presence"
	StreakKindness StreakType = "kindness"
	StreakResponse StreakType = "response"
)

// String returns the stored representation.
func (streakType StreakType) String() string {
	return string(streakType)
}

// RuleType names the triggering event kind of a seasonal rule.
type RuleType string

const (
	RuleEchoSent      RuleType = "echo_sent"
	RuleEchoResponded RuleType = "echo_responded"
	RuleLogin         RuleType = "login"
	RuleReflection    RuleType = "reflection"
)

// String returns the stored representation.
func (ruleType RuleType) String() string {
	return string(ruleType)
}

// Transaction is a single immutable line in the credit ledger.
// The persisted fields are the durable contract for history readers.
type Transaction struct {
	TransactionID  string
	UserID         string
	Amount         AmountCredits
	Type           TransactionType
	Description    string
	RelatedID      string
	Visibility     Visibility
	Source         RewardSource
	Intent         Intent
	MetadataJSON   string
	CreatedUnixUTC int64
}

// Balance is the derived running total for a user.
type Balance struct {
	TotalCredits AmountCredits
}

// ActivityMeta holds the per-user counters that drive eligibility decisions.
// One row per user, created lazily on first evaluation.
type ActivityMeta struct {
	UserID                   string
	TotalActiveDays          int
	LastBalancedBonusDay     string
	LastReflectionRewardWeek string
	SeasonRewardMeta         SeasonRewardMeta
}

// StreakState mirrors one habit dimension's streak counters for a user.
type StreakState struct {
	UserID        string
	StreakType    StreakType
	CurrentCount  int
	CycleNumber   int
	LastActiveDay string
}

// OneTimeReward records a global one-time grant keyed by phone hash,
// surviving account deletion and recreation.
type OneTimeReward struct {
	PhoneHash      string
	RewardType     string
	GrantedUnixUTC int64
}

// RewardNotification is a pending outbox row written in the same
// transaction as the reward it announces.
type RewardNotification struct {
	NotificationID string
	UserID         string
	Type           TransactionType
	Amount         AmountCredits
	RelatedID      string
	Description    string
	CreatedUnixUTC int64
	SentUnixUTC    int64
}

// SeasonalRule is one bonus rule inside a seasonal event.
type SeasonalRule struct {
	RuleType      RuleType
	BonusCredits  AmountCredits
	MaxTotal      int
	DailyCap      int
	CooldownHours int
	OncePerSeason bool
}

// SeasonalEvent is a time-boxed campaign supplied by the catalog.
type SeasonalEvent struct {
	ID       string
	Name     string
	StartsAt time.Time
	EndsAt   time.Time
	Rules    []SeasonalRule
}

// RuleFor returns the event's rule for the given type, if any.
func (event SeasonalEvent) RuleFor(ruleType RuleType) (SeasonalRule, bool) {
	for _, rule := range event.Rules {
		if rule.RuleType == ruleType {
			return rule, true
		}
	}
	return SeasonalRule{}, false
}

// Contains reports whether the event's date range covers the given instant.
func (event SeasonalEvent) Contains(at time.Time) bool {
	return !at.Before(event.StartsAt) && at.Before(event.EndsAt)
}

// SeasonalEventCatalog supplies the campaigns active on a given date.
// Implementations are re-read on every evaluation; the engine never caches.
type SeasonalEventCatalog interface {
	ActiveEvents(ctx context.Context, at time.Time) ([]SeasonalEvent, error)
}

// StreakMilestone is one row of the static milestone table.
type StreakMilestone struct {
	StreakType    StreakType
	RequiredCount int
	RewardCredits AmountCredits
	DisplayName   string
}

// RuleProgress tracks a user's progress against one event rule.
type RuleProgress struct {
	Count              int            `json:"count"`
	LastAwardedUnixUTC int64          `json:"last_awarded_unix,omitempty"`
	Daily              map[string]int `json:"daily,omitempty"`
}

// DailyCount returns the number of awards already granted for the day key.
func (progress *RuleProgress) DailyCount(dayKey string) int {
	if progress == nil || progress.Daily == nil {
		return 0
	}
	return progress.Daily[dayKey]
}

// EventProgress groups rule progress for one seasonal event.
type EventProgress struct {
	Rules map[string]*RuleProgress `json:"rules,omitempty"`
}

// SeasonRewardMeta is the versioned per-season progress blob stored on
// ActivityMeta. Unknown fields are ignored on decode; missing fields
// default, so evolving campaign schemas never lose data silently.
type SeasonRewardMeta struct {
	Version int                       `json:"version"`
	Events  map[string]*EventProgress `json:"events,omitempty"`
}

const seasonRewardMetaVersion = 1

// Progress returns the mutable rule progress for an event, allocating
// defaults for anything missing.
func (meta *SeasonRewardMeta) Progress(eventID string, ruleType RuleType) *RuleProgress {
	if meta.Events == nil {
		meta.Events = map[string]*EventProgress{}
	}
	event, ok := meta.Events[eventID]
	if !ok || event == nil {
		event = &EventProgress{}
		meta.Events[eventID] = event
	}
	if event.Rules == nil {
		event.Rules = map[string]*RuleProgress{}
	}
	progress, ok := event.Rules[ruleType.String()]
	if !ok || progress == nil {
		progress = &RuleProgress{}
		event.Rules[ruleType.String()] = progress
	}
	return progress
}

// DecodeSeasonRewardMeta parses the stored JSON blob, tolerating empty
// input and older unversioned payloads.
func DecodeSeasonRewardMeta(raw string) (SeasonRewardMeta, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "{}" || trimmed == "null" {
		return SeasonRewardMeta{Version: seasonRewardMetaVersion}, nil
	}
	var meta SeasonRewardMeta
	if err := json.Unmarshal([]byte(trimmed), &meta); err != nil {
		return SeasonRewardMeta{}, fmt.Errorf("%w: %v", ErrInvalidSeasonMeta, err)
	}
	if meta.Version == 0 {
		meta.Version = seasonRewardMetaVersion
	}
	return meta, nil
}

// Encode serializes the blob for storage.
func (meta SeasonRewardMeta) Encode() (string, error) {
	if meta.Version == 0 {
		meta.Version = seasonRewardMetaVersion
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSeasonMeta, err)
	}
	return string(encoded), nil
}

// NormalizeMetadataJSON validates metadata (defaulting to "{}" for empty input).
func NormalizeMetadataJSON(raw string) (string, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return "", fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return normalized, nil
}

// Store is the persistence contract used by Service.
// The unique index on (user_id, related_id) enforced by implementations is
// the system's duplicate-prevention boundary: InsertTransaction must surface
// a violation as ErrDuplicateRelatedID.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error

	InsertTransaction(ctx context.Context, transaction Transaction) error
	TransactionExists(ctx context.Context, userID string, relatedID string) (bool, error)
	SumBalance(ctx context.Context, userID string) (AmountCredits, error)
	ListTransactions(ctx context.Context, userID string, beforeUnixUTC int64, limit int) ([]Transaction, error)

	GetOrCreateActivityMeta(ctx context.Context, userID string) (ActivityMeta, error)
	SaveActivityMeta(ctx context.Context, meta ActivityMeta) error

	GetStreaks(ctx context.Context, userID string) ([]StreakState, error)
	TouchStreak(ctx context.Context, state StreakState) error

	PhoneHash(ctx context.Context, userID string) (string, error)
	RegisterPhoneHash(ctx context.Context, userID string, phoneHash string) error
	OneTimeRewardExists(ctx context.Context, phoneHash string, rewardType string) (bool, error)
	InsertOneTimeReward(ctx context.Context, record OneTimeReward) error

	EnqueueNotification(ctx context.Context, notification RewardNotification) error
	PendingNotifications(ctx context.Context, limit int) ([]RewardNotification, error)
	MarkNotificationSent(ctx context.Context, notificationID string, sentUnixUTC int64) error
}
