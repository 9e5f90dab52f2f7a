package rewards

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"
)

// stubStore is an in-memory Store that emulates the unique
// (user_id, related_id) index the real store enforces.
type stubStore struct {
	sequence      int
	transactions  []Transaction
	relatedSeen   map[string]bool
	metas         map[string]ActivityMeta
	streaks       map[string]map[StreakType]StreakState
	phoneHashes   map[string]string
	oneTime       map[string]bool
	notifications []RewardNotification

	failInsertTransaction error
	failGetStreaks        error
}

func newStubStore() *stubStore {
	return &stubStore{
		relatedSeen: map[string]bool{},
		metas:       map[string]ActivityMeta{},
		streaks:     map[string]map[StreakType]StreakState{},
		phoneHashes: map[string]string{},
		oneTime:     map[string]bool{},
	}
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	return fn(ctx, store)
}

func (store *stubStore) InsertTransaction(_ context.Context, transaction Transaction) error {
	if store.failInsertTransaction != nil {
		return store.failInsertTransaction
	}
	if transaction.RelatedID != "" {
		key := transaction.UserID + "|" + transaction.RelatedID
		if store.relatedSeen[key] {
			return ErrDuplicateRelatedID
		}
		store.relatedSeen[key] = true
	}
	store.sequence++
	transaction.TransactionID = fmt.Sprintf("tx-%d", store.sequence)
	store.transactions = append(store.transactions, transaction)
	return nil
}

func (store *stubStore) TransactionExists(_ context.Context, userID string, relatedID string) (bool, error) {
	return store.relatedSeen[userID+"|"+relatedID], nil
}

func (store *stubStore) SumBalance(_ context.Context, userID string) (AmountCredits, error) {
	var total AmountCredits
	for _, transaction := range store.transactions {
		if transaction.UserID == userID {
			total += transaction.Amount
		}
	}
	return total, nil
}

func (store *stubStore) ListTransactions(_ context.Context, userID string, beforeUnixUTC int64, limit int) ([]Transaction, error) {
	var matched []Transaction
	for _, transaction := range store.transactions {
		if transaction.UserID != userID {
			continue
		}
		if beforeUnixUTC > 0 && transaction.CreatedUnixUTC >= beforeUnixUTC {
			continue
		}
		matched = append(matched, transaction)
	}
	sort.Slice(matched, func(left, right int) bool {
		return matched[left].CreatedUnixUTC > matched[right].CreatedUnixUTC
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (store *stubStore) GetOrCreateActivityMeta(_ context.Context, userID string) (ActivityMeta, error) {
	meta, ok := store.metas[userID]
	if !ok {
		meta = ActivityMeta{UserID: userID}
	}
	return meta, nil
}

func (store *stubStore) SaveActivityMeta(_ context.Context, meta ActivityMeta) error {
	store.metas[meta.UserID] = meta
	return nil
}

func (store *stubStore) GetStreaks(_ context.Context, userID string) ([]StreakState, error) {
	if store.failGetStreaks != nil {
		return nil, store.failGetStreaks
	}
	var states []StreakState
	for _, state := range store.streaks[userID] {
		states = append(states, state)
	}
	return states, nil
}

func (store *stubStore) TouchStreak(_ context.Context, state StreakState) error {
	if store.streaks[state.UserID] == nil {
		store.streaks[state.UserID] = map[StreakType]StreakState{}
	}
	store.streaks[state.UserID][state.StreakType] = state
	return nil
}

func (store *stubStore) PhoneHash(_ context.Context, userID string) (string, error) {
	return store.phoneHashes[userID], nil
}

func (store *stubStore) RegisterPhoneHash(_ context.Context, userID string, phoneHash string) error {
	store.phoneHashes[userID] = phoneHash
	return nil
}

func (store *stubStore) OneTimeRewardExists(_ context.Context, phoneHash string, rewardType string) (bool, error) {
	return store.oneTime[phoneHash+"|"+rewardType], nil
}

func (store *stubStore) InsertOneTimeReward(_ context.Context, record OneTimeReward) error {
	store.oneTime[record.PhoneHash+"|"+record.RewardType] = true
	return nil
}

func (store *stubStore) EnqueueNotification(_ context.Context, notification RewardNotification) error {
	store.sequence++
	notification.NotificationID = fmt.Sprintf("n-%d", store.sequence)
	store.notifications = append(store.notifications, notification)
	return nil
}

func (store *stubStore) PendingNotifications(_ context.Context, limit int) ([]RewardNotification, error) {
	var pending []RewardNotification
	for _, notification := range store.notifications {
		if notification.SentUnixUTC == 0 {
			pending = append(pending, notification)
		}
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (store *stubStore) MarkNotificationSent(_ context.Context, notificationID string, sentUnixUTC int64) error {
	for index := range store.notifications {
		if store.notifications[index].NotificationID == notificationID {
			store.notifications[index].SentUnixUTC = sentUnixUTC
			return nil
		}
	}
	return fmt.Errorf("unknown notification %s", notificationID)
}

// fixedClock returns a controllable clock for tests.
type fixedClock struct {
	at time.Time
}

func (clock *fixedClock) now() time.Time {
	return clock.at
}

func (clock *fixedClock) advance(delta time.Duration) {
	clock.at = clock.at.Add(delta)
}

func mustNewService(test *testing.T, store Store, clock *fixedClock, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, clock.now, options...)
	if err != nil {
		test.Fatalf("service init failed: %v", err)
	}
	return service
}

func newTestClock(raw string) *fixedClock {
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		panic(err)
	}
	return &fixedClock{at: at.UTC()}
}

func (store *stubStore) transactionsFor(userID string) []Transaction {
	var matched []Transaction
	for _, transaction := range store.transactions {
		if transaction.UserID == userID {
			matched = append(matched, transaction)
		}
	}
	return matched
}
