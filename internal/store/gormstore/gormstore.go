package gormstore

import (
	"context"
	"errors"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumoapp/rewards/pkg/rewards"
)

const (
	constraintUserRelatedID = "uniq_tx_user_related"
	defaultMetadataJSON     = "{}"
	pgUniqueViolationCode   = "23505"
	sqliteConstraintCode    = 19

	errorOperationStore     = "store"
	errorSubjectTransaction = "transaction"
	errorSubjectBalance     = "balance"
	errorSubjectMeta        = "activity_meta"
	errorSubjectStreak      = "streak"
	errorSubjectIdentity    = "identity"
	errorSubjectHistory     = "reward_history"
	errorSubjectOutbox      = "outbox"
	errorCodeInsert         = "insert"
	errorCodeDuplicate      = "duplicate"
	errorCodeLookup         = "lookup"
	errorCodeList           = "list"
	errorCodeSave           = "save"
	errorCodeSum            = "sum"
	errorCodeInvalid        = "invalid"
	errorCodeUpdate         = "update"
)

// Store implements rewards.Store using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore rewards.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) InsertTransaction(ctx context.Context, transaction rewards.Transaction) error {
	var relatedID *string
	if transaction.RelatedID != "" {
		value := transaction.RelatedID
		relatedID = &value
	}
	row := CreditTransaction{
		TransactionID: transaction.TransactionID,
		UserID:        transaction.UserID,
		Amount:        transaction.Amount.Int64(),
		Type:          transaction.Type.String(),
		Description:   transaction.Description,
		RelatedID:     relatedID,
		Visibility:    transaction.Visibility.String(),
		Source:        transaction.Source.String(),
		Intent:        transaction.Intent.String(),
		Metadata:      datatypesJSON(transaction.MetadataJSON),
		CreatedAt:     time.Unix(transaction.CreatedUnixUTC, 0).UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	err := store.db.WithContext(ctx).Create(&row).Error
	if isRelatedIDConflict(err) {
		return wrapStoreError(errorSubjectTransaction, errorCodeDuplicate, rewards.ErrDuplicateRelatedID)
	}
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) TransactionExists(ctx context.Context, userID string, relatedID string) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&CreditTransaction{}).
		Where("user_id = ? AND related_id = ?", userID, relatedID).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectTransaction, errorCodeLookup, err)
	}
	return count > 0, nil
}

func (store *Store) SumBalance(ctx context.Context, userID string) (rewards.AmountCredits, error) {
	var sum sqlSum
	err := store.db.WithContext(ctx).
		Model(&CreditTransaction{}).
		Select("coalesce(sum(amount),0) as total").
		Where("user_id = ?", userID).
		Scan(&sum).Error
	if err != nil {
		return 0, wrapStoreError(errorSubjectBalance, errorCodeSum, err)
	}
	return rewards.AmountCredits(sum.Total), nil
}

func (store *Store) ListTransactions(ctx context.Context, userID string, beforeUnixUTC int64, limit int) ([]rewards.Transaction, error) {
	before := time.Unix(beforeUnixUTC, 0).UTC()
	if beforeUnixUTC == 0 {
		before = time.Now().UTC().Add(time.Second)
	}
	var rows []CreditTransaction
	err := store.db.WithContext(ctx).
		Where("user_id = ? AND created_at < ?", userID, before).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransaction, errorCodeList, err)
	}
	transactions := make([]rewards.Transaction, 0, len(rows))
	for _, row := range rows {
		transactions = append(transactions, mapTransaction(row))
	}
	return transactions, nil
}

func (store *Store) GetOrCreateActivityMeta(ctx context.Context, userID string) (rewards.ActivityMeta, error) {
	var row ActivityMetaRow
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rewards.ActivityMeta{UserID: userID}, nil
	}
	if err != nil {
		return rewards.ActivityMeta{}, wrapStoreError(errorSubjectMeta, errorCodeLookup, err)
	}
	seasonMeta, err := rewards.DecodeSeasonRewardMeta(string(row.SeasonRewardMeta))
	if err != nil {
		return rewards.ActivityMeta{}, wrapStoreError(errorSubjectMeta, errorCodeInvalid, err)
	}
	return rewards.ActivityMeta{
		UserID:                   row.UserID,
		TotalActiveDays:          row.TotalActiveDays,
		LastBalancedBonusDay:     row.LastBalancedBonusDay,
		LastReflectionRewardWeek: row.LastReflectionRewardWeek,
		SeasonRewardMeta:         seasonMeta,
	}, nil
}

func (store *Store) SaveActivityMeta(ctx context.Context, meta rewards.ActivityMeta) error {
	encoded, err := meta.SeasonRewardMeta.Encode()
	if err != nil {
		return wrapStoreError(errorSubjectMeta, errorCodeInvalid, err)
	}
	row := ActivityMetaRow{
		UserID:                   meta.UserID,
		TotalActiveDays:          meta.TotalActiveDays,
		LastBalancedBonusDay:     meta.LastBalancedBonusDay,
		LastReflectionRewardWeek: meta.LastReflectionRewardWeek,
		SeasonRewardMeta:         datatypes.JSON([]byte(encoded)),
	}
	err = store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return wrapStoreError(errorSubjectMeta, errorCodeSave, err)
	}
	return nil
}

func (store *Store) GetStreaks(ctx context.Context, userID string) ([]rewards.StreakState, error) {
	var rows []StreakStateRow
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectStreak, errorCodeList, err)
	}
	states := make([]rewards.StreakState, 0, len(rows))
	for _, row := range rows {
		states = append(states, rewards.StreakState{
			UserID:        row.UserID,
			StreakType:    rewards.StreakType(row.StreakType),
			CurrentCount:  row.CurrentCount,
			CycleNumber:   row.CycleNumber,
			LastActiveDay: row.LastActiveDay,
		})
	}
	return states, nil
}

func (store *Store) TouchStreak(ctx context.Context, state rewards.StreakState) error {
	row := StreakStateRow{
		UserID:        state.UserID,
		StreakType:    state.StreakType.String(),
		CurrentCount:  state.CurrentCount,
		CycleNumber:   state.CycleNumber,
		LastActiveDay: state.LastActiveDay,
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "streak_type"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return wrapStoreError(errorSubjectStreak, errorCodeSave, err)
	}
	return nil
}

func (store *Store) PhoneHash(ctx context.Context, userID string) (string, error) {
	var identity UserIdentity
	err := store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&identity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", wrapStoreError(errorSubjectIdentity, errorCodeLookup, rewards.ErrUnknownUser)
	}
	if err != nil {
		return "", wrapStoreError(errorSubjectIdentity, errorCodeLookup, err)
	}
	return identity.PhoneHash, nil
}

func (store *Store) RegisterPhoneHash(ctx context.Context, userID string, phoneHash string) error {
	identity := UserIdentity{UserID: userID, PhoneHash: phoneHash}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(&identity).Error
	if err != nil {
		return wrapStoreError(errorSubjectIdentity, errorCodeSave, err)
	}
	return nil
}

func (store *Store) OneTimeRewardExists(ctx context.Context, phoneHash string, rewardType string) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&OneTimeRewardRow{}).
		Where("phone_hash = ? AND reward_type = ?", phoneHash, rewardType).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectHistory, errorCodeLookup, err)
	}
	return count > 0, nil
}

func (store *Store) InsertOneTimeReward(ctx context.Context, record rewards.OneTimeReward) error {
	row := OneTimeRewardRow{
		PhoneHash:  record.PhoneHash,
		RewardType: record.RewardType,
		GrantedAt:  time.Unix(record.GrantedUnixUTC, 0).UTC(),
	}
	// Insert-if-absent: an existing claim is not an error.
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return wrapStoreError(errorSubjectHistory, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) EnqueueNotification(ctx context.Context, notification rewards.RewardNotification) error {
	row := RewardNotificationRow{
		NotificationID: notification.NotificationID,
		UserID:         notification.UserID,
		Type:           notification.Type.String(),
		Amount:         notification.Amount.Int64(),
		RelatedID:      notification.RelatedID,
		Description:    notification.Description,
		CreatedAt:      time.Unix(notification.CreatedUnixUTC, 0).UTC(),
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := store.db.WithContext(ctx).Create(&row).Error; err != nil {
		return wrapStoreError(errorSubjectOutbox, errorCodeInsert, err)
	}
	return nil
}

func (store *Store) PendingNotifications(ctx context.Context, limit int) ([]rewards.RewardNotification, error) {
	var rows []RewardNotificationRow
	err := store.db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectOutbox, errorCodeList, err)
	}
	notifications := make([]rewards.RewardNotification, 0, len(rows))
	for _, row := range rows {
		notifications = append(notifications, rewards.RewardNotification{
			NotificationID: row.NotificationID,
			UserID:         row.UserID,
			Type:           rewards.TransactionType(row.Type),
			Amount:         rewards.AmountCredits(row.Amount),
			RelatedID:      row.RelatedID,
			Description:    row.Description,
			CreatedUnixUTC: row.CreatedAt.Unix(),
		})
	}
	return notifications, nil
}

func (store *Store) MarkNotificationSent(ctx context.Context, notificationID string, sentUnixUTC int64) error {
	sentAt := time.Unix(sentUnixUTC, 0).UTC()
	result := store.db.WithContext(ctx).
		Model(&RewardNotificationRow{}).
		Where("notification_id = ? AND sent_at IS NULL", notificationID).
		Update("sent_at", &sentAt)
	if result.Error != nil {
		return wrapStoreError(errorSubjectOutbox, errorCodeUpdate, result.Error)
	}
	return nil
}

func wrapStoreError(subject string, code string, err error) error {
	return rewards.WrapError(errorOperationStore, subject, code, err)
}

type sqlSum struct {
	Total int64
}

func mapTransaction(row CreditTransaction) rewards.Transaction {
	relatedID := ""
	if row.RelatedID != nil {
		relatedID = *row.RelatedID
	}
	return rewards.Transaction{
		TransactionID:  row.TransactionID,
		UserID:         row.UserID,
		Amount:         rewards.AmountCredits(row.Amount),
		Type:           rewards.TransactionType(row.Type),
		Description:    row.Description,
		RelatedID:      relatedID,
		Visibility:     rewards.Visibility(row.Visibility),
		Source:         rewards.RewardSource(row.Source),
		Intent:         rewards.Intent(row.Intent),
		MetadataJSON:   string(row.Metadata),
		CreatedUnixUTC: row.CreatedAt.Unix(),
	}
}

func datatypesJSON(raw string) datatypes.JSON {
	if raw == "" {
		return datatypes.JSON([]byte(defaultMetadataJSON))
	}
	return datatypes.JSON([]byte(raw))
}

func isRelatedIDConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraintUserRelatedID
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()&0xFF == sqliteConstraintCode
	}
	return false
}
