package rewards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Service contains the reward domain logic over a Store.
type Service struct {
	store      Store
	nowFn      func() time.Time
	logger     OperationLogger
	catalog    SeasonalEventCatalog
	milestones []StreakMilestone
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{store: store, nowFn: now, milestones: defaultMilestones}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// AwardInput carries one balance mutation through the ledger primitive.
type AwardInput struct {
	UserID       string
	Amount       AmountCredits
	Type         TransactionType
	Description  string
	RelatedID    string
	Visibility   Visibility
	Source       RewardSource
	Intent       Intent
	MetadataJSON string
}

func (input *AwardInput) validate() error {
	if strings.TrimSpace(input.UserID) == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	if input.Amount == 0 {
		return fmt.Errorf("%w: must be non-zero", ErrInvalidAmount)
	}
	// Defaults apply before the relatedId guard so an input that defaults to
	// reward intent still carries a deduplication key.
	if input.Visibility == "" {
		input.Visibility = VisibilityVisible
	}
	if input.Intent == "" {
		input.Intent = IntentReward
	}
	if input.Source == "" {
		input.Source = SourceSystem
	}
	if input.Intent == IntentReward && strings.TrimSpace(input.RelatedID) == "" {
		return fmt.Errorf("%w: required for automated rewards", ErrInvalidRelatedID)
	}
	normalized, err := NormalizeMetadataJSON(input.MetadataJSON)
	if err != nil {
		return err
	}
	input.MetadataJSON = normalized
	return nil
}

// AwardCredits commits a balance mutation and its transaction record as one
// atomic unit. It does not pre-check for duplicates; the unique index on
// (user_id, related_id) is the enforcement boundary and a violation surfaces
// as ErrDuplicateRelatedID. A visible positive reward also enqueues an
// outbox notification inside the same transaction.
func (service *Service) AwardCredits(ctx context.Context, input AwardInput) error {
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		return service.award(ctx, txStore, &input)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationAward,
		UserID:    input.UserID,
		Type:      input.Type,
		Amount:    input.Amount,
		RelatedID: input.RelatedID,
		Error:     operationError,
	})
	return operationError
}

// award runs inside an open transaction scope so evaluators can combine the
// ledger insert with their own meta writes.
func (service *Service) award(ctx context.Context, txStore Store, input *AwardInput) error {
	if err := input.validate(); err != nil {
		return err
	}
	now := service.nowFn().UTC()
	transaction := Transaction{
		UserID:         input.UserID,
		Amount:         input.Amount,
		Type:           input.Type,
		Description:    input.Description,
		RelatedID:      input.RelatedID,
		Visibility:     input.Visibility,
		Source:         input.Source,
		Intent:         input.Intent,
		MetadataJSON:   input.MetadataJSON,
		CreatedUnixUTC: now.Unix(),
	}
	if err := txStore.InsertTransaction(ctx, transaction); err != nil {
		if errors.Is(err, ErrDuplicateRelatedID) {
			return err
		}
		return WrapError(operationAward, "transaction", "insert", fmt.Errorf("%w: %v", ErrLedgerWriteFailed, err))
	}
	if input.Visibility == VisibilityVisible && input.Intent == IntentReward && input.Amount > 0 {
		notification := RewardNotification{
			UserID:         input.UserID,
			Type:           input.Type,
			Amount:         input.Amount,
			RelatedID:      input.RelatedID,
			Description:    input.Description,
			CreatedUnixUTC: now.Unix(),
		}
		if err := txStore.EnqueueNotification(ctx, notification); err != nil {
			return WrapError(operationAward, "notification", "enqueue", fmt.Errorf("%w: %v", ErrLedgerWriteFailed, err))
		}
	}
	return nil
}

// Balance returns the derived running total for a user.
func (service *Service) Balance(ctx context.Context, userID string) (Balance, error) {
	total, err := service.store.SumBalance(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{TotalCredits: total}, nil
}

// ListTransactions lists ledger transactions for a user before a cutoff time.
func (service *Service) ListTransactions(ctx context.Context, userID string, beforeUnixUTC int64, limit int) ([]Transaction, error) {
	return service.store.ListTransactions(ctx, userID, beforeUnixUTC, limit)
}

// TouchStreak upserts a caller-maintained streak counter row.
func (service *Service) TouchStreak(ctx context.Context, state StreakState) error {
	if strings.TrimSpace(state.UserID) == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	if state.LastActiveDay == "" {
		state.LastActiveDay = DayKey(service.nowFn())
	}
	return service.store.TouchStreak(ctx, state)
}

// RegisterPhoneHash stores the stable phone hash used for global one-time
// reward deduplication.
func (service *Service) RegisterPhoneHash(ctx context.Context, userID string, phoneHash string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: empty value", ErrInvalidUserID)
	}
	return service.store.RegisterPhoneHash(ctx, userID, phoneHash)
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		if entry.Error != nil {
			entry.Status = operationStatusError
		} else {
			entry.Status = operationStatusOK
		}
	}
	service.logger.LogOperation(ctx, entry)
}

// logSkip records an evaluation that degraded to not-eligible because an
// optional lookup failed. Reward evaluation never aborts the primary action.
func (service *Service) logSkip(ctx context.Context, operation string, userID string, err error) {
	if service.logger == nil {
		return
	}
	service.logger.LogOperation(ctx, OperationLog{
		Operation: operation,
		UserID:    userID,
		Status:    operationStatusSkipped,
		Error:     err,
	})
}
