package rewards

import (
	"context"
	"errors"
	"fmt"
)

// consistencyReward returns the diminishing schedule amount for a lifetime
// active-day total: 5 credits through day 100, 4 through day 500, 3 after.
func consistencyReward(totalActiveDays int) AmountCredits {
	switch {
	case totalActiveDays <= consistencyTierOneLimit:
		return consistencyTierOneAmount
	case totalActiveDays <= consistencyTierTwoLimit:
		return consistencyTierTwoAmount
	default:
		return consistencyTierBaseline
	}
}

// CheckAndAwardConsistency increments the lifetime active-day counter and
// grants the diminishing consistency bonus on every positive multiple of
// ten. Callers guarantee at most one invocation per user per calendar day.
func (service *Service) CheckAndAwardConsistency(ctx context.Context, userID string) error {
	var (
		awarded   AmountCredits
		relatedID string
	)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		meta, err := txStore.GetOrCreateActivityMeta(ctx, userID)
		if err != nil {
			return err
		}
		meta.TotalActiveDays++
		if meta.TotalActiveDays%consistencyInterval == 0 {
			relatedID = ConsistencyKey(meta.TotalActiveDays)
			exists, err := txStore.TransactionExists(ctx, userID, relatedID)
			if err != nil {
				return err
			}
			if !exists {
				amount := consistencyReward(meta.TotalActiveDays)
				input := AwardInput{
					UserID:       userID,
					Amount:       amount,
					Type:         TxConsistencyBonus,
					Description:  fmt.Sprintf("Consistency bonus for %d active days", meta.TotalActiveDays),
					RelatedID:    relatedID,
					Visibility:   VisibilityVisible,
					Source:       SourceSystem,
					Intent:       IntentReward,
					MetadataJSON: fmt.Sprintf(`{"total_active_days":%d}`, meta.TotalActiveDays),
				}
				if err := service.award(ctx, txStore, &input); err != nil {
					return err
				}
				awarded = amount
			}
		}
		return txStore.SaveActivityMeta(ctx, meta)
	})
	if errors.Is(operationError, ErrDuplicateRelatedID) {
		operationError = nil
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationConsistency,
		UserID:    userID,
		Type:      TxConsistencyBonus,
		Amount:    awarded,
		RelatedID: relatedID,
		Error:     operationError,
	})
	return operationError
}
