package rewards

import (
	"context"
	"errors"
)

// CheckAndAwardWeeklyReflection grants the reflection bonus once per ISO
// week, no matter how many times it is triggered within the week.
func (service *Service) CheckAndAwardWeeklyReflection(ctx context.Context, userID string) error {
	week := ISOWeekKey(service.nowFn())
	relatedID := ReflectionKey(service.nowFn())

	var awarded AmountCredits
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		meta, err := txStore.GetOrCreateActivityMeta(ctx, userID)
		if err != nil {
			return err
		}
		if meta.LastReflectionRewardWeek == week {
			return nil
		}
		exists, err := txStore.TransactionExists(ctx, userID, relatedID)
		if err != nil {
			return err
		}
		if !exists {
			input := AwardInput{
				UserID:       userID,
				Amount:       reflectionBonusAmount,
				Type:         TxWeeklyReflection,
				Description:  "Weekly reflection completed",
				RelatedID:    relatedID,
				Visibility:   VisibilityVisible,
				Source:       SourceSystem,
				Intent:       IntentReward,
				MetadataJSON: `{"week":"` + week + `"}`,
			}
			if err := service.award(ctx, txStore, &input); err != nil {
				return err
			}
			awarded = reflectionBonusAmount
		}
		meta.LastReflectionRewardWeek = week
		return txStore.SaveActivityMeta(ctx, meta)
	})
	if errors.Is(operationError, ErrDuplicateRelatedID) {
		operationError = nil
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationReflection,
		UserID:    userID,
		Type:      TxWeeklyReflection,
		Amount:    awarded,
		RelatedID: relatedID,
		Error:     operationError,
	})
	return operationError
}
