package rewards

import (
	"context"
	"errors"
)

var balancedDimensions = []StreakType{StreakPresence, StreakKindness, StreakResponse}

// CheckAndAwardBalancedBonus grants the balanced-day bonus when every
// tracked habit dimension was active today. The meta marker short-circuits
// repeat calls; the transaction-log existence check backs it up in case the
// marker lags the log.
func (service *Service) CheckAndAwardBalancedBonus(ctx context.Context, userID string) error {
	today := DayKey(service.nowFn())
	relatedID := BalancedBonusKey(service.nowFn())

	streaks, err := service.store.GetStreaks(ctx, userID)
	if err != nil {
		service.logSkip(ctx, operationBalanced, userID, err)
		return nil
	}
	if !allActiveOn(streaks, today) {
		return nil
	}

	var awarded AmountCredits
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		meta, err := txStore.GetOrCreateActivityMeta(ctx, userID)
		if err != nil {
			return err
		}
		if meta.LastBalancedBonusDay == today {
			return nil
		}
		exists, err := txStore.TransactionExists(ctx, userID, relatedID)
		if err != nil {
			return err
		}
		if !exists {
			input := AwardInput{
				UserID:       userID,
				Amount:       balancedBonusAmount,
				Type:         TxBalancedDayBonus,
				Description:  "Balanced day: active across every habit",
				RelatedID:    relatedID,
				Visibility:   VisibilityVisible,
				Source:       SourceSystem,
				Intent:       IntentReward,
				MetadataJSON: `{"day":"` + today + `"}`,
			}
			if err := service.award(ctx, txStore, &input); err != nil {
				return err
			}
			awarded = balancedBonusAmount
		}
		meta.LastBalancedBonusDay = today
		return txStore.SaveActivityMeta(ctx, meta)
	})
	if errors.Is(operationError, ErrDuplicateRelatedID) {
		operationError = nil
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationBalanced,
		UserID:    userID,
		Type:      TxBalancedDayBonus,
		Amount:    awarded,
		RelatedID: relatedID,
		Error:     operationError,
	})
	return operationError
}

func allActiveOn(streaks []StreakState, day string) bool {
	active := map[StreakType]bool{}
	for _, streak := range streaks {
		if streak.LastActiveDay == day {
			active[streak.StreakType] = true
		}
	}
	for _, dimension := range balancedDimensions {
		if !active[dimension] {
			return false
		}
	}
	return true
}
