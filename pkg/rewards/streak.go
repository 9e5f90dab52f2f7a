package rewards

import (
	"context"
	"errors"
	"fmt"
)

// CheckAndAwardStreakMilestone grants the milestone reward for an exact
// match on (streakType, currentStreak). It is called on every streak
// increment, so non-milestone values are a cheap no-op.
func (service *Service) CheckAndAwardStreakMilestone(ctx context.Context, userID string, streakType StreakType, currentStreak int, cycleNumber int) error {
	milestone, found := service.milestoneFor(streakType, currentStreak)
	if !found {
		return nil
	}
	relatedID := StreakMilestoneKey(streakType, milestone.RequiredCount, cycleNumber)
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		exists, err := txStore.TransactionExists(ctx, userID, relatedID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		input := AwardInput{
			UserID:       userID,
			Amount:       milestone.RewardCredits,
			Type:         TxStreakReward,
			Description:  fmt.Sprintf("%s (%d-day %s streak)", milestone.DisplayName, milestone.RequiredCount, streakType),
			RelatedID:    relatedID,
			Visibility:   VisibilityVisible,
			Source:       SourceStreak,
			Intent:       IntentReward,
			MetadataJSON: fmt.Sprintf(`{"streak_type":%q,"required_count":%d,"cycle":%d}`, streakType, milestone.RequiredCount, cycleNumber),
		}
		return service.award(ctx, txStore, &input)
	})
	if errors.Is(operationError, ErrDuplicateRelatedID) {
		// A racing duplicate evaluation already granted this occurrence.
		operationError = nil
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationStreak,
		UserID:    userID,
		Type:      TxStreakReward,
		Amount:    milestone.RewardCredits,
		RelatedID: relatedID,
		Error:     operationError,
	})
	return operationError
}
