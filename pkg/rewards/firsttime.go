package rewards

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// HashPhoneNumber derives the stable key used by the global one-time reward
// history. Hashing the phone number instead of the mutable user id means a
// deleted and recreated account cannot re-claim a one-time bonus.
func HashPhoneNumber(phoneNumber string) string {
	normalized := strings.TrimSpace(phoneNumber)
	digest := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(digest[:])
}

// CheckAndAwardFirstEcho grants the first-echo bonus once per phone number.
func (service *Service) CheckAndAwardFirstEcho(ctx context.Context, userID string) error {
	return service.awardFirstTime(ctx, userID, RelatedIDFirstEcho, firstEchoBonusAmount, "First echo sent")
}

// CheckAndAwardFirstResponse grants the first-response bonus once per phone number.
func (service *Service) CheckAndAwardFirstResponse(ctx context.Context, userID string) error {
	return service.awardFirstTime(ctx, userID, RelatedIDFirstResponse, firstAnswerBonusAmount, "First echo answered")
}

// awardFirstTime applies the two-layer duplicate prevention: a per-user
// transaction-log check on the fixed relatedId, then the global phone-hash
// history. Both must come back absent before awarding; the history row is
// written after the award inside the same transaction.
func (service *Service) awardFirstTime(ctx context.Context, userID string, relatedID string, amount AmountCredits, description string) error {
	phoneHash, err := service.store.PhoneHash(ctx, userID)
	if err != nil || phoneHash == "" {
		// The user row is an optional lookup; without it the evaluator
		// degrades to not eligible rather than failing the primary action.
		service.logSkip(ctx, operationFirstTime, userID, err)
		return nil
	}

	var awarded AmountCredits
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		exists, err := txStore.TransactionExists(ctx, userID, relatedID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		claimed, err := txStore.OneTimeRewardExists(ctx, phoneHash, relatedID)
		if err != nil {
			return err
		}
		if claimed {
			return nil
		}
		input := AwardInput{
			UserID:      userID,
			Amount:      amount,
			Type:        TxFirstTimeBonus,
			Description: description,
			RelatedID:   relatedID,
			Visibility:  VisibilityVisible,
			Source:      SourceSystem,
			Intent:      IntentReward,
		}
		if err := service.award(ctx, txStore, &input); err != nil {
			return err
		}
		awarded = amount
		return txStore.InsertOneTimeReward(ctx, OneTimeReward{
			PhoneHash:      phoneHash,
			RewardType:     relatedID,
			GrantedUnixUTC: service.nowFn().UTC().Unix(),
		})
	})
	if errors.Is(operationError, ErrDuplicateRelatedID) {
		operationError = nil
	}
	service.logOperation(ctx, OperationLog{
		Operation: operationFirstTime,
		UserID:    userID,
		Type:      TxFirstTimeBonus,
		Amount:    awarded,
		RelatedID: relatedID,
		Error:     operationError,
	})
	return operationError
}

// RecordOneTimeReward marks a one-time reward as claimed for a phone hash.
// The insert is idempotent: an existing row is not an error.
func (service *Service) RecordOneTimeReward(ctx context.Context, phoneHash string, rewardType string) error {
	return service.store.InsertOneTimeReward(ctx, OneTimeReward{
		PhoneHash:      phoneHash,
		RewardType:     rewardType,
		GrantedUnixUTC: service.nowFn().UTC().Unix(),
	})
}
