package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CheckAndAwardSeasonal evaluates every active seasonal event carrying a
// rule for the triggering event type. Concurrent events stack: each is
// evaluated independently against its own caps, cooldown, and progress.
// The user's seasonRewardMeta is persisted once at the end of the pass to
// bound write amplification when many events are active.
func (service *Service) CheckAndAwardSeasonal(ctx context.Context, userID string, ruleType RuleType, relatedSourceID string) error {
	if service.catalog == nil {
		return nil
	}
	now := service.nowFn().UTC()
	events, err := service.catalog.ActiveEvents(ctx, now)
	if err != nil {
		// The catalog is an optional collaborator; a lookup failure means
		// no seasonal award, never a failed primary action.
		service.logSkip(ctx, operationSeasonal, userID, err)
		return nil
	}
	if len(events) == 0 {
		return nil
	}

	var totalAwarded AmountCredits
	operationError := service.store.WithTx(ctx, func(ctx context.Context, txStore Store) error {
		meta, err := txStore.GetOrCreateActivityMeta(ctx, userID)
		if err != nil {
			return err
		}
		dayKey := DayKey(now)
		changed := false
		for _, event := range events {
			rule, hasRule := event.RuleFor(ruleType)
			if !hasRule {
				continue
			}
			progress := meta.SeasonRewardMeta.Progress(event.ID, ruleType)
			if !passesGates(rule, progress, dayKey, now) {
				continue
			}
			relatedID := seasonalRelatedID(event.ID, ruleType, relatedSourceID, progress.Count)
			exists, err := txStore.TransactionExists(ctx, userID, relatedID)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			input := AwardInput{
				UserID:       userID,
				Amount:       rule.BonusCredits,
				Type:         TxSeasonalReward,
				Description:  fmt.Sprintf("%s: %s bonus", event.Name, ruleType),
				RelatedID:    relatedID,
				Visibility:   VisibilityVisible,
				Source:       SourceSeasonal,
				Intent:       IntentReward,
				MetadataJSON: seasonalMetadata(event, rule, progress, dayKey),
			}
			// A nested transaction scope (savepoint on Postgres) so a
			// unique-violation aborts only this event's insert, not the
			// whole pass.
			awardErr := txStore.WithTx(ctx, func(ctx context.Context, eventStore Store) error {
				return service.award(ctx, eventStore, &input)
			})
			if awardErr != nil {
				if errors.Is(awardErr, ErrDuplicateRelatedID) {
					// The weak counter key lost a race; the occurrence is
					// already rewarded, keep evaluating other events.
					continue
				}
				return awardErr
			}
			progress.Count++
			progress.LastAwardedUnixUTC = now.Unix()
			if progress.Daily == nil {
				progress.Daily = map[string]int{}
			}
			progress.Daily[dayKey]++
			totalAwarded += rule.BonusCredits
			changed = true
		}
		if !changed {
			return nil
		}
		return txStore.SaveActivityMeta(ctx, meta)
	})
	service.logOperation(ctx, OperationLog{
		Operation: operationSeasonal,
		UserID:    userID,
		Type:      TxSeasonalReward,
		Amount:    totalAwarded,
		Error:     operationError,
	})
	return operationError
}

// passesGates applies the eligibility gates in their fixed order:
// lifetime cap, once-per-season, daily cap, cooldown.
func passesGates(rule SeasonalRule, progress *RuleProgress, dayKey string, now time.Time) bool {
	if rule.MaxTotal > 0 && progress.Count >= rule.MaxTotal {
		return false
	}
	if rule.OncePerSeason && progress.Count >= 1 {
		return false
	}
	if rule.DailyCap > 0 && progress.DailyCount(dayKey) >= rule.DailyCap {
		return false
	}
	if rule.CooldownHours > 0 && progress.LastAwardedUnixUTC > 0 {
		cooldown := time.Duration(rule.CooldownHours) * time.Hour
		if now.Sub(time.Unix(progress.LastAwardedUnixUTC, 0)) < cooldown {
			return false
		}
	}
	return true
}

// seasonalRelatedID prefers the collision-proof source-anchored key and
// falls back to the counter-anchored form when the triggering action has no
// natural unique id.
func seasonalRelatedID(eventID string, ruleType RuleType, relatedSourceID string, currentCount int) string {
	if relatedSourceID != "" {
		return SeasonalSourceKey(eventID, ruleType, relatedSourceID)
	}
	return SeasonalCounterKey(eventID, ruleType, currentCount+1)
}

func seasonalMetadata(event SeasonalEvent, rule SeasonalRule, progress *RuleProgress, dayKey string) string {
	totalFraction := ""
	if rule.MaxTotal > 0 {
		totalFraction = fmt.Sprintf("%d/%d", progress.Count+1, rule.MaxTotal)
	}
	dailyFraction := ""
	if rule.DailyCap > 0 {
		dailyFraction = fmt.Sprintf("%d/%d", progress.DailyCount(dayKey)+1, rule.DailyCap)
	}
	return fmt.Sprintf(`{"season_id":%q,"rule":%q,"progress":%q,"daily_progress":%q}`,
		event.ID, rule.RuleType, totalFraction, dailyFraction)
}
