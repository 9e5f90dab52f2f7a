package rewards

import (
	"fmt"
	"strings"
	"time"
)

// Related-id construction. Each grammar below is stable for exactly one
// qualifying occurrence; the unique index on (user_id, related_id) turns a
// repeated grant attempt into a no-op.

// StreakMilestoneKey is cycle-anchored: the same numeric milestone can be
// re-earned after the streak resets and rebuilds under the next cycle number.
func StreakMilestoneKey(streakType StreakType, requiredCount int, cycleNumber int) string {
	return fmt.Sprintf("STREAK_REWARD_%s_%d_CYCLE_%d", strings.ToUpper(streakType.String()), requiredCount, cycleNumber)
}

// ConsistencyKey is anchored on the lifetime active-day counter.
func ConsistencyKey(totalActiveDays int) string {
	return fmt.Sprintf("CONSISTENCY_CYCLE_%d", totalActiveDays)
}

// BalancedBonusKey is date-anchored: one award per calendar day.
func BalancedBonusKey(day time.Time) string {
	return "BALANCED_BONUS_" + DayKey(day)
}

// ReflectionKey is anchored on the ISO year-week.
func ReflectionKey(at time.Time) string {
	return "REFLECTION_" + ISOWeekKey(at)
}

// SeasonalSourceKey is the strong seasonal form, collision-proof whenever the
// triggering action has a natural unique id.
func SeasonalSourceKey(eventID string, ruleType RuleType, relatedSourceID string) string {
	return fmt.Sprintf("SEASON_%s_%s_%s", eventID, strings.ToUpper(ruleType.String()), relatedSourceID)
}

// SeasonalCounterKey is the weak seasonal form used when no natural source id
// exists. Concurrent triggers can collide on the same next count; the unique
// index resolves the race, with the losing insert treated as already awarded.
func SeasonalCounterKey(eventID string, ruleType RuleType, nextCount int) string {
	return fmt.Sprintf("SEASON_%s_%s_%d", eventID, strings.ToUpper(ruleType.String()), nextCount)
}

// DayKey renders the calendar-day anchor in UTC.
func DayKey(at time.Time) string {
	return at.UTC().Format(dayKeyLayout)
}

// ISOWeekKey renders the ISO year-week anchor, e.g. "2026-W35".
func ISOWeekKey(at time.Time) string {
	year, week := at.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
