package rewards

import (
	"context"
	"testing"
	"time"
)

func TestWeeklyReflectionAwardsOncePerISOWeek(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	clock := newTestClock("2026-03-10T12:00:00Z")
	service := mustNewService(test, store, clock)
	ctx := context.Background()

	if err := service.CheckAndAwardWeeklyReflection(ctx, "user-1"); err != nil {
		test.Fatalf("first reflection: %v", err)
	}
	if err := service.CheckAndAwardWeeklyReflection(ctx, "user-1"); err != nil {
		test.Fatalf("repeat reflection: %v", err)
	}
	if len(store.transactions) != 1 {
		test.Fatalf("expected one reflection award per week, got %d", len(store.transactions))
	}
	if store.transactions[0].RelatedID != "REFLECTION_2026-W11" {
		test.Fatalf("unexpected related id: %s", store.transactions[0].RelatedID)
	}
}

func TestWeeklyReflectionAwardsAgainNextWeek(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	clock := newTestClock("2026-03-10T12:00:00Z")
	service := mustNewService(test, store, clock)
	ctx := context.Background()

	if err := service.CheckAndAwardWeeklyReflection(ctx, "user-1"); err != nil {
		test.Fatalf("week one: %v", err)
	}
	clock.advance(7 * 24 * time.Hour)
	if err := service.CheckAndAwardWeeklyReflection(ctx, "user-1"); err != nil {
		test.Fatalf("week two: %v", err)
	}
	if len(store.transactions) != 2 {
		test.Fatalf("expected one award per ISO week, got %d", len(store.transactions))
	}
	meta, _ := store.GetOrCreateActivityMeta(ctx, "user-1")
	if meta.LastReflectionRewardWeek != "2026-W12" {
		test.Fatalf("week marker not advanced: %q", meta.LastReflectionRewardWeek)
	}
}

func TestWeeklyReflectionLogCheckBacksUpLaggingMarker(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	clock := newTestClock("2026-03-10T12:00:00Z")
	service := mustNewService(test, store, clock)
	ctx := context.Background()
	if err := service.AwardCredits(ctx, AwardInput{
		UserID:    "user-1",
		Amount:    reflectionBonusAmount,
		Type:      TxWeeklyReflection,
		RelatedID: ReflectionKey(clock.now()),
	}); err != nil {
		test.Fatalf("seed: %v", err)
	}

	if err := service.CheckAndAwardWeeklyReflection(ctx, "user-1"); err != nil {
		test.Fatalf("evaluate: %v", err)
	}
	if len(store.transactions) != 1 {
		test.Fatalf("existing week key must suppress a second award")
	}
}
