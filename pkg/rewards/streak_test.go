package rewards

import (
	"context"
	"testing"
)

func TestStreakMilestoneNoOpOnNonMilestoneValue(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	clock := newTestClock("2026-03-10T12:00:00Z")
	service := mustNewService(test, store, clock)

	if err := service.CheckAndAwardStreakMilestone(context.Background(), "user-1", StreakPresence, 6, 1); err != nil {
		test.Fatalf("evaluate: %v", err)
	}
	if len(store.transactions) != 0 {
		test.Fatalf("non-milestone value must not award")
	}
}

func TestStreakMilestoneAwardsOnExactMatch(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	clock := newTestClock("2026-03-10T12:00:00Z")
	service := mustNewService(test, store, clock)

	if err := service.CheckAndAwardStreakMilestone(context.Background(), "user-1", StreakPresence, 7, 1); err != nil {
		test.Fatalf("evaluate: %v", err)
	}
	if len(store.transactions) != 1 {
		test.Fatalf("expected one transaction, got %d", len(store.transactions))
	}
	transaction := store.transactions[0]
	if transaction.Type != TxStreakReward || transaction.Amount != 10 {
		test.Fatalf("unexpected transaction: %+v", transaction)
	}
	if transaction.RelatedID != "STREAK_REWARD_PRESENCE_7_CYCLE_1" {
		test.Fatalf("unexpected related id: %s", transaction.RelatedID)
	}
}

func TestStreakMilestoneIdempotentOnRetry(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	clock := newTestClock("2026-03-10T12:00:00Z")
	service := mustNewService(test, store, clock)
	ctx := context.Background()

	for call := 0; call < 3; call++ {
		if err := service.CheckAndAwardStreakMilestone(ctx, "user-1", StreakKindness, 7, 1); err != nil {
			test.Fatalf("call %d: %v", call, err)
		}
	}
	if len(store.transactions) != 1 {
		test.Fatalf("retries produced %d transactions, want 1", len(store.transactions))
	}
}

func TestStreakMilestoneReEarnedOnNextCycle(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	clock := newTestClock("2026-03-10T12:00:00Z")
	service := mustNewService(test, store, clock)
	ctx := context.Background()

	if err := service.CheckAndAwardStreakMilestone(ctx, "user-1", StreakPresence, 7, 1); err != nil {
		test.Fatalf("cycle 1: %v", err)
	}
	// Streak resets to zero and rebuilds to seven.
	if err := service.CheckAndAwardStreakMilestone(ctx, "user-1", StreakPresence, 7, 2); err != nil {
		test.Fatalf("cycle 2: %v", err)
	}
	if len(store.transactions) != 2 {
		test.Fatalf("expected two transactions across cycles, got %d", len(store.transactions))
	}
	if store.transactions[0].RelatedID == store.transactions[1].RelatedID {
		test.Fatalf("cycle transactions must carry distinct related ids")
	}
}

func TestStreakMilestoneCustomTable(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	clock := newTestClock("2026-03-10T12:00:00Z")
	milestones := []StreakMilestone{
		{StreakType: StreakPresence, RequiredCount: 2, RewardCredits: 99, DisplayName: "Quick Start"},
	}
	service := mustNewService(test, store, clock, WithMilestones(milestones))

	if err := service.CheckAndAwardStreakMilestone(context.Background(), "user-1", StreakPresence, 2, 1); err != nil {
		test.Fatalf("evaluate: %v", err)
	}
	if len(store.transactions) != 1 || store.transactions[0].Amount != 99 {
		test.Fatalf("custom milestone table not honored: %+v", store.transactions)
	}
}
