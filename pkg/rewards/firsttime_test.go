package rewards

import (
	"context"
	"testing"
)

func registerPhone(test *testing.T, store *stubStore, userID string, phone string) string {
	test.Helper()
	hash := HashPhoneNumber(phone)
	if err := store.RegisterPhoneHash(context.Background(), userID, hash); err != nil {
		test.Fatalf("register phone hash: %v", err)
	}
	return hash
}

func TestFirstEchoAwardsOnce(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	clock := newTestClock("2026-03-10T12:00:00Z")
	service := mustNewService(test, store, clock)
	ctx := context.Background()
	registerPhone(test, store, "user-1", "+15551234567")

	if err := service.CheckAndAwardFirstEcho(ctx, "user-1"); err != nil {
		test.Fatalf("first call: %v", err)
	}
	if err := service.CheckAndAwardFirstEcho(ctx, "user-1"); err != nil {
		test.Fatalf("second call: %v", err)
	}
	if len(store.transactions) != 1 {
		test.Fatalf("expected one first-echo bonus, got %d", len(store.transactions))
	}
	if store.transactions[0].RelatedID != RelatedIDFirstEcho {
		test.Fatalf("unexpected related id: %s", store.transactions[0].RelatedID)
	}
}

func TestFirstEchoSurvivesAccountRecreation(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	clock := newTestClock("2026-03-10T12:00:00Z")
	service := mustNewService(test, store, clock)
	ctx := context.Background()
	registerPhone(test, store, "user-old", "+15551234567")

	if err := service.CheckAndAwardFirstEcho(ctx, "user-old"); err != nil {
		test.Fatalf("original account: %v", err)
	}

	// Account deleted and recreated under the same phone number.
	registerPhone(test, store, "user-new", "+15551234567")
	if err := service.CheckAndAwardFirstEcho(ctx, "user-new"); err != nil {
		test.Fatalf("recreated account: %v", err)
	}
	if len(store.transactionsFor("user-new")) != 0 {
		test.Fatalf("recreated account re-claimed the one-time bonus")
	}
}

func TestFirstResponseIndependentOfFirstEcho(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	clock := newTestClock("2026-03-10T12:00:00Z")
	service := mustNewService(test, store, clock)
	ctx := context.Background()
	registerPhone(test, store, "user-1", "+15551234567")

	if err := service.CheckAndAwardFirstEcho(ctx, "user-1"); err != nil {
		test.Fatalf("first echo: %v", err)
	}
	if err := service.CheckAndAwardFirstResponse(ctx, "user-1"); err != nil {
		test.Fatalf("first response: %v", err)
	}
	if len(store.transactions) != 2 {
		test.Fatalf("echo and response bonuses are independent, got %d transactions", len(store.transactions))
	}
}

func TestFirstEchoSkipsWithoutPhoneHash(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	clock := newTestClock("2026-03-10T12:00:00Z")
	logger := &recorderLogger{}
	service := mustNewService(test, store, clock, WithOperationLogger(logger))

	if err := service.CheckAndAwardFirstEcho(context.Background(), "user-unknown"); err != nil {
		test.Fatalf("missing user row must not propagate, got %v", err)
	}
	if len(store.transactions) != 0 {
		test.Fatalf("award without phone hash")
	}
	if len(logger.entries) != 1 || logger.entries[0].Status != operationStatusSkipped {
		test.Fatalf("expected skipped log entry, got %+v", logger.entries)
	}
}

func TestRecordOneTimeRewardIdempotent(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	clock := newTestClock("2026-03-10T12:00:00Z")
	service := mustNewService(test, store, clock)
	ctx := context.Background()
	hash := HashPhoneNumber("+15551234567")

	if err := service.RecordOneTimeReward(ctx, hash, RelatedIDFirstEcho); err != nil {
		test.Fatalf("first record: %v", err)
	}
	if err := service.RecordOneTimeReward(ctx, hash, RelatedIDFirstEcho); err != nil {
		test.Fatalf("repeat record must be a no-op, got %v", err)
	}
	claimed, err := store.OneTimeRewardExists(ctx, hash, RelatedIDFirstEcho)
	if err != nil || !claimed {
		test.Fatalf("record not persisted: %v %v", claimed, err)
	}
}

func TestHashPhoneNumberStable(test *testing.T) {
	test.Parallel()
	if HashPhoneNumber(" +15551234567 ") != HashPhoneNumber("+15551234567") {
		test.Fatalf("hash must normalize surrounding whitespace")
	}
	if HashPhoneNumber("+15551234567") == HashPhoneNumber("+15557654321") {
		test.Fatalf("distinct numbers must not collide")
	}
}
