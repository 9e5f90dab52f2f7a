package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lumoapp/rewards/internal/store/gormstore"
	"github.com/lumoapp/rewards/pkg/rewards"
)

func newTestRouter(test *testing.T) http.Handler {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		test.Fatalf("open sqlite: %v", err)
	}
	if err := gormstore.Migrate(db); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	clock := func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	service, err := rewards.NewService(gormstore.New(db), clock)
	if err != nil {
		test.Fatalf("service init: %v", err)
	}
	cfg := Config{}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("config: %v", err)
	}
	return NewRouter(service, nil, prometheus.NewRegistry(), cfg)
}

func postJSON(test *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	test.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		test.Fatalf("marshal: %v", err)
	}
	request := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestStreakMilestoneEndpointAwards(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	response := postJSON(test, router, "/v1/rewards/streak-milestone", map[string]any{
		"user_id":        "user-1",
		"streak_type":    "presence",
		"current_streak": 7,
		"cycle":          1,
	})
	if response.Code != http.StatusOK {
		test.Fatalf("status = %d body = %s", response.Code, response.Body.String())
	}

	request := httptest.NewRequest(http.MethodGet, "/v1/users/user-1/balance", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		test.Fatalf("balance status = %d", recorder.Code)
	}
	var payload struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		test.Fatalf("decode: %v", err)
	}
	if payload.Balance != 10 {
		test.Fatalf("balance = %d, want 10", payload.Balance)
	}
}

func TestAwardEndpointDuplicateMapsToConflict(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)
	payload := map[string]any{
		"user_id":    "user-1",
		"amount":     5,
		"type":       "manual_adjustment",
		"related_id": "ADJ_1",
		"source":     "manual",
		"intent":     "reward",
	}

	if response := postJSON(test, router, "/v1/credits/award", payload); response.Code != http.StatusOK {
		test.Fatalf("first award status = %d", response.Code)
	}
	if response := postJSON(test, router, "/v1/credits/award", payload); response.Code != http.StatusConflict {
		test.Fatalf("duplicate award status = %d, want 409", response.Code)
	}
}

func TestBadRequestOnMissingFields(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	response := postJSON(test, router, "/v1/rewards/consistency", map[string]any{})
	if response.Code != http.StatusBadRequest {
		test.Fatalf("status = %d, want 400", response.Code)
	}
}

func TestTransactionsEndpointHidesHiddenRows(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	visible := map[string]any{
		"user_id": "user-1", "amount": 5, "type": "manual_adjustment",
		"related_id": "ADJ_VISIBLE", "intent": "reward",
	}
	hidden := map[string]any{
		"user_id": "user-1", "amount": 3, "type": "manual_adjustment",
		"related_id": "ADJ_HIDDEN", "intent": "reward", "visibility": "hidden",
	}
	if response := postJSON(test, router, "/v1/credits/award", visible); response.Code != http.StatusOK {
		test.Fatalf("visible award: %d", response.Code)
	}
	if response := postJSON(test, router, "/v1/credits/award", hidden); response.Code != http.StatusOK {
		test.Fatalf("hidden award: %d", response.Code)
	}

	request := httptest.NewRequest(http.MethodGet, "/v1/users/user-1/transactions", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	var payload struct {
		Transactions []struct {
			RelatedID string `json:"related_id"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		test.Fatalf("decode: %v", err)
	}
	if len(payload.Transactions) != 1 || payload.Transactions[0].RelatedID != "ADJ_VISIBLE" {
		test.Fatalf("hidden transaction leaked: %+v", payload.Transactions)
	}
}

func TestOneTimeClaimBlocksFirstEchoBonus(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)
	phoneHash := rewards.HashPhoneNumber("+15550100")

	identity := map[string]any{"user_id": "user-1", "phone_number": "+15550100"}
	if response := postJSON(test, router, "/v1/identities", identity); response.Code != http.StatusOK {
		test.Fatalf("identity: %d", response.Code)
	}
	claim := map[string]any{"phone_hash": phoneHash, "reward_type": rewards.RelatedIDFirstEcho}
	if response := postJSON(test, router, "/v1/rewards/one-time", claim); response.Code != http.StatusOK {
		test.Fatalf("one-time claim: %d", response.Code)
	}
	if response := postJSON(test, router, "/v1/rewards/first-echo", map[string]any{"user_id": "user-1"}); response.Code != http.StatusOK {
		test.Fatalf("first echo: %d", response.Code)
	}

	request := httptest.NewRequest(http.MethodGet, "/v1/users/user-1/balance", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	var payload struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		test.Fatalf("decode: %v", err)
	}
	if payload.Balance != 0 {
		test.Fatalf("claimed one-time reward granted again, balance = %d", payload.Balance)
	}
}

func TestHealthzAndMetrics(test *testing.T) {
	test.Parallel()
	router := newTestRouter(test)

	for _, path := range []string{"/healthz", "/metrics"} {
		request := httptest.NewRequest(http.MethodGet, path, nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusOK {
			test.Fatalf("%s status = %d", path, recorder.Code)
		}
	}
}
