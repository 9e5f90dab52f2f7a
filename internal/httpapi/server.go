// Package httpapi exposes the reward engine's operations over HTTP for the
// app backend. Authentication happens upstream; this facade trusts its
// callers and only validates shapes.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lumoapp/rewards/pkg/rewards"
)

const defaultHistoryLimit = 50

// NewRouter builds the gin engine for the facade.
func NewRouter(service *rewards.Service, logger *zap.Logger, registry *prometheus.Registry, cfg Config) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers := &handlerSet{service: service, logger: logger}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/rewards/streak-milestone", handlers.streakMilestone)
		v1.POST("/rewards/consistency", handlers.consistency)
		v1.POST("/rewards/balanced-day", handlers.balancedDay)
		v1.POST("/rewards/reflection", handlers.reflection)
		v1.POST("/rewards/first-echo", handlers.firstEcho)
		v1.POST("/rewards/first-response", handlers.firstResponse)
		v1.POST("/rewards/seasonal", handlers.seasonal)
		v1.POST("/rewards/one-time", handlers.oneTimeReward)
		v1.POST("/credits/award", handlers.award)
		v1.POST("/streaks/touch", handlers.touchStreak)
		v1.POST("/identities", handlers.registerIdentity)
		v1.GET("/users/:user_id/balance", handlers.balance)
		v1.GET("/users/:user_id/transactions", handlers.transactions)
	}
	return router
}

type handlerSet struct {
	service *rewards.Service
	logger  *zap.Logger
}

type streakMilestoneRequest struct {
	UserID        string `json:"user_id" binding:"required"`
	StreakType    string `json:"streak_type" binding:"required"`
	CurrentStreak int    `json:"current_streak" binding:"required"`
	Cycle         int    `json:"cycle" binding:"required"`
}

func (handlers *handlerSet) streakMilestone(ctx *gin.Context) {
	var request streakMilestoneRequest
	if !bindJSON(ctx, &request) {
		return
	}
	err := handlers.service.CheckAndAwardStreakMilestone(ctx.Request.Context(), request.UserID, rewards.StreakType(request.StreakType), request.CurrentStreak, request.Cycle)
	handlers.respond(ctx, err)
}

type userRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (handlers *handlerSet) consistency(ctx *gin.Context) {
	var request userRequest
	if !bindJSON(ctx, &request) {
		return
	}
	handlers.respond(ctx, handlers.service.CheckAndAwardConsistency(ctx.Request.Context(), request.UserID))
}

func (handlers *handlerSet) balancedDay(ctx *gin.Context) {
	var request userRequest
	if !bindJSON(ctx, &request) {
		return
	}
	handlers.respond(ctx, handlers.service.CheckAndAwardBalancedBonus(ctx.Request.Context(), request.UserID))
}

func (handlers *handlerSet) reflection(ctx *gin.Context) {
	var request userRequest
	if !bindJSON(ctx, &request) {
		return
	}
	handlers.respond(ctx, handlers.service.CheckAndAwardWeeklyReflection(ctx.Request.Context(), request.UserID))
}

func (handlers *handlerSet) firstEcho(ctx *gin.Context) {
	var request userRequest
	if !bindJSON(ctx, &request) {
		return
	}
	handlers.respond(ctx, handlers.service.CheckAndAwardFirstEcho(ctx.Request.Context(), request.UserID))
}

func (handlers *handlerSet) firstResponse(ctx *gin.Context) {
	var request userRequest
	if !bindJSON(ctx, &request) {
		return
	}
	handlers.respond(ctx, handlers.service.CheckAndAwardFirstResponse(ctx.Request.Context(), request.UserID))
}

type seasonalRequest struct {
	UserID          string `json:"user_id" binding:"required"`
	RuleType        string `json:"rule_type" binding:"required"`
	RelatedSourceID string `json:"related_source_id"`
}

func (handlers *handlerSet) seasonal(ctx *gin.Context) {
	var request seasonalRequest
	if !bindJSON(ctx, &request) {
		return
	}
	err := handlers.service.CheckAndAwardSeasonal(ctx.Request.Context(), request.UserID, rewards.RuleType(request.RuleType), request.RelatedSourceID)
	handlers.respond(ctx, err)
}

type awardRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	Type        string `json:"type" binding:"required"`
	Description string `json:"description"`
	RelatedID   string `json:"related_id"`
	Visibility  string `json:"visibility"`
	Source      string `json:"source"`
	Intent      string `json:"intent"`
	Metadata    string `json:"metadata"`
}

func (handlers *handlerSet) award(ctx *gin.Context) {
	var request awardRequest
	if !bindJSON(ctx, &request) {
		return
	}
	err := handlers.service.AwardCredits(ctx.Request.Context(), rewards.AwardInput{
		UserID:       request.UserID,
		Amount:       rewards.AmountCredits(request.Amount),
		Type:         rewards.TransactionType(request.Type),
		Description:  request.Description,
		RelatedID:    request.RelatedID,
		Visibility:   rewards.Visibility(request.Visibility),
		Source:       rewards.RewardSource(request.Source),
		Intent:       rewards.Intent(request.Intent),
		MetadataJSON: request.Metadata,
	})
	handlers.respond(ctx, err)
}

type touchStreakRequest struct {
	UserID        string `json:"user_id" binding:"required"`
	StreakType    string `json:"streak_type" binding:"required"`
	CurrentCount  int    `json:"current_count"`
	CycleNumber   int    `json:"cycle_number"`
	LastActiveDay string `json:"last_active_day"`
}

func (handlers *handlerSet) touchStreak(ctx *gin.Context) {
	var request touchStreakRequest
	if !bindJSON(ctx, &request) {
		return
	}
	err := handlers.service.TouchStreak(ctx.Request.Context(), rewards.StreakState{
		UserID:        request.UserID,
		StreakType:    rewards.StreakType(request.StreakType),
		CurrentCount:  request.CurrentCount,
		CycleNumber:   request.CycleNumber,
		LastActiveDay: request.LastActiveDay,
	})
	handlers.respond(ctx, err)
}

type oneTimeRequest struct {
	PhoneHash  string `json:"phone_hash" binding:"required"`
	RewardType string `json:"reward_type" binding:"required"`
}

func (handlers *handlerSet) oneTimeReward(ctx *gin.Context) {
	var request oneTimeRequest
	if !bindJSON(ctx, &request) {
		return
	}
	handlers.respond(ctx, handlers.service.RecordOneTimeReward(ctx.Request.Context(), request.PhoneHash, request.RewardType))
}

type identityRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
}

func (handlers *handlerSet) registerIdentity(ctx *gin.Context) {
	var request identityRequest
	if !bindJSON(ctx, &request) {
		return
	}
	hash := rewards.HashPhoneNumber(request.PhoneNumber)
	handlers.respond(ctx, handlers.service.RegisterPhoneHash(ctx.Request.Context(), request.UserID, hash))
}

func (handlers *handlerSet) balance(ctx *gin.Context) {
	userID := ctx.Param("user_id")
	balance, err := handlers.service.Balance(ctx.Request.Context(), userID)
	if err != nil {
		handlers.respond(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": userID, "balance": balance.TotalCredits.Int64()})
}

type transactionView struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description"`
	RelatedID   string `json:"related_id,omitempty"`
	Visibility  string `json:"visibility"`
	CreatedAt   int64  `json:"created_at"`
}

func (handlers *handlerSet) transactions(ctx *gin.Context) {
	userID := ctx.Param("user_id")
	transactions, err := handlers.service.ListTransactions(ctx.Request.Context(), userID, 0, defaultHistoryLimit)
	if err != nil {
		handlers.respond(ctx, err)
		return
	}
	views := make([]transactionView, 0, len(transactions))
	for _, transaction := range transactions {
		if transaction.Visibility == rewards.VisibilityHidden {
			continue
		}
		views = append(views, transactionView{
			ID:          transaction.TransactionID,
			Amount:      transaction.Amount.Int64(),
			Type:        transaction.Type.String(),
			Description: transaction.Description,
			RelatedID:   transaction.RelatedID,
			Visibility:  transaction.Visibility.String(),
			CreatedAt:   transaction.CreatedUnixUTC,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": userID, "transactions": views})
}

func bindJSON(ctx *gin.Context, target any) bool {
	if err := ctx.ShouldBindJSON(target); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
		return false
	}
	return true
}

func (handlers *handlerSet) respond(ctx *gin.Context, err error) {
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, rewards.ErrDuplicateRelatedID):
		ctx.JSON(http.StatusConflict, gin.H{"error": "duplicate_related_id"})
	case errors.Is(err, rewards.ErrInvalidUserID),
		errors.Is(err, rewards.ErrInvalidAmount),
		errors.Is(err, rewards.ErrInvalidRelatedID),
		errors.Is(err, rewards.ErrInvalidMetadataJSON):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "detail": err.Error()})
	default:
		handlers.logger.Error("reward request failed", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
