// Package telemetry adapts the engine's operation-log hook onto zap and
// Prometheus so every grant, skip, and failure is observable.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/lumoapp/rewards/pkg/rewards"
)

// Metrics holds the Prometheus collectors for reward evaluation.
type Metrics struct {
	OperationsTotal *prometheus.CounterVec
	CreditsGranted  *prometheus.CounterVec
}

// NewMetrics registers the collectors with the given registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewards_operations_total",
			Help: "Reward evaluation operations by operation name and status.",
		}, []string{"operation", "status"}),
		CreditsGranted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rewards_credits_granted_total",
			Help: "Credits granted by transaction type.",
		}, []string{"type"}),
	}
	registerer.MustRegister(metrics.OperationsTotal, metrics.CreditsGranted)
	return metrics
}

// OperationLogger implements rewards.OperationLogger over zap and Prometheus.
type OperationLogger struct {
	logger  *zap.Logger
	metrics *Metrics
}

// NewOperationLogger wires the adapter.
func NewOperationLogger(logger *zap.Logger, metrics *Metrics) *OperationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OperationLogger{logger: logger, metrics: metrics}
}

// LogOperation records one engine operation.
func (operationLogger *OperationLogger) LogOperation(_ context.Context, entry rewards.OperationLog) {
	status := "ok"
	if entry.Error != nil {
		status = "error"
	}
	if entry.Status != "" {
		status = entry.Status
	}
	if operationLogger.metrics != nil {
		operationLogger.metrics.OperationsTotal.WithLabelValues(entry.Operation, status).Inc()
		if entry.Error == nil && entry.Amount > 0 {
			operationLogger.metrics.CreditsGranted.WithLabelValues(entry.Type.String()).Add(float64(entry.Amount.Int64()))
		}
	}
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("user_id", entry.UserID),
		zap.String("status", status),
		zap.Int64("amount", entry.Amount.Int64()),
		zap.String("related_id", entry.RelatedID),
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		if status == "error" {
			operationLogger.logger.Error("reward operation failed", fields...)
			return
		}
	}
	operationLogger.logger.Info("reward operation", fields...)
}
