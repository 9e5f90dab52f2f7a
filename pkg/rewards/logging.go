package rewards

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes one evaluation or ledger operation.
type OperationLog struct {
	Operation string
	UserID    string
	Type      TransactionType
	Amount    AmountCredits
	RelatedID string
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithCatalog wires the seasonal event catalog consulted by seasonal evaluations.
func WithCatalog(catalog SeasonalEventCatalog) ServiceOption {
	return func(service *Service) {
		service.catalog = catalog
	}
}

// WithMilestones replaces the built-in streak milestone table.
func WithMilestones(milestones []StreakMilestone) ServiceOption {
	return func(service *Service) {
		service.milestones = milestones
	}
}
