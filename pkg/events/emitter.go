// Package events emits customer lifecycle notifications. Event emission is
// best-effort: a broker outage never fails the request that triggered it.
package events

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/dahlia/pkg/kafka"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// Emitter publishes customer events to Kafka.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// CustomersImported emits an import.completed event with the run's tallies.
func (e *Emitter) CustomersImported(ctx context.Context, result models.ImportResult) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.CustomersImported")
	defer span.End()

	data, err := json.Marshal(map[string]any{
		"total":   result.Total,
		"success": result.Success,
		"failed":  result.Failed,
		"created": result.Created,
		"updated": result.Updated,
	})
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to encode import.completed event")
		return
	}

	key := "import"
	if result.ImportLogID != nil {
		key = strconv.FormatInt(*result.ImportLogID, 10)
	}

	event := &kafka.CustomerEvent{
		EventType: "import.completed",
		Key:       key,
		Data:      data,
	}
	if err := e.producer.PublishCustomerEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit import.completed event")
	}
}

// CompanyUpdated emits a customer.updated event.
func (e *Emitter) CompanyUpdated(ctx context.Context, companyID int64, userID string) {
	e.emitCompanyEvent(ctx, "customer.updated", companyID, userID)
}

// CompanyDeleted emits a customer.deleted event.
func (e *Emitter) CompanyDeleted(ctx context.Context, companyID int64, userID string) {
	e.emitCompanyEvent(ctx, "customer.deleted", companyID, userID)
}

func (e *Emitter) emitCompanyEvent(ctx context.Context, eventType string, companyID int64, userID string) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.emitCompanyEvent")
	defer span.End()

	event := &kafka.CustomerEvent{
		EventType: eventType,
		Key:       strconv.FormatInt(companyID, 10),
		UserID:    userID,
	}
	if err := e.producer.PublishCustomerEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
			"company_id": companyID,
		}).Error("Failed to emit customer event")
	}
}

// Noop discards all events. Used when Kafka is disabled.
type Noop struct{}

func (Noop) CustomersImported(ctx context.Context, result models.ImportResult)  {}
func (Noop) CompanyUpdated(ctx context.Context, companyID int64, userID string) {}
func (Noop) CompanyDeleted(ctx context.Context, companyID int64, userID string) {}
