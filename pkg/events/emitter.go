// Package events announces reconciliation outcomes as contact lifecycle events
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Event types
const (
	ContactCreated     = "contact.created"
	ContactUpdated     = "contact.updated"
	ContactsReconciled = "contacts.reconciled"
)

// EventPublisher writes a batch of events
type EventPublisher interface {
	PublishEvents(ctx context.Context, events []*kafka.Event) error
}

// Emitter turns a reconciliation result into events
type Emitter struct {
	publisher EventPublisher
	logger    ectologger.Logger
	now       func() time.Time
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher EventPublisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Publish emits one event per persisted contact followed by the run summary, as one batch
func (e *Emitter) Publish(ctx context.Context, result *models.ReconcileResult, created, updated []models.StoredContact) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.Publish")
	defer span.End()

	now := e.now().UTC()
	events := make([]*kafka.Event, 0, len(created)+len(updated)+1)

	for _, c := range created {
		event, err := contactEvent(ContactCreated, result, c, now)
		if err != nil {
			return err
		}
		events = append(events, event)
	}
	for _, c := range updated {
		event, err := contactEvent(ContactUpdated, result, c, now)
		if err != nil {
			return err
		}
		events = append(events, event)
	}

	summary, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode reconcile result: %w", err)
	}
	events = append(events, &kafka.Event{
		EventType: ContactsReconciled,
		TenantID:  result.TenantID,
		LeadID:    result.LeadID,
		BatchID:   result.BatchID,
		Data:      summary,
		Timestamp: now,
	})

	if err := e.publisher.PublishEvents(ctx, events); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_id": result.BatchID,
			"events":   len(events),
		}).Error("Failed to emit reconciliation events")
		return err
	}

	return nil
}

func contactEvent(eventType string, result *models.ReconcileResult, c models.StoredContact, now time.Time) (*kafka.Event, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode contact %s: %w", c.ID, err)
	}
	return &kafka.Event{
		EventType: eventType,
		TenantID:  result.TenantID,
		LeadID:    result.LeadID,
		ContactID: c.ID,
		BatchID:   result.BatchID,
		Data:      data,
		Timestamp: now,
	}, nil
}
