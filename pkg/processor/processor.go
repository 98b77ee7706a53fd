// Package processor turns consumed extraction batches into reconciliation runs
package processor

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/reconcile"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/validation"
)

// Reconciler runs one reconciliation
type Reconciler interface {
	Reconcile(ctx context.Context, req reconcile.Request) (*models.ReconcileResult, error)
}

// Processor handles extraction messages
type Processor struct {
	logger     ectologger.Logger
	reconciler Reconciler
}

// NewProcessor creates a new message processor
func NewProcessor(logger ectologger.Logger, reconciler Reconciler) *Processor {
	return &Processor{
		logger:     logger,
		reconciler: reconciler,
	}
}

// Handle reconciles the batch carried by msg.
//
// Malformed messages are logged and acknowledged since redelivery cannot fix them.
// Any other reconciliation failure is returned so the message is redelivered.
func (p *Processor) Handle(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.Handle")
	defer span.End()

	extraction, err := msg.ParseExtraction()
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"topic":  msg.Topic,
			"offset": msg.Offset,
		}).Warn("Skipping unparseable extraction message")
		return nil
	}

	if err := validation.ValidateExtraction(extraction); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"tenant_id": extraction.TenantID,
			"lead_id":   extraction.LeadID,
			"offset":    msg.Offset,
		}).Warn("Skipping invalid extraction message")
		return nil
	}

	candidates, errs := validation.DecodeCandidates(extraction.Contacts)
	var candidateErr *validation.CandidateError
	if len(errs) == 1 && !errors.As(errs[0], &candidateErr) {
		p.logger.WithContext(ctx).WithError(errs[0]).WithFields(map[string]any{
			"tenant_id": extraction.TenantID,
			"lead_id":   extraction.LeadID,
		}).Warn("Skipping extraction message without a contacts array")
		return nil
	}
	for _, candidateErr := range errs {
		p.logger.WithContext(ctx).WithError(candidateErr).WithFields(map[string]any{
			"tenant_id": extraction.TenantID,
			"lead_id":   extraction.LeadID,
		}).Warn("Rejected extracted contact")
	}

	result, err := p.reconciler.Reconcile(ctx, reconcile.Request{
		TenantID:   extraction.TenantID,
		LeadID:     extraction.LeadID,
		Candidates: candidates,
		Rejected:   len(errs),
	})
	if err != nil {
		if errors.Is(err, reconcile.ErrInvalidRequest) {
			p.logger.WithContext(ctx).WithError(err).Warn("Skipping extraction message")
			return nil
		}
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":    result.TenantID,
		"lead_id":      result.LeadID,
		"execution_id": extraction.ExecutionID,
		"batch_id":     result.BatchID,
	}).Debug("Extraction message processed")
	return nil
}
