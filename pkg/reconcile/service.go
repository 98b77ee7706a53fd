// Package reconcile reconciles one extraction batch against a lead's stored contacts
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/fingerprint"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/planner"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/worker"
)

var (
	// ErrSnapshotUnavailable is returned when the stored contacts for a lead could not be loaded
	ErrSnapshotUnavailable = errors.New("existing contacts snapshot unavailable")
	// ErrInvalidRequest is returned when a request has no tenant or lead
	ErrInvalidRequest = errors.New("tenant_id and lead_id are required")
)

// Request is one extraction batch for a lead
type Request struct {
	TenantID   string
	LeadID     string
	Candidates []models.RawCandidateContact
	// Rejected counts candidates discarded before they could be typed
	Rejected int
}

// Option configures optional collaborators of the Service
type Option func(*Service)

// WithVerifier attaches email verification statuses before writing
func WithVerifier(v EmailVerifier) Option {
	return func(s *Service) { s.verifier = v }
}

// WithLocker serializes runs for the same lead
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithPublisher announces each completed run
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMerger overrides the field merger, e.g. to fix its clock
func WithMerger(m *merging.FieldMerger) Option {
	return func(s *Service) { s.merger = m }
}

// Service reconciles extraction batches. It holds no per-run state.
type Service struct {
	log          ectologger.Logger
	reader       ContactReader
	writer       ContactWriter
	verifier     EmailVerifier
	locker       Locker
	publisher    Publisher
	scorer       *matching.Scorer
	merger       *merging.FieldMerger
	deduplicator *dedupe.Deduplicator
	matcher      *matching.Matcher
	planner      *planner.Planner
	cfg          Config
}

// NewService creates a new reconciliation service.
func NewService(
	log ectologger.Logger,
	reader ContactReader,
	writer ContactWriter,
	cfg Config,
	opts ...Option,
) *Service {
	s := &Service{
		log:    log,
		reader: reader,
		writer: writer,
		scorer: matching.NewScorer(),
		merger: merging.NewFieldMerger(),
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.deduplicator = dedupe.NewDeduplicator(log, s.scorer, cfg.DedupeNameThreshold)
	s.matcher = matching.NewMatcher(s.scorer, cfg.MatchThreshold)
	s.planner = planner.NewPlanner(s.merger)
	return s
}

// LockKey is the lock held while a lead is reconciled
func LockKey(tenantID, leadID string) string {
	return fmt.Sprintf("clover:lock:lead:%s:%s", tenantID, leadID)
}

// Reconcile dedupes, matches, merges and writes one batch of candidates.
//
// A missing snapshot or a failed update batch fails the run. Individual creates
// fail independently and are reported in the result.
func (s *Service) Reconcile(ctx context.Context, req Request) (*models.ReconcileResult, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.Reconcile")
	defer span.End()

	start := time.Now()
	if req.TenantID == "" || req.LeadID == "" {
		return nil, ErrInvalidRequest
	}

	if s.locker != nil {
		unlock, err := s.locker.Acquire(ctx, LockKey(req.TenantID, req.LeadID), s.cfg.LockTTL)
		if err != nil {
			s.observeRun("lock_failed", start)
			return nil, fmt.Errorf("failed to lock lead %s: %w", req.LeadID, err)
		}
		defer func() {
			if err := unlock.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger(ctx, req).WithError(err).Warn("Failed to release lead lock")
			}
		}()
	}

	existing, err := s.reader.ListByLead(ctx, req.TenantID, req.LeadID)
	if err != nil {
		s.observeRun("snapshot_failed", start)
		return nil, fmt.Errorf("%w for lead %s: %w", ErrSnapshotUnavailable, req.LeadID, err)
	}

	prepared, err := s.Prepare(ctx, req.Candidates, existing)
	if err != nil {
		s.observeRun("failed", start)
		return nil, err
	}

	s.attachVerification(ctx, req, prepared.Plan)

	updated, err := s.executeUpdates(ctx, req.TenantID, prepared.Plan.ToUpdate)
	if err != nil {
		s.observeRun("update_failed", start)
		return nil, fmt.Errorf("failed to update contacts for lead %s: %w", req.LeadID, err)
	}

	created := s.executeCreates(ctx, req, prepared.Plan.ToCreate)

	result := s.buildResult(req, prepared, created, updated)
	s.observeResult(req, prepared, result)
	s.observeRun("success", start)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, result, compact(created), updated); err != nil {
			s.logger(ctx, req).WithError(err).Warn("Failed to publish reconciliation events")
		}
	}

	s.logger(ctx, req).WithFields(map[string]any{
		"batch_id":        result.BatchID,
		"created":         result.ContactsCreated,
		"updated":         result.ContactsUpdated,
		"dropped":         result.Dropped,
		"create_failures": result.CreateFailures,
	}).Info(result.Summary)

	return result, nil
}

// executeUpdates applies the update half of a plan as one batched call
func (s *Service) executeUpdates(ctx context.Context, tenantID string, updates []models.ContactUpdate) ([]models.StoredContact, error) {
	if len(updates) == 0 {
		return nil, nil
	}
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.executeUpdates")
	defer span.End()

	return s.writer.UpdateBatch(ctx, tenantID, updates)
}

// executeCreates creates each contact independently. The returned slice is
// parallel to toCreate with nil for failed creates.
func (s *Service) executeCreates(ctx context.Context, req Request, toCreate []models.NormalizedContact) []*models.StoredContact {
	if len(toCreate) == 0 {
		return nil
	}
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.executeCreates")
	defer span.End()

	results := worker.ProcessAll(ctx, toCreate, func(ctx context.Context, c models.NormalizedContact) (*models.StoredContact, error) {
		return s.writer.Create(ctx, req.TenantID, req.LeadID, c)
	}, worker.Options{
		Workers:      s.cfg.CreateWorkers,
		RateLimitRPS: s.cfg.CreateRateLimitRPS,
	})

	created := make([]*models.StoredContact, len(results))
	for i, r := range results {
		if r.Err != nil {
			s.logger(ctx, req).WithError(r.Err).WithFields(map[string]any{
				"name": r.Input.Name,
			}).Warn("Failed to create contact")
			continue
		}
		if r.Output == nil {
			s.logger(ctx, req).WithFields(map[string]any{"name": r.Input.Name}).Warn("Contact store returned no record for create")
			continue
		}
		created[i] = r.Output
	}
	return created
}

// attachVerification looks up every planned email once and stores the status on the payloads.
// Verification failures leave the plan unchanged.
func (s *Service) attachVerification(ctx context.Context, req Request, plan *models.BatchPlan) {
	if s.verifier == nil {
		return
	}
	emails := CollectEmails(plan)
	if len(emails) == 0 {
		return
	}

	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.attachVerification")
	defer span.End()

	statuses, err := s.verifier.Verify(ctx, emails)
	if err != nil {
		s.logger(ctx, req).WithError(err).WithFields(map[string]any{
			"email_count": len(emails),
		}).Warn("Email verification failed, continuing without statuses")
		return
	}

	lookup := func(email *string) *string {
		if email == nil {
			return nil
		}
		status, ok := statuses[normalizers.NormalizeEmail(*email)]
		if !ok || status == "" {
			return nil
		}
		return &status
	}

	for i := range plan.ToCreate {
		if status := lookup(plan.ToCreate[i].Email); status != nil {
			plan.ToCreate[i].EmailVerificationResult = status
		}
	}
	for i := range plan.ToUpdate {
		if status := lookup(plan.ToUpdate[i].Data.Email); status != nil {
			plan.ToUpdate[i].Data.EmailVerificationResult = status
		}
	}
}

// CollectEmails returns the distinct normalized emails of a plan in plan order
func CollectEmails(plan *models.BatchPlan) []string {
	seen := make(map[string]struct{})
	var emails []string
	add := func(email *string) {
		if email == nil {
			return
		}
		e := normalizers.NormalizeEmail(*email)
		if e == "" {
			return
		}
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		emails = append(emails, e)
	}

	for _, c := range plan.ToCreate {
		add(c.Email)
	}
	for _, u := range plan.ToUpdate {
		add(u.Data.Email)
	}
	return emails
}

func (s *Service) buildResult(req Request, prepared *Prepared, created []*models.StoredContact, updated []models.StoredContact) *models.ReconcileResult {
	result := &models.ReconcileResult{
		TenantID:        req.TenantID,
		LeadID:          req.LeadID,
		BatchID:         fingerprint.Batch(req.TenantID, req.LeadID, req.Candidates),
		Received:        len(req.Candidates) + req.Rejected,
		Dropped:         len(prepared.Report.Dropped) + req.Rejected,
		ContactsCreated: len(compact(created)),
		ContactsUpdated: len(updated),
	}
	result.CreateFailures = len(created) - result.ContactsCreated
	result.PrimaryContactID = primaryContactID(prepared, created)
	result.Summary = Summary(result)
	return result
}

// Summary renders the human readable outcome of a run
func Summary(r *models.ReconcileResult) string {
	summary := fmt.Sprintf("Processed %d contacts: %d created, %d updated, %d dropped",
		r.Received, r.ContactsCreated, r.ContactsUpdated, r.Dropped)
	if r.CreateFailures > 0 {
		summary += fmt.Sprintf(", %d failed", r.CreateFailures)
	}
	return summary
}

// primaryContactID resolves the persisted id of the single priority contact, if any
func primaryContactID(prepared *Prepared, created []*models.StoredContact) *string {
	if prepared.PrimaryIndex < 0 || prepared.PrimaryIndex >= len(prepared.Matches) {
		return nil
	}

	match := prepared.Matches[prepared.PrimaryIndex]
	if match.MatchedExisting != nil {
		id := match.MatchedExisting.ID
		return &id
	}

	// creates are planned in match order
	pos := 0
	for _, m := range prepared.Matches[:prepared.PrimaryIndex] {
		if m.MatchedExisting == nil {
			pos++
		}
	}
	if pos >= len(created) || created[pos] == nil {
		return nil
	}
	id := created[pos].ID
	return &id
}

func (s *Service) observeRun(status string, start time.Time) {
	metrics.ReconciliationsTotal.WithLabelValues(status).Inc()
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
}

func (s *Service) observeResult(req Request, prepared *Prepared, result *models.ReconcileResult) {
	metrics.ContactsTotal.WithLabelValues("created").Add(float64(result.ContactsCreated))
	metrics.ContactsTotal.WithLabelValues("updated").Add(float64(result.ContactsUpdated))
	metrics.ContactsTotal.WithLabelValues("create_failed").Add(float64(result.CreateFailures))
	if req.Rejected > 0 {
		metrics.CandidatesDropped.WithLabelValues("schema").Add(float64(req.Rejected))
	}
	for _, d := range prepared.Report.Dropped {
		metrics.CandidatesDropped.WithLabelValues(string(d.Reason)).Inc()
	}
	for _, m := range prepared.Matches {
		if m.MatchedExisting != nil {
			metrics.MatchScores.Observe(m.Score)
		}
	}
}

func (s *Service) logger(ctx context.Context, req Request) ectologger.Logger {
	return s.log.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": req.TenantID,
		"lead_id":   req.LeadID,
	})
}

func compact(records []*models.StoredContact) []models.StoredContact {
	out := make([]models.StoredContact, 0, len(records))
	for _, r := range records {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
