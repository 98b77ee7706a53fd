package reconcile

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/dedupe"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Prepared is the in-memory outcome of reconciling a batch, before any writes
type Prepared struct {
	Report  *dedupe.Report
	Matches []models.MatchResult
	Plan    *models.BatchPlan
	// PrimaryIndex is the position in Matches of the only priority contact, or -1
	PrimaryIndex int
}

// Prepare dedupes, normalizes, matches and plans a batch against a snapshot.
// It performs no I/O.
func (s *Service) Prepare(ctx context.Context, candidates []models.RawCandidateContact, existing []models.StoredContact) (*Prepared, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Service.Prepare")
	defer span.End()

	report := s.deduplicator.DedupeWithReport(ctx, candidates)

	incoming := make([]models.NormalizedContact, len(report.Kept))
	for i, c := range report.Kept {
		incoming[i] = c.Normalize()
	}

	matches := s.matcher.Match(incoming, report.Kept, existing)
	for _, m := range matches {
		if m.MatchedExisting == nil {
			continue
		}
		s.log.WithContext(ctx).WithFields(map[string]any{
			"contact_id":   m.MatchedExisting.ID,
			"name":         m.Incoming.Name,
			"score":        m.Score,
			"threshold":    s.matcher.Threshold(),
			"field_scores": s.scorer.FieldScores(m.Incoming.MatchFields(), m.MatchedExisting.MatchFields()),
			"conflicts":    s.merger.Conflicts(*m.MatchedExisting, m.Incoming),
		}).Debug("Matched candidate to stored contact")
	}

	plan, err := s.planner.Plan(matches)
	if err != nil {
		return nil, err
	}

	return &Prepared{
		Report:       report,
		Matches:      matches,
		Plan:         plan,
		PrimaryIndex: primaryIndex(report.Kept),
	}, nil
}

// primaryIndex returns the index of the only priority candidate, or -1 when there are none or several
func primaryIndex(kept []models.RawCandidateContact) int {
	idx := -1
	for i, c := range kept {
		if !c.IsPriorityContact {
			continue
		}
		if idx >= 0 {
			return -1
		}
		idx = i
	}
	return idx
}
