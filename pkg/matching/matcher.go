package matching

import (
	"sort"

	"github.com/Ramsey-B/clover/pkg/models"
)

// DefaultMatchThreshold is the minimum score (exclusive) for two contacts to be the same person
const DefaultMatchThreshold = 0.75

// Matcher assigns incoming contacts to stored contacts one-to-one
type Matcher struct {
	scorer    *Scorer
	threshold float64
}

// NewMatcher creates a Matcher. A non-positive threshold uses DefaultMatchThreshold.
func NewMatcher(scorer *Scorer, threshold float64) *Matcher {
	if scorer == nil {
		scorer = NewScorer()
	}
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &Matcher{scorer: scorer, threshold: threshold}
}

// Threshold returns the score a pair must exceed to match
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

type candidatePair struct {
	incoming int
	existing int
	score    float64
}

// Match pairs each incoming contact with at most one stored contact.
//
// Every (incoming, existing) pair scoring above the threshold is a candidate.
// Candidates are assigned greedily from the highest score down; ties prefer the
// most recently updated stored contact, then input order. A stored contact is
// claimed at most once, and an incoming contact left without an unclaimed
// candidate is returned unmatched (a create).
//
// raws is parallel to incoming and carried through to the results.
// Results are returned in incoming order.
func (m *Matcher) Match(incoming []models.NormalizedContact, raws []models.RawCandidateContact, existing []models.StoredContact) []models.MatchResult {
	existingFields := make([]models.MatchFields, len(existing))
	for j, e := range existing {
		existingFields[j] = e.MatchFields()
	}

	var pairs []candidatePair
	for i, in := range incoming {
		fields := in.MatchFields()
		for j := range existing {
			score := m.scorer.Score(fields, existingFields[j])
			if score > m.threshold {
				pairs = append(pairs, candidatePair{incoming: i, existing: j, score: score})
			}
		}
	}

	sort.Slice(pairs, func(a, b int) bool {
		pa, pb := pairs[a], pairs[b]
		if pa.score != pb.score {
			return pa.score > pb.score
		}
		ua, ub := existing[pa.existing].UpdatedAt, existing[pb.existing].UpdatedAt
		if !ua.Equal(ub) {
			return ua.After(ub)
		}
		if pa.incoming != pb.incoming {
			return pa.incoming < pb.incoming
		}
		return pa.existing < pb.existing
	})

	results := make([]models.MatchResult, len(incoming))
	for i, in := range incoming {
		results[i] = models.MatchResult{Incoming: in}
		if i < len(raws) {
			results[i].RawCandidate = raws[i]
		}
	}

	claimed := make([]bool, len(existing))
	for _, p := range pairs {
		if claimed[p.existing] || results[p.incoming].MatchedExisting != nil {
			continue
		}
		matched := existing[p.existing]
		results[p.incoming].MatchedExisting = &matched
		results[p.incoming].Score = p.score
		claimed[p.existing] = true
	}

	return results
}
