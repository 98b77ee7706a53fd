// Package planner partitions match results into create and update operations
package planner

import (
	"errors"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/models"
)

// ErrDuplicateUpdateTarget is returned when two match results target the same stored contact
var ErrDuplicateUpdateTarget = errors.New("stored contact targeted by more than one update")

// Planner turns match results into a BatchPlan
type Planner struct {
	merger *merging.FieldMerger
}

// NewPlanner creates a Planner
func NewPlanner(merger *merging.FieldMerger) *Planner {
	if merger == nil {
		merger = merging.NewFieldMerger()
	}
	return &Planner{merger: merger}
}

// Plan creates every unmatched contact and merges every matched one into an update.
// Each match result yields exactly one operation.
func (p *Planner) Plan(results []models.MatchResult) (*models.BatchPlan, error) {
	plan := &models.BatchPlan{
		ToCreate: make([]models.NormalizedContact, 0, len(results)),
		ToUpdate: make([]models.ContactUpdate, 0, len(results)),
	}

	targets := make(map[string]int, len(results))
	for i, r := range results {
		if r.MatchedExisting == nil {
			plan.ToCreate = append(plan.ToCreate, r.Incoming)
			continue
		}

		id := r.MatchedExisting.ID
		if prev, ok := targets[id]; ok {
			return nil, fmt.Errorf("%w: %s (results %d and %d)", ErrDuplicateUpdateTarget, id, prev, i)
		}
		targets[id] = i

		plan.ToUpdate = append(plan.ToUpdate, models.ContactUpdate{
			ID:   id,
			Data: p.merger.Merge(*r.MatchedExisting, r.Incoming),
		})
	}

	return plan, nil
}
