// Package dedupe collapses duplicate candidates within one extraction batch
package dedupe

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/validation"
)

// DefaultNameThreshold is the name similarity (exclusive) above which two same-type candidates are one
const DefaultNameThreshold = 0.8

// DropReason explains why a candidate was removed
type DropReason string

const (
	ReasonMissingName    DropReason = "missing_name"
	ReasonTemplate       DropReason = "template"
	ReasonNoChannel      DropReason = "no_channel"
	ReasonInvalid        DropReason = "invalid"
	ReasonDuplicateEmail DropReason = "duplicate_email"
	ReasonDuplicatePhone DropReason = "duplicate_phone"
	ReasonSimilarName    DropReason = "similar_name"
)

// Dropped is a candidate removed from the batch
type Dropped struct {
	Index   int
	Contact models.RawCandidateContact
	Reason  DropReason
	// KeptIndex is the input index of the kept candidate this one duplicates, or -1
	KeptIndex int
}

// Report is the outcome of deduplicating a batch
type Report struct {
	Kept []models.RawCandidateContact
	// KeptIndexes are the input positions of Kept
	KeptIndexes []int
	Dropped     []Dropped
}

// Deduplicator removes invalid and duplicate candidates, first occurrence wins
type Deduplicator struct {
	log           ectologger.Logger
	scorer        *matching.Scorer
	nameThreshold float64
}

// NewDeduplicator creates a Deduplicator. A non-positive threshold uses DefaultNameThreshold.
func NewDeduplicator(log ectologger.Logger, scorer *matching.Scorer, nameThreshold float64) *Deduplicator {
	if scorer == nil {
		scorer = matching.NewScorer()
	}
	if nameThreshold <= 0 {
		nameThreshold = DefaultNameThreshold
	}
	return &Deduplicator{
		log:           log,
		scorer:        scorer,
		nameThreshold: nameThreshold,
	}
}

// Dedupe returns the valid, distinct candidates in input order
func (d *Deduplicator) Dedupe(ctx context.Context, contacts []models.RawCandidateContact) []models.RawCandidateContact {
	return d.DedupeWithReport(ctx, contacts).Kept
}

// DedupeWithReport dedupes and also reports what was dropped and why.
//
// Candidates are processed in order. A candidate is dropped if it is invalid,
// if its normalized email or phone was already kept, or if its name is too
// similar to an already kept candidate of the same contact type.
func (d *Deduplicator) DedupeWithReport(ctx context.Context, contacts []models.RawCandidateContact) *Report {
	report := &Report{
		Kept:        make([]models.RawCandidateContact, 0, len(contacts)),
		KeptIndexes: make([]int, 0, len(contacts)),
	}
	seenEmails := make(map[string]int)
	seenPhones := make(map[string]int)

	drop := func(i int, c models.RawCandidateContact, reason DropReason, keptIndex int, err error) {
		report.Dropped = append(report.Dropped, Dropped{Index: i, Contact: c, Reason: reason, KeptIndex: keptIndex})
		entry := d.log.WithContext(ctx).WithFields(map[string]any{
			"index":  i,
			"name":   c.Name,
			"reason": string(reason),
		})
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Warn("Dropping candidate contact")
	}

	for i, c := range contacts {
		if err := validation.Validate(c); err != nil {
			drop(i, c, invalidReason(err), -1, err)
			continue
		}

		email := normalizers.NormalizeEmail(c.Email)
		if kept, ok := seenEmails[email]; ok && email != "" {
			drop(i, c, ReasonDuplicateEmail, kept, nil)
			continue
		}

		phone := normalizers.NormalizePhone(c.Phone)
		if kept, ok := seenPhones[phone]; ok && phone != "" {
			drop(i, c, ReasonDuplicatePhone, kept, nil)
			continue
		}

		if kept := d.similarKeptName(report, c); kept >= 0 {
			drop(i, c, ReasonSimilarName, kept, nil)
			continue
		}

		report.Kept = append(report.Kept, c)
		report.KeptIndexes = append(report.KeptIndexes, i)
		if email != "" {
			seenEmails[email] = i
		}
		if phone != "" {
			seenPhones[phone] = i
		}
	}

	return report
}

// similarKeptName returns the input index of a kept candidate of the same type whose name is too similar, or -1
func (d *Deduplicator) similarKeptName(report *Report, c models.RawCandidateContact) int {
	for k, kept := range report.Kept {
		if kept.ContactType != c.ContactType {
			continue
		}
		if d.scorer.Similarity(kept.Name, c.Name) > d.nameThreshold {
			return report.KeptIndexes[k]
		}
	}
	return -1
}

func invalidReason(err error) DropReason {
	switch {
	case errors.Is(err, validation.ErrMissingName):
		return ReasonMissingName
	case errors.Is(err, validation.ErrTemplateContact):
		return ReasonTemplate
	case errors.Is(err, validation.ErrNoContactChannel):
		return ReasonNoChannel
	default:
		return ReasonInvalid
	}
}
