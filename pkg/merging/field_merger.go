// Package merging combines a stored contact with its incoming match
package merging

import (
	"strings"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// FieldConflict records a field where both sides had different non-blank values
type FieldConflict struct {
	Field    string `json:"field"`
	Existing string `json:"existing"`
	Incoming string `json:"incoming"`
}

// FieldMerger applies "incoming wins if non-empty" to each mergeable field
type FieldMerger struct {
	now func() time.Time
}

// NewFieldMerger creates a FieldMerger stamping patches with the wall clock
func NewFieldMerger() *FieldMerger {
	return &FieldMerger{now: time.Now}
}

// NewFieldMergerWithClock creates a FieldMerger with a fixed time source
func NewFieldMergerWithClock(now func() time.Time) *FieldMerger {
	return &FieldMerger{now: now}
}

// Merge builds the update for a stored contact from its incoming match.
//
// For name, email, phone, title, company and source URL the incoming value is
// used when it is present and not blank, otherwise the stored value is kept.
// UpdatedAt is always the merge time. Review state, strategy status and email
// verification are not touched here.
func (m *FieldMerger) Merge(existing models.StoredContact, incoming models.NormalizedContact) models.ContactPatch {
	return models.ContactPatch{
		Name:      preferNonEmpty(&existing.Name, &incoming.Name),
		Email:     preferNonEmpty(existing.Email, incoming.Email),
		Phone:     preferNonEmpty(existing.Phone, incoming.Phone),
		Title:     preferNonEmpty(existing.Title, incoming.Title),
		Company:   preferNonEmpty(existing.Company, incoming.Company),
		SourceURL: preferNonEmpty(existing.SourceURL, incoming.SourceURL),
		UpdatedAt: m.now().UTC(),
	}
}

// Conflicts lists the fields Merge overwrote with a different value
func (m *FieldMerger) Conflicts(existing models.StoredContact, incoming models.NormalizedContact) []FieldConflict {
	pairs := []struct {
		field              string
		existing, incoming *string
	}{
		{"name", &existing.Name, &incoming.Name},
		{"email", existing.Email, incoming.Email},
		{"phone", existing.Phone, incoming.Phone},
		{"title", existing.Title, incoming.Title},
		{"company", existing.Company, incoming.Company},
		{"source_url", existing.SourceURL, incoming.SourceURL},
	}

	var conflicts []FieldConflict
	for _, p := range pairs {
		if isBlank(p.existing) || isBlank(p.incoming) {
			continue
		}
		if strings.TrimSpace(*p.existing) == strings.TrimSpace(*p.incoming) {
			continue
		}
		conflicts = append(conflicts, FieldConflict{
			Field:    p.field,
			Existing: *p.existing,
			Incoming: *p.incoming,
		})
	}
	return conflicts
}

// preferNonEmpty returns a copy of incoming when it is non-blank, else a copy of existing
func preferNonEmpty(existing, incoming *string) *string {
	if !isBlank(incoming) {
		v := *incoming
		return &v
	}
	if existing == nil {
		return nil
	}
	v := *existing
	return &v
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
