package dedupe

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/models"
)

func newTestDeduplicator() *Deduplicator {
	return NewDeduplicator(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), nil, 0)
}

func person(name, email, phone string) models.RawCandidateContact {
	return models.RawCandidateContact{
		Name:        name,
		Email:       email,
		Phone:       phone,
		ContactType: models.ContactTypeIndividual,
		Confidence:  models.ConfidenceMedium,
	}
}

func names(contacts []models.RawCandidateContact) []string {
	out := make([]string, len(contacts))
	for i, c := range contacts {
		out[i] = c.Name
	}
	return out
}

func TestDedupe_EmailCaseCollapse(t *testing.T) {
	d := newTestDeduplicator()

	result := d.Dedupe(context.Background(), []models.RawCandidateContact{
		person("John Doe", "john@example.com", ""),
		person("John Smith", "JOHN@EXAMPLE.COM", ""),
	})

	require.Len(t, result, 1)
	assert.Equal(t, "John Doe", result[0].Name)
}

func TestDedupe_PhoneCollapse(t *testing.T) {
	d := newTestDeduplicator()

	report := d.DedupeWithReport(context.Background(), []models.RawCandidateContact{
		person("Alice Jones", "", "555-1234"),
		person("Bob Stone", "", "5551234"),
	})

	require.Len(t, report.Kept, 1)
	assert.Equal(t, "Alice Jones", report.Kept[0].Name)
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, ReasonDuplicatePhone, report.Dropped[0].Reason)
	assert.Equal(t, 1, report.Dropped[0].Index)
	assert.Equal(t, 0, report.Dropped[0].KeptIndex)
}

func TestDedupe_NameSimilarityIsTypeScoped(t *testing.T) {
	d := newTestDeduplicator()

	t.Run("same type collapses", func(t *testing.T) {
		result := d.Dedupe(context.Background(), []models.RawCandidateContact{
			person("John Doe", "", ""),
			person("John  Doe", "", ""),
		})
		assert.Equal(t, []string{"John Doe"}, names(result))
	})

	t.Run("different type does not collapse", func(t *testing.T) {
		office := models.RawCandidateContact{
			Name:        "Billing",
			Phone:       "800-555-0100",
			ContactType: models.ContactTypeOffice,
		}
		department := models.RawCandidateContact{
			Name:        "Billing",
			WebsiteURL:  "https://acme.com/billing",
			ContactType: models.ContactTypeDepartment,
		}
		result := d.Dedupe(context.Background(), []models.RawCandidateContact{office, department})
		assert.Len(t, result, 2)
	})
}

func TestDedupe_DropsInvalid(t *testing.T) {
	var warnings []ectologger.EctoLogMessage
	log := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		if msg.Level == "warn" {
			warnings = append(warnings, msg)
		}
	})
	d := NewDeduplicator(log, nil, 0)

	report := d.DedupeWithReport(context.Background(), []models.RawCandidateContact{
		person("  ", "ghost@acme.com", ""),
		{Name: "Contact Us", Email: "info@acme.com", ContactType: models.ContactTypeOffice},
		person("Cher", "", ""),
		person("Jane Doe", "jane@acme.com", ""),
	})

	assert.Equal(t, []string{"Jane Doe"}, names(report.Kept))
	assert.Equal(t, []int{3}, report.KeptIndexes)
	require.Len(t, report.Dropped, 3)
	assert.Equal(t, ReasonMissingName, report.Dropped[0].Reason)
	assert.Equal(t, ReasonTemplate, report.Dropped[1].Reason)
	assert.Equal(t, ReasonNoChannel, report.Dropped[2].Reason)

	require.Len(t, warnings, 3)
	assert.Equal(t, "template", warnings[1].Fields["reason"])
	assert.Error(t, warnings[1].Err)
}

func TestDedupe_Idempotent(t *testing.T) {
	d := newTestDeduplicator()

	input := []models.RawCandidateContact{
		person("John Doe", "john@example.com", "555-1234"),
		person("Johnny Doe", "JOHN@example.com", ""),
		person("Jane Roe", "", "5551234"),
		person("Jon Doe", "jon@example.com", ""),
		person("Mary Major", "mary@example.com", "+1 (800) 555-0100"),
		person("Mary  Major", "other@example.com", ""),
		person("Richard Miles", "", "800.555.0100"),
		{Name: "Front Desk", Phone: "800-555-0199", ContactType: models.ContactTypeOffice},
		{Name: "Front Desk", WebsiteURL: "https://acme.com", ContactType: models.ContactTypeDepartment},
		person("", "nobody@example.com", ""),
		person("Sam Lee", "", ""),
	}

	once := d.Dedupe(context.Background(), input)
	twice := d.Dedupe(context.Background(), once)
	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"John Doe", "Jon Doe", "Mary Major", "Front Desk", "Front Desk", "Sam Lee"}, names(once))
}
