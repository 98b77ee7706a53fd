package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRawCandidateContact_Normalize(t *testing.T) {
	tests := []struct {
		name      string
		candidate RawCandidateContact
		expected  NormalizedContact
	}{
		{
			name:      "individual keeps its name",
			candidate: RawCandidateContact{Name: " James Helm ", ContactType: ContactTypeIndividual},
			expected:  NormalizedContact{Name: "James Helm"},
		},
		{
			name:      "office gets suffix",
			candidate: RawCandidateContact{Name: "Front Desk", ContactType: ContactTypeOffice},
			expected:  NormalizedContact{Name: "Front Desk Office"},
		},
		{
			name:      "department gets suffix",
			candidate: RawCandidateContact{Name: "Billing", ContactType: ContactTypeDepartment},
			expected:  NormalizedContact{Name: "Billing Department"},
		},
		{
			name:      "office keyword exempts suffix",
			candidate: RawCandidateContact{Name: "Main Office", ContactType: ContactTypeOffice},
			expected:  NormalizedContact{Name: "Main Office"},
		},
		{
			name:      "team keyword exempts office suffix",
			candidate: RawCandidateContact{Name: "Intake Team", ContactType: ContactTypeOffice},
			expected:  NormalizedContact{Name: "Intake Team"},
		},
		{
			name:      "keyword match ignores case",
			candidate: RawCandidateContact{Name: "SALES Desk", ContactType: ContactTypeDepartment},
			expected:  NormalizedContact{Name: "SALES Desk"},
		},
		{
			name:      "support keyword exempts department suffix",
			candidate: RawCandidateContact{Name: "Customer Support", ContactType: ContactTypeDepartment},
			expected:  NormalizedContact{Name: "Customer Support"},
		},
		{
			name:      "individual never gets a suffix",
			candidate: RawCandidateContact{Name: "Front Desk", ContactType: ContactTypeIndividual},
			expected:  NormalizedContact{Name: "Front Desk"},
		},
		{
			name:      "title and context combined",
			candidate: RawCandidateContact{Name: "Jane Doe", Title: "Partner", Context: "Leadership page", ContactType: ContactTypeIndividual},
			expected:  NormalizedContact{Name: "Jane Doe", Title: strPtr("Partner (Leadership page)")},
		},
		{
			name:      "context only becomes title",
			candidate: RawCandidateContact{Name: "Jane Doe", Context: "Footer", ContactType: ContactTypeIndividual},
			expected:  NormalizedContact{Name: "Jane Doe", Title: strPtr("Footer")},
		},
		{
			name:      "title only",
			candidate: RawCandidateContact{Name: "Jane Doe", Title: "Paralegal", ContactType: ContactTypeIndividual},
			expected:  NormalizedContact{Name: "Jane Doe", Title: strPtr("Paralegal")},
		},
		{
			name:      "blank company is absent",
			candidate: RawCandidateContact{Name: "Jane Doe", Company: "   ", ContactType: ContactTypeIndividual},
			expected:  NormalizedContact{Name: "Jane Doe"},
		},
		{
			name: "email lower-cased and channels carried",
			candidate: RawCandidateContact{
				Name:        "Jane Doe",
				Email:       " Jane.Doe@Acme.COM ",
				Phone:       "+1 (800) 555-0100",
				Company:     "Acme",
				SourceURL:   "https://acme.com/team",
				ContactType: ContactTypeIndividual,
			},
			expected: NormalizedContact{
				Name:      "Jane Doe",
				Email:     strPtr("jane.doe@acme.com"),
				Phone:     strPtr("+1 (800) 555-0100"),
				Company:   strPtr("Acme"),
				SourceURL: strPtr("https://acme.com/team"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.candidate.Normalize())
		})
	}
}

func strPtr(s string) *string {
	return &s
}
