package models

import (
	"strings"
	"time"

	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// ContactType classifies what a candidate contact represents
type ContactType string

const (
	ContactTypeIndividual ContactType = "individual"
	ContactTypeOffice     ContactType = "office"
	ContactTypeDepartment ContactType = "department"
)

// Confidence is the extractor's confidence in a candidate
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// RawCandidateContact is a contact as produced by the extraction run.
// Optional fields are empty strings when absent.
type RawCandidateContact struct {
	Name              string      `json:"name" validate:"required"`
	Email             string      `json:"email,omitempty"`
	Phone             string      `json:"phone,omitempty"`
	Title             string      `json:"title,omitempty"`
	Company           string      `json:"company,omitempty"`
	ContactType       ContactType `json:"contactType" validate:"required,oneof=individual office department"`
	Context           string      `json:"context,omitempty"`
	SourceURL         string      `json:"sourceUrl,omitempty"`
	Confidence        Confidence  `json:"confidence" validate:"required,oneof=high medium low"`
	IsPriorityContact bool        `json:"isPriorityContact"`
	Address           string      `json:"address,omitempty"`
	LinkedinURL       string      `json:"linkedinUrl,omitempty"`
	WebsiteURL        string      `json:"websiteUrl,omitempty"`
}

// NormalizedContact is the shape written to the contact store
type NormalizedContact struct {
	Name                    string  `json:"name" db:"name"`
	Email                   *string `json:"email,omitempty" db:"email"`
	Phone                   *string `json:"phone,omitempty" db:"phone"`
	Title                   *string `json:"title,omitempty" db:"title"`
	Company                 *string `json:"company,omitempty" db:"company"`
	SourceURL               *string `json:"source_url,omitempty" db:"source_url"`
	EmailVerificationResult *string `json:"email_verification_result,omitempty" db:"email_verification_result"`
}

// StoredContact is a contact owned by the persistence layer
type StoredContact struct {
	ID                      string    `json:"id" db:"id"`
	TenantID                string    `json:"tenant_id" db:"tenant_id"`
	LeadID                  string    `json:"lead_id" db:"lead_id"`
	Name                    string    `json:"name" db:"name"`
	Email                   *string   `json:"email,omitempty" db:"email"`
	Phone                   *string   `json:"phone,omitempty" db:"phone"`
	Title                   *string   `json:"title,omitempty" db:"title"`
	Company                 *string   `json:"company,omitempty" db:"company"`
	SourceURL               *string   `json:"source_url,omitempty" db:"source_url"`
	EmailVerificationResult *string   `json:"email_verification_result,omitempty" db:"email_verification_result"`
	ManuallyReviewed        bool      `json:"manually_reviewed" db:"manually_reviewed"`
	StrategyStatus          *string   `json:"strategy_status,omitempty" db:"strategy_status"`
	CreatedAt               time.Time `json:"created_at" db:"created_at"`
	UpdatedAt               time.Time `json:"updated_at" db:"updated_at"`
}

// MatchFields are the values the similarity scorer compares
type MatchFields struct {
	Name    string
	Email   string
	Phone   string
	Company string
}

// MatchFields returns the comparable fields of an incoming contact
func (c NormalizedContact) MatchFields() MatchFields {
	return MatchFields{
		Name:    c.Name,
		Email:   Deref(c.Email),
		Phone:   Deref(c.Phone),
		Company: Deref(c.Company),
	}
}

// MatchFields returns the comparable fields of a stored contact
func (c StoredContact) MatchFields() MatchFields {
	return MatchFields{
		Name:    c.Name,
		Email:   Deref(c.Email),
		Phone:   Deref(c.Phone),
		Company: Deref(c.Company),
	}
}

// HasChannel reports whether the candidate carries any way to reach it
func (c RawCandidateContact) HasChannel() bool {
	for _, v := range []string{c.Email, c.Phone, c.Address, c.LinkedinURL, c.WebsiteURL} {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

var groupNameKeywords = []string{"office", "department", "team", "support", "sales"}

// Normalize converts an extracted candidate into the stored contact shape.
//
// Office and department contacts get a descriptive suffix unless the name
// already reads as a group. Title and context are combined as "title (context)".
func (c RawCandidateContact) Normalize() NormalizedContact {
	name := strings.TrimSpace(c.Name)
	switch c.ContactType {
	case ContactTypeOffice:
		if !containsAny(strings.ToLower(name), groupNameKeywords) {
			name += " Office"
		}
	case ContactTypeDepartment:
		if !containsAny(strings.ToLower(name), groupNameKeywords) {
			name += " Department"
		}
	}

	title := strings.TrimSpace(c.Title)
	context := strings.TrimSpace(c.Context)
	switch {
	case title != "" && context != "":
		title = title + " (" + context + ")"
	case title == "":
		title = context
	}

	var email *string
	if e := normalizers.NormalizeEmail(c.Email); e != "" {
		email = &e
	}

	return NormalizedContact{
		Name:      name,
		Email:     email,
		Phone:     OptionalString(c.Phone),
		Title:     OptionalString(title),
		Company:   OptionalString(c.Company),
		SourceURL: OptionalString(c.SourceURL),
	}
}

// OptionalString returns nil for blank strings and a trimmed copy otherwise
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "" for nil
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
