// Package validation rejects structurally invalid and boilerplate "template" contacts
package validation

import (
	"errors"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

var (
	// ErrMissingName is returned for candidates without a usable name
	ErrMissingName = errors.New("contact has no name")
	// ErrTemplateContact is returned for generic contacts such as info@ inboxes in a site footer
	ErrTemplateContact = errors.New("contact is a generic template contact")
	// ErrNoContactChannel is returned for candidates that cannot be reached and are not a named person
	ErrNoContactChannel = errors.New("contact has no contact channel")
)

var genericLocalParts = map[string]struct{}{
	"info":      {},
	"contact":   {},
	"hello":     {},
	"general":   {},
	"office":    {},
	"main":      {},
	"admin":     {},
	"webmaster": {},
	"noreply":   {},
	"no-reply":  {},
}

var templateNames = map[string]struct{}{
	"contact us":       {},
	"get in touch":     {},
	"main office":      {},
	"headquarters":     {},
	"customer service": {},
	"general inquiry":  {},
	"information":      {},
}

// boilerplate placement signals
var (
	contextSignals   = []string{"header", "footer", "navigation", "widget"}
	sourceURLSignals = []string{"contact", "footer", "header"}
)

// minTemplateSignals is how many placement signals a generic inbox needs to count as boilerplate
const minTemplateSignals = 2

// IsValid reports whether a candidate should enter reconciliation
func IsValid(c models.RawCandidateContact) bool {
	return Validate(c) == nil
}

// Validate returns the reason a candidate is rejected, or nil
func Validate(c models.RawCandidateContact) error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrMissingName
	}
	if IsTemplateContact(c) {
		return ErrTemplateContact
	}
	if c.HasChannel() {
		return nil
	}
	if c.ContactType == models.ContactTypeIndividual && len(strings.Fields(c.Name)) >= 2 {
		return nil
	}
	return ErrNoContactChannel
}

// IsTemplateContact detects generic contacts that are not useful individual contacts
func IsTemplateContact(c models.RawCandidateContact) bool {
	name := strings.Join(strings.Fields(strings.ToLower(c.Name)), " ")
	if _, ok := templateNames[name]; ok {
		return true
	}

	if !hasGenericEmail(c.Email) {
		return false
	}
	return placementSignals(c) >= minTemplateSignals
}

func hasGenericEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.Index(email, "@")
	if at <= 0 {
		return false
	}
	_, ok := genericLocalParts[email[:at]]
	return ok
}

func placementSignals(c models.RawCandidateContact) int {
	count := 0
	ctx := strings.ToLower(c.Context)
	for _, s := range contextSignals {
		if strings.Contains(ctx, s) {
			count++
		}
	}
	url := strings.ToLower(c.SourceURL)
	for _, s := range sourceURLSignals {
		if strings.Contains(url, s) {
			count++
		}
	}
	return count
}
