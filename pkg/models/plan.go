package models

import "time"

// MatchResult pairs an incoming contact with the stored contact it matched, if any
type MatchResult struct {
	Incoming        NormalizedContact   `json:"incoming"`
	RawCandidate    RawCandidateContact `json:"raw_candidate"`
	MatchedExisting *StoredContact      `json:"matched_existing,omitempty"`
	Score           float64             `json:"score"`
}

// ContactPatch is the partial update proposed for a stored contact.
// Nil fields are left unchanged by the store.
type ContactPatch struct {
	Name                    *string   `json:"name,omitempty"`
	Email                   *string   `json:"email,omitempty"`
	Phone                   *string   `json:"phone,omitempty"`
	Title                   *string   `json:"title,omitempty"`
	Company                 *string   `json:"company,omitempty"`
	SourceURL               *string   `json:"source_url,omitempty"`
	EmailVerificationResult *string   `json:"email_verification_result,omitempty"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// ContactUpdate targets one stored contact
type ContactUpdate struct {
	ID   string       `json:"id"`
	Data ContactPatch `json:"data"`
}

// BatchPlan is the create/update partition handed to the contact store
type BatchPlan struct {
	ToCreate []NormalizedContact `json:"to_create"`
	ToUpdate []ContactUpdate     `json:"to_update"`
}

// ReconcileResult reports what a reconciliation run did
type ReconcileResult struct {
	TenantID         string  `json:"tenant_id"`
	LeadID           string  `json:"lead_id"`
	BatchID          string  `json:"batch_id"`
	Received         int     `json:"received"`
	Dropped          int     `json:"dropped"`
	ContactsCreated  int     `json:"contacts_created"`
	ContactsUpdated  int     `json:"contacts_updated"`
	CreateFailures   int     `json:"create_failures"`
	PrimaryContactID *string `json:"primary_contact_id,omitempty"`
	Summary          string  `json:"summary"`
}
