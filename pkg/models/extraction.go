package models

import "encoding/json"

// ExtractionMessage is a batch of extracted contacts for one lead.
// Contacts is kept raw; it is coerced into RawCandidateContact at the boundary.
type ExtractionMessage struct {
	TenantID    string          `json:"tenant_id" validate:"required"`
	LeadID      string          `json:"lead_id" validate:"required"`
	ExecutionID string          `json:"execution_id,omitempty"`
	Contacts    json.RawMessage `json:"contacts" validate:"required"`
}
