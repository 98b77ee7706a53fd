// Package fingerprint derives deterministic identifiers for candidate batches
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
)

// candidateKey is the identity-bearing projection of a candidate
type candidateKey struct {
	Name        string `json:"n"`
	Email       string `json:"e"`
	Phone       string `json:"p"`
	ContactType string `json:"t"`
}

// Generate creates a SHA256 fingerprint of v's JSON encoding.
// Struct fields encode in declaration order and map keys sorted, so equal values hash equally.
func Generate(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(b)
	return hex.EncodeToString(hash[:]), nil
}

// Contact fingerprints a candidate by its normalized name, email, phone and type.
// Formatting differences in those fields do not change the result.
func Contact(c models.RawCandidateContact) string {
	// candidateKey only holds strings, Marshal cannot fail
	fp, _ := Generate(key(c))
	return fp
}

// Batch fingerprints an ordered candidate batch for one lead
func Batch(tenantID, leadID string, candidates []models.RawCandidateContact) string {
	contacts := make([]string, len(candidates))
	for i, c := range candidates {
		contacts[i] = Contact(c)
	}
	fp, _ := Generate(struct {
		TenantID   string   `json:"tenant_id"`
		LeadID     string   `json:"lead_id"`
		Candidates []string `json:"candidates"`
	}{tenantID, leadID, contacts})
	return fp
}

func key(c models.RawCandidateContact) candidateKey {
	return candidateKey{
		Name:        normalizers.NormalizeName(c.Name),
		Email:       normalizers.NormalizeEmail(c.Email),
		Phone:       normalizers.NormalizePhone(c.Phone),
		ContactType: strings.ToLower(string(c.ContactType)),
	}
}
