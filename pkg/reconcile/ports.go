package reconcile

import (
	"context"
	"time"

	"github.com/Ramsey-B/clover/pkg/models"
)

// ContactReader loads the stored contacts a batch is reconciled against
type ContactReader interface {
	ListByLead(ctx context.Context, tenantID, leadID string) ([]models.StoredContact, error)
}

// ContactWriter persists planned operations
type ContactWriter interface {
	Create(ctx context.Context, tenantID, leadID string, contact models.NormalizedContact) (*models.StoredContact, error)
	// UpdateBatch applies all updates as one call and returns the updated records
	UpdateBatch(ctx context.Context, tenantID string, updates []models.ContactUpdate) ([]models.StoredContact, error)
}

// EmailVerifier returns a verification status per email
type EmailVerifier interface {
	Verify(ctx context.Context, emails []string) (map[string]string, error)
}

// Unlocker releases a held lock
type Unlocker interface {
	Release(ctx context.Context) error
}

// Locker serializes reconciliation per lead
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Unlocker, error)
}

// Publisher announces the outcome of a reconciliation run
type Publisher interface {
	Publish(ctx context.Context, result *models.ReconcileResult, created, updated []models.StoredContact) error
}
