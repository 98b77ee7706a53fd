package contact

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const table = "contacts"

var columns = []string{
	"id", "tenant_id", "lead_id", "name", "email", "phone", "title", "company", "source_url",
	"email_verification_result", "manually_reviewed", "strategy_status", "created_at", "updated_at",
}

// Repository handles contact persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
	now    func() time.Time
}

// NewRepository creates a new contact repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// ListByLead returns every contact stored for the lead, most recently updated first
func (r *Repository) ListByLead(ctx context.Context, tenantID, leadID string) ([]models.StoredContact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.ListByLead")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("lead_id", leadID),
	)
	sb.OrderBy("updated_at DESC", "id")

	query, args := sb.Build()
	contacts := []models.StoredContact{}
	if err := r.db.SelectContext(ctx, &contacts, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"lead_id": leadID}).Error("Failed to list contacts")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list contacts")
	}

	return contacts, nil
}

// Create inserts a new contact for the lead
func (r *Repository) Create(ctx context.Context, tenantID, leadID string, c models.NormalizedContact) (*models.StoredContact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Create")
	defer span.End()

	now := r.now().UTC()
	id := uuid.New().String()

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table)
	ib.Cols("id", "tenant_id", "lead_id", "name", "email", "phone", "title", "company", "source_url", "email_verification_result", "created_at", "updated_at")
	ib.Values(id, tenantID, leadID, c.Name, c.Email, c.Phone, c.Title, c.Company, c.SourceURL, c.EmailVerificationResult, now, now)
	ib.Returning(columns...)

	query, args := ib.Build()
	var created models.StoredContact
	if err := r.db.GetContext(ctx, &created, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"lead_id": leadID, "name": c.Name}).Error("Failed to create contact")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create contact")
	}

	return &created, nil
}

// UpdateBatch applies every update in one transaction. Nil patch fields keep their stored value.
// A missing contact aborts the whole batch.
func (r *Repository) UpdateBatch(ctx context.Context, tenantID string, updates []models.ContactUpdate) ([]models.StoredContact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.UpdateBatch")
	defer span.End()

	if len(updates) == 0 {
		return nil, nil
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update contacts")
	}
	defer tx.Rollback(ctx)

	updated := make([]models.StoredContact, 0, len(updates))
	for _, u := range updates {
		query, args := buildUpdate(tenantID, u)

		var contact models.StoredContact
		if err := tx.GetContext(ctx, &contact, query, args...); err != nil {
			if err.Error() == "sql: no rows in result set" {
				return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("contact %s not found", u.ID))
			}
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"contact_id": u.ID}).Error("Failed to update contact")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update contacts")
		}
		updated = append(updated, contact)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update contacts")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(updated)}).Debug("Updated contacts batch")
	return updated, nil
}

func buildUpdate(tenantID string, u models.ContactUpdate) (string, []any) {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update(table)

	assignments := []string{}
	set := func(col string, v *string) {
		if v != nil {
			assignments = append(assignments, ub.Assign(col, *v))
		}
	}
	set("name", u.Data.Name)
	set("email", u.Data.Email)
	set("phone", u.Data.Phone)
	set("title", u.Data.Title)
	set("company", u.Data.Company)
	set("source_url", u.Data.SourceURL)
	set("email_verification_result", u.Data.EmailVerificationResult)

	updatedAt := u.Data.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	assignments = append(assignments, ub.Assign("updated_at", updatedAt))

	ub.Set(assignments...)
	ub.Where(
		ub.Equal("id", u.ID),
		ub.Equal("tenant_id", tenantID),
	)
	ub.SQL("RETURNING " + strings.Join(columns, ", "))

	return ub.Build()
}

