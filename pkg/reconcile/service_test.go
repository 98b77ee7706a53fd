package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/models"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func ptr(s string) *string {
	return &s
}

type fakeStore struct {
	mu        sync.Mutex
	existing  []models.StoredContact
	listErr   error
	updateErr error
	failNames map[string]bool

	listCalls int
	created   []models.NormalizedContact
	updates   []models.ContactUpdate
}

func (f *fakeStore) ListByLead(_ context.Context, _, _ string) ([]models.StoredContact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.existing, nil
}

func (f *fakeStore) Create(_ context.Context, tenantID, leadID string, c models.NormalizedContact) (*models.StoredContact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNames[c.Name] {
		return nil, errors.New("insert failed")
	}
	f.created = append(f.created, c)
	return &models.StoredContact{
		ID:                      "id-" + c.Name,
		TenantID:                tenantID,
		LeadID:                  leadID,
		Name:                    c.Name,
		Email:                   c.Email,
		EmailVerificationResult: c.EmailVerificationResult,
	}, nil
}

func (f *fakeStore) UpdateBatch(_ context.Context, tenantID string, updates []models.ContactUpdate) ([]models.StoredContact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.updates = append(f.updates, updates...)
	out := make([]models.StoredContact, len(updates))
	for i, u := range updates {
		out[i] = models.StoredContact{ID: u.ID, TenantID: tenantID, Name: models.Deref(u.Data.Name), Email: u.Data.Email}
	}
	return out, nil
}

type fakeVerifier struct {
	statuses map[string]string
	err      error
	calls    [][]string
}

func (f *fakeVerifier) Verify(_ context.Context, emails []string) (map[string]string, error) {
	f.calls = append(f.calls, emails)
	return f.statuses, f.err
}

type fakeLock struct {
	released bool
}

func (l *fakeLock) Release(_ context.Context) error {
	l.released = true
	return nil
}

type fakeLocker struct {
	err  error
	keys []string
	lock *fakeLock
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (Unlocker, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	f.lock = &fakeLock{}
	return f.lock, nil
}

type fakePublisher struct {
	err     error
	results []*models.ReconcileResult
	created []models.StoredContact
	updated []models.StoredContact
}

func (f *fakePublisher) Publish(_ context.Context, result *models.ReconcileResult, created, updated []models.StoredContact) error {
	f.results = append(f.results, result)
	f.created = created
	f.updated = updated
	return f.err
}

func newTestService(store *fakeStore, opts ...Option) *Service {
	log := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	opts = append([]Option{WithMerger(merging.NewFieldMergerWithClock(func() time.Time { return testNow }))}, opts...)
	return NewService(log, store, store, DefaultConfig(), opts...)
}

func jamesHelmStore() *fakeStore {
	return &fakeStore{
		existing: []models.StoredContact{
			{
				ID:        "X",
				TenantID:  "tenant-1",
				LeadID:    "lead-1",
				Name:      "James Helm",
				Email:     ptr("a@b.com"),
				Phone:     ptr("+1 800 555 0100"),
				UpdatedAt: testNow.Add(-24 * time.Hour),
			},
		},
	}
}

func jamesHelmCandidates() []models.RawCandidateContact {
	return []models.RawCandidateContact{
		{
			Name:        "James Helm",
			Email:       "a@b.com",
			Title:       "Managing Partner",
			ContactType: models.ContactTypeIndividual,
			Confidence:  models.ConfidenceHigh,
		},
		{
			Name:        "Intake Team",
			Phone:       "800-555-0199",
			ContactType: models.ContactTypeOffice,
			Context:     "New client intake",
			Confidence:  models.ConfidenceMedium,
		},
	}
}

func TestService_Reconcile_OneUpdateOneCreate(t *testing.T) {
	store := jamesHelmStore()
	svc := newTestService(store)

	result, err := svc.Reconcile(context.Background(), Request{
		TenantID:   "tenant-1",
		LeadID:     "lead-1",
		Candidates: jamesHelmCandidates(),
	})
	require.NoError(t, err)

	require.Len(t, store.updates, 1)
	assert.Equal(t, "X", store.updates[0].ID)
	assert.Equal(t, ptr("Managing Partner"), store.updates[0].Data.Title)
	assert.Equal(t, testNow, store.updates[0].Data.UpdatedAt)

	require.Len(t, store.created, 1)
	assert.Equal(t, "Intake Team", store.created[0].Name)
	assert.Equal(t, ptr("New client intake"), store.created[0].Title)

	assert.Equal(t, 2, result.Received)
	assert.Equal(t, 1, result.ContactsCreated)
	assert.Equal(t, 1, result.ContactsUpdated)
	assert.Equal(t, 0, result.Dropped)
	assert.Equal(t, 0, result.CreateFailures)
	assert.Nil(t, result.PrimaryContactID)
	assert.NotEmpty(t, result.BatchID)
	assert.Equal(t, "Processed 2 contacts: 1 created, 1 updated, 0 dropped", result.Summary)
}

func TestService_Reconcile_SnapshotFailureIsFatal(t *testing.T) {
	store := &fakeStore{listErr: errors.New("connection refused")}
	svc := newTestService(store)

	result, err := svc.Reconcile(context.Background(), Request{
		TenantID:   "tenant-1",
		LeadID:     "lead-1",
		Candidates: jamesHelmCandidates(),
	})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrSnapshotUnavailable)
	assert.ErrorContains(t, err, "connection refused")
	assert.Empty(t, store.created)
	assert.Empty(t, store.updates)
}

func TestService_Reconcile_InvalidRequest(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	_, err := svc.Reconcile(context.Background(), Request{LeadID: "lead-1"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Equal(t, 0, store.listCalls)
}

func TestService_Reconcile_PartialCreateFailure(t *testing.T) {
	store := &fakeStore{failNames: map[string]bool{"Bob Stone": true}}
	svc := newTestService(store)

	result, err := svc.Reconcile(context.Background(), Request{
		TenantID: "tenant-1",
		LeadID:   "lead-1",
		Candidates: []models.RawCandidateContact{
			{Name: "Alice Jones", Email: "alice@acme.com", ContactType: models.ContactTypeIndividual},
			{Name: "Bob Stone", Email: "bob@acme.com", ContactType: models.ContactTypeIndividual},
			{Name: "Carol King", Email: "carol@acme.com", ContactType: models.ContactTypeIndividual},
			{Name: "", Email: "ghost@acme.com", ContactType: models.ContactTypeIndividual},
		},
		Rejected: 1,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Received)
	assert.Equal(t, 2, result.ContactsCreated)
	assert.Equal(t, 1, result.CreateFailures)
	assert.Equal(t, 2, result.Dropped)
	assert.Equal(t, "Processed 5 contacts: 2 created, 0 updated, 2 dropped, 1 failed", result.Summary)
}

func TestService_Reconcile_UpdateFailureReturnsError(t *testing.T) {
	store := jamesHelmStore()
	store.updateErr = errors.New("deadlock detected")
	svc := newTestService(store)

	result, err := svc.Reconcile(context.Background(), Request{
		TenantID:   "tenant-1",
		LeadID:     "lead-1",
		Candidates: jamesHelmCandidates(),
	})

	assert.Nil(t, result)
	assert.ErrorContains(t, err, "deadlock detected")
	assert.Empty(t, store.created)
}

func TestService_Reconcile_AttachesVerification(t *testing.T) {
	store := jamesHelmStore()
	verifier := &fakeVerifier{statuses: map[string]string{
		"a@b.com":         "valid",
		"intake@firm.com": "catch_all",
	}}
	svc := newTestService(store, WithVerifier(verifier))

	candidates := jamesHelmCandidates()
	candidates[1].Email = "Intake@Firm.com"

	_, err := svc.Reconcile(context.Background(), Request{TenantID: "tenant-1", LeadID: "lead-1", Candidates: candidates})
	require.NoError(t, err)

	require.Len(t, verifier.calls, 1)
	assert.ElementsMatch(t, []string{"a@b.com", "intake@firm.com"}, verifier.calls[0])

	require.Len(t, store.created, 1)
	assert.Equal(t, ptr("catch_all"), store.created[0].EmailVerificationResult)
	require.Len(t, store.updates, 1)
	assert.Equal(t, ptr("valid"), store.updates[0].Data.EmailVerificationResult)
}

func TestService_Reconcile_VerifierFailureContinues(t *testing.T) {
	store := jamesHelmStore()
	verifier := &fakeVerifier{err: errors.New("verifier down")}
	svc := newTestService(store, WithVerifier(verifier))

	result, err := svc.Reconcile(context.Background(), Request{TenantID: "tenant-1", LeadID: "lead-1", Candidates: jamesHelmCandidates()})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ContactsUpdated)
	assert.Nil(t, store.updates[0].Data.EmailVerificationResult)
}

func TestService_Reconcile_PrimaryContact(t *testing.T) {
	t.Run("single priority contact that is created", func(t *testing.T) {
		store := jamesHelmStore()
		svc := newTestService(store)

		candidates := jamesHelmCandidates()
		candidates[1].IsPriorityContact = true

		result, err := svc.Reconcile(context.Background(), Request{TenantID: "tenant-1", LeadID: "lead-1", Candidates: candidates})
		require.NoError(t, err)
		require.NotNil(t, result.PrimaryContactID)
		assert.Equal(t, "id-Intake Team", *result.PrimaryContactID)
	})

	t.Run("single priority contact that is updated", func(t *testing.T) {
		store := jamesHelmStore()
		svc := newTestService(store)

		candidates := jamesHelmCandidates()
		candidates[0].IsPriorityContact = true

		result, err := svc.Reconcile(context.Background(), Request{TenantID: "tenant-1", LeadID: "lead-1", Candidates: candidates})
		require.NoError(t, err)
		require.NotNil(t, result.PrimaryContactID)
		assert.Equal(t, "X", *result.PrimaryContactID)
	})

	t.Run("several priority contacts", func(t *testing.T) {
		store := jamesHelmStore()
		svc := newTestService(store)

		candidates := jamesHelmCandidates()
		candidates[0].IsPriorityContact = true
		candidates[1].IsPriorityContact = true

		result, err := svc.Reconcile(context.Background(), Request{TenantID: "tenant-1", LeadID: "lead-1", Candidates: candidates})
		require.NoError(t, err)
		assert.Nil(t, result.PrimaryContactID)
	})

	t.Run("priority contact whose create failed", func(t *testing.T) {
		store := jamesHelmStore()
		store.failNames = map[string]bool{"Intake Team": true}
		svc := newTestService(store)

		candidates := jamesHelmCandidates()
		candidates[1].IsPriorityContact = true

		result, err := svc.Reconcile(context.Background(), Request{TenantID: "tenant-1", LeadID: "lead-1", Candidates: candidates})
		require.NoError(t, err)
		assert.Nil(t, result.PrimaryContactID)
	})
}

func TestService_Reconcile_Locking(t *testing.T) {
	t.Run("lock is held and released", func(t *testing.T) {
		locker := &fakeLocker{}
		svc := newTestService(jamesHelmStore(), WithLocker(locker))

		_, err := svc.Reconcile(context.Background(), Request{TenantID: "tenant-1", LeadID: "lead-1", Candidates: jamesHelmCandidates()})
		require.NoError(t, err)
		assert.Equal(t, []string{LockKey("tenant-1", "lead-1")}, locker.keys)
		assert.True(t, locker.lock.released)
	})

	t.Run("lock failure stops the run", func(t *testing.T) {
		store := jamesHelmStore()
		locker := &fakeLocker{err: errors.New("lead busy")}
		svc := newTestService(store, WithLocker(locker))

		_, err := svc.Reconcile(context.Background(), Request{TenantID: "tenant-1", LeadID: "lead-1", Candidates: jamesHelmCandidates()})
		assert.ErrorContains(t, err, "lead busy")
		assert.Equal(t, 0, store.listCalls)
	})
}

func TestService_Reconcile_Publishes(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker unavailable")}
	svc := newTestService(jamesHelmStore(), WithPublisher(publisher))

	result, err := svc.Reconcile(context.Background(), Request{TenantID: "tenant-1", LeadID: "lead-1", Candidates: jamesHelmCandidates()})
	require.NoError(t, err)

	require.Len(t, publisher.results, 1)
	assert.Same(t, result, publisher.results[0])
	require.Len(t, publisher.created, 1)
	assert.Equal(t, "id-Intake Team", publisher.created[0].ID)
	require.Len(t, publisher.updated, 1)
	assert.Equal(t, "X", publisher.updated[0].ID)
}

func TestCollectEmails(t *testing.T) {
	plan := &models.BatchPlan{
		ToCreate: []models.NormalizedContact{
			{Name: "A", Email: ptr("a@x.com")},
			{Name: "B"},
			{Name: "C", Email: ptr("  ")},
		},
		ToUpdate: []models.ContactUpdate{
			{ID: "1", Data: models.ContactPatch{Email: ptr("A@X.com")}},
			{ID: "2", Data: models.ContactPatch{Email: ptr("d@x.com")}},
		},
	}
	assert.Equal(t, []string{"a@x.com", "d@x.com"}, CollectEmails(plan))
}
