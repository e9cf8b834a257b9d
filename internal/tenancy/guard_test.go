package tenancy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veris/internal/audit"
	auditmemory "veris/internal/audit/store/memory"
	"veris/internal/domain"
	"veris/internal/tenancy"
	"veris/pkg/platform/sentinel"
)

type stubRecord struct {
	id       string
	orgID    domain.OrgID
	training bool
}

func (r stubRecord) RecordOrgID() domain.OrgID { return r.orgID }
func (r stubRecord) RecordTrainingMode() bool  { return r.training }

type stubCollection struct {
	name     string
	records  []stubRecord
	failWith error
}

func (c *stubCollection) Name() string { return c.name }

func (c *stubCollection) All(context.Context) ([]tenancy.Record, error) {
	if c.failWith != nil {
		return nil, c.failWith
	}
	out := make([]tenancy.Record, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r)
	}
	return out, nil
}

func (c *stubCollection) FindByID(_ context.Context, id string) (tenancy.Record, bool, error) {
	if c.failWith != nil {
		return nil, false, c.failWith
	}
	for _, r := range c.records {
		if r.id == id {
			return r, true, nil
		}
	}
	return nil, false, nil
}

func newGuard(t *testing.T) (*tenancy.Guard, *auditmemory.InMemoryStore) {
	t.Helper()
	store := auditmemory.NewInMemoryStore()
	return tenancy.NewGuard(audit.NewLog(store)), store
}

func boolPtr(b bool) *bool { return &b }

func TestScopedQuery_FiltersByOrg(t *testing.T) {
	guard, _ := newGuard(t)
	col := &stubCollection{name: "invoices", records: []stubRecord{
		{id: "1", orgID: "42"},
		{id: "2", orgID: "43"},
		{id: "3", orgID: "42"},
	}}

	out, err := guard.ScopedQuery(context.Background(), col, "42", nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestScopedQuery_NormalizesOrgForms(t *testing.T) {
	guard, _ := newGuard(t)
	col := &stubCollection{name: "invoices", records: []stubRecord{
		{id: "1", orgID: "6BA7B810-9DAD-11D1-80B4-00C04FD430C8"},
	}}

	out, err := guard.ScopedQuery(context.Background(), col, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", nil)
	require.NoError(t, err)
	assert.Len(t, out, 1)
}

func TestScopedQuery_TrainingModePartition(t *testing.T) {
	guard, _ := newGuard(t)
	col := &stubCollection{name: "shifts", records: []stubRecord{
		{id: "1", orgID: "42", training: true},
		{id: "2", orgID: "42", training: false},
	}}
	ctx := context.Background()

	prod, err := guard.ScopedQuery(ctx, col, "42", boolPtr(false))
	require.NoError(t, err)
	require.Len(t, prod, 1)
	assert.False(t, prod[0].RecordTrainingMode())

	training, err := guard.ScopedQuery(ctx, col, "42", boolPtr(true))
	require.NoError(t, err)
	require.Len(t, training, 1)
	assert.True(t, training[0].RecordTrainingMode())
}

func TestScopedFetch_SameOrgReturnsRecord(t *testing.T) {
	guard, auditStore := newGuard(t)
	col := &stubCollection{name: "invoices", records: []stubRecord{{id: "1", orgID: "42"}}}
	actor := domain.Actor{ID: "a-1", OrgID: "42"}

	rec, err := guard.ScopedFetch(context.Background(), col, "1", actor, false)
	require.NoError(t, err)
	assert.Equal(t, domain.OrgID("42"), rec.RecordOrgID())
	assert.Empty(t, auditStore.All(), "clean fetches are not audited by the guard")
}

func TestScopedFetch_AbsentRecordIsNotFound(t *testing.T) {
	guard, _ := newGuard(t)
	col := &stubCollection{name: "invoices"}

	_, err := guard.ScopedFetch(context.Background(), col, "missing", domain.Actor{OrgID: "42"}, false)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

// A training-mode mismatch must be indistinguishable from absence.
func TestScopedFetch_TrainingMismatchLooksLikeAbsence(t *testing.T) {
	guard, auditStore := newGuard(t)
	col := &stubCollection{name: "invoices", records: []stubRecord{{id: "1", orgID: "42", training: true}}}

	_, err := guard.ScopedFetch(context.Background(), col, "1", domain.Actor{OrgID: "42"}, false)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.Empty(t, auditStore.All())
}

func TestScopedFetch_CrossTenantBlockedAndAudited(t *testing.T) {
	guard, auditStore := newGuard(t)
	col := &stubCollection{name: "invoices", records: []stubRecord{{id: "1", orgID: "org-a"}}}
	actor := domain.Actor{ID: "intruder", OrgID: "org-b", Role: "clerk"}

	rec, err := guard.ScopedFetch(context.Background(), col, "1", actor, false)
	assert.ErrorIs(t, err, sentinel.ErrCrossTenant)
	assert.Nil(t, rec, "record fields must never be returned on a violation")

	records := auditStore.All()
	require.Len(t, records, 1, "exactly one audit record per violation")
	assert.Equal(t, audit.ActionCrossTenantAccess, records[0].Action)
	assert.Equal(t, audit.OutcomeBlocked, records[0].Outcome)
	assert.Equal(t, audit.ReasonOrgScopeViolation, records[0].ReasonCode)
	assert.Equal(t, domain.ClassificationLegalHold, records[0].Classification)
	assert.Equal(t, "invoices/1", records[0].Resource)
	assert.Equal(t, domain.OrgID("org-b"), records[0].OrgID, "audit row belongs to the acting org")
}

// Integer and UUID org id forms must not produce false violations.
func TestScopedFetch_MixedOrgIDFormsCompareEqual(t *testing.T) {
	guard, auditStore := newGuard(t)
	col := &stubCollection{name: "invoices", records: []stubRecord{{id: "1", orgID: domain.NormalizeOrgID(42)}}}

	_, err := guard.ScopedFetch(context.Background(), col, "1", domain.Actor{OrgID: " 42"}, false)
	require.NoError(t, err)
	assert.Empty(t, auditStore.All())
}

func TestScopedFetch_StorageErrorPropagates(t *testing.T) {
	guard, _ := newGuard(t)
	col := &stubCollection{name: "invoices", failWith: errors.New("connection reset")}

	_, err := guard.ScopedFetch(context.Background(), col, "1", domain.Actor{OrgID: "42"}, false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, sentinel.ErrNotFound)
}

type appendFailStore struct{}

func (appendFailStore) Append(context.Context, audit.Record) error {
	return errors.New("audit sink down")
}
func (appendFailStore) ListByOrg(context.Context, domain.OrgID) ([]audit.Record, error) {
	return nil, nil
}
func (appendFailStore) ListByDecision(context.Context, string) ([]audit.Record, error) {
	return nil, nil
}

// A violation that cannot be audited must fail loudly rather than degrade to
// an unaudited denial.
func TestScopedFetch_AuditFailureFailsClosed(t *testing.T) {
	guard := tenancy.NewGuard(audit.NewLog(appendFailStore{}))
	col := &stubCollection{name: "invoices", records: []stubRecord{{id: "1", orgID: "org-a"}}}

	_, err := guard.ScopedFetch(context.Background(), col, "1", domain.Actor{OrgID: "org-b"}, false)
	require.Error(t, err)
	assert.NotErrorIs(t, err, sentinel.ErrCrossTenant)
	assert.Contains(t, err.Error(), "audit")
}
