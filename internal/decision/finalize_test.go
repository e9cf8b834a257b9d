package decision_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veris/internal/audit"
	"veris/internal/audit/store/memory"
	"veris/internal/canonical"
	"veris/internal/decision"
	"veris/internal/domain"
	"veris/pkg/requestcontext"
)

var finActor = domain.Actor{ID: "actor-9", OrgID: "42", Role: "biller"}

func buildPacket(t *testing.T) domain.DecisionPacket {
	t.Helper()
	b := decision.NewBuilder(decision.PolicyFlags{})
	b.AddReason(domain.Reason{RuleID: "r1", Severity: domain.SeverityMedium, Decision: domain.DecisionWarn})
	pkt, err := b.Build(context.Background(), map[string]any{"op": "create-invoice"})
	require.NoError(t, err)
	return pkt
}

func TestFinalize_WritesLinkedAuditRecord(t *testing.T) {
	store := memory.NewInMemoryStore()
	fin := decision.NewFinalizer(audit.NewLog(store))

	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)

	pkt, err := fin.Finalize(ctx, buildPacket(t), decision.FinalizeRequest{
		Actor:          finActor,
		Action:         "invoice-create-evaluated",
		Resource:       "invoice/new",
		Classification: domain.ClassificationBillingSensitive,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, pkt.OutputHash)
	assert.NotEmpty(t, pkt.AuditRef.AuditID)
	assert.Equal(t, now, pkt.AuditRef.Timestamp)

	records := store.All()
	require.Len(t, records, 1, "finalize writes exactly one audit record")
	rec := records[0]
	assert.Equal(t, pkt.AuditRef.AuditID, rec.ID)
	require.NotNil(t, rec.Linkage)
	assert.Equal(t, decision.ReasoningComponent, rec.Linkage.ReasoningComponent)
	assert.Equal(t, decision.ReasoningVersion, rec.Linkage.ReasoningVersion)
	assert.Equal(t, decision.MethodRuleChain, rec.Linkage.MethodUsed)
	assert.Equal(t, pkt.InputHash, rec.Linkage.InputHash)
	assert.Equal(t, pkt.OutputHash, rec.Linkage.OutputHash)
	assert.NotEmpty(t, rec.Linkage.DecisionID)
}

// On a context without a pinned request time the packet and its audit row
// must still carry the same instant, or hash re-verification against the
// stored record fails.
func TestFinalize_AuditRowSharesPacketTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	fin := decision.NewFinalizer(audit.NewLog(store))

	pkt, err := fin.Finalize(context.Background(), buildPacket(t), decision.FinalizeRequest{
		Actor:          finActor,
		Action:         "evaluated",
		Classification: domain.ClassificationOps,
	})
	require.NoError(t, err)

	records := store.All()
	require.Len(t, records, 1)
	assert.True(t, records[0].Timestamp.Equal(pkt.AuditRef.Timestamp),
		"audit row timestamp %v differs from packet audit ref %v",
		records[0].Timestamp, pkt.AuditRef.Timestamp)
}

// The output hash must be reproducible from the returned packet: zero the
// hash field, re-canonicalize, compare.
func TestFinalize_OutputHashReproducible(t *testing.T) {
	fin := decision.NewFinalizer(audit.NewLog(memory.NewInMemoryStore()))

	pkt, err := fin.Finalize(context.Background(), buildPacket(t), decision.FinalizeRequest{
		Actor:          finActor,
		Action:         "evaluated",
		Classification: domain.ClassificationOps,
	})
	require.NoError(t, err)

	verify := pkt
	verify.OutputHash = ""
	want, err := canonical.Hash(verify)
	require.NoError(t, err)
	assert.Equal(t, want, pkt.OutputHash)
}

func TestFinalize_BlockedDecisionAuditsBlockedOutcome(t *testing.T) {
	store := memory.NewInMemoryStore()
	fin := decision.NewFinalizer(audit.NewLog(store))

	b := decision.NewBuilder(decision.PolicyFlags{})
	b.AddReason(domain.Reason{RuleID: "r-block", Severity: domain.SeverityHigh, Decision: domain.DecisionBlock})
	pkt, err := b.Build(context.Background(), nil)
	require.NoError(t, err)

	finalized, err := fin.Finalize(context.Background(), pkt, decision.FinalizeRequest{
		Actor:          finActor,
		Action:         "evaluated",
		Classification: domain.ClassificationOps,
	})
	require.NoError(t, err, "BLOCK is a value, not an error")
	assert.False(t, finalized.Allowed())

	records := store.All()
	require.Len(t, records, 1)
	assert.Equal(t, audit.OutcomeBlocked, records[0].Outcome)
}

type brokenStore struct{}

func (brokenStore) Append(context.Context, audit.Record) error {
	return errors.New("sink unavailable")
}
func (brokenStore) ListByOrg(context.Context, domain.OrgID) ([]audit.Record, error) {
	return nil, nil
}
func (brokenStore) ListByDecision(context.Context, string) ([]audit.Record, error) {
	return nil, nil
}

func TestFinalize_AuditFailurePropagates(t *testing.T) {
	fin := decision.NewFinalizer(audit.NewLog(brokenStore{}))

	_, err := fin.Finalize(context.Background(), buildPacket(t), decision.FinalizeRequest{
		Actor:          finActor,
		Action:         "evaluated",
		Classification: domain.ClassificationOps,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink unavailable")
}
