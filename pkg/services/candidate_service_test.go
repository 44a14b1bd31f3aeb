package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alshaya00/Alshaya-sub002/pkg/apperrors"
	"github.com/alshaya00/Alshaya-sub002/pkg/models"
)

func newCandidateFixture(t *testing.T) (*fakeStore, CandidateService) {
	t.Helper()
	store := newFakeStore()
	svc := NewCandidateService(store, store.members, store.changes, nil, zap.NewNop())
	return store, svc
}

func TestListCandidatesRequiresElevatedRole(t *testing.T) {
	_, svc := newCandidateFixture(t)

	_, err := svc.ListCandidates(context.Background(), editorActor, models.ChangeFilter{})
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestListCandidatesGroupsByBatch(t *testing.T) {
	store, svc := newCandidateFixture(t)
	member := seedMember(store, "Mecca")
	batchID := uuid.New()
	seedFieldChange(store, member, models.FieldCity, strp("Riyadh"), strp("Jeddah"), &batchID)
	seedFieldChange(store, member, models.FieldPhone, strp(""), strp("+966500000001"), &batchID)
	single := seedFieldChange(store, member, models.FieldCity, strp("Jeddah"), strp("Mecca"), nil)

	result, err := svc.ListCandidates(context.Background(), adminActor, models.ChangeFilter{})
	require.NoError(t, err)

	assert.Len(t, result.Changes, 3, "raw listing carries every record")
	require.Len(t, result.Batches, 2)

	// Newest batch first: the ungrouped single edit, keyed by its record ID.
	assert.Equal(t, single.ID, result.Batches[0].BatchID)
	assert.Equal(t, 1, result.Batches[0].ChangeCount)
	assert.Equal(t, batchID, result.Batches[1].BatchID)
	assert.Equal(t, 2, result.Batches[1].ChangeCount)

	for _, b := range result.Batches {
		assert.Equal(t, member.ID, b.MemberID)
		assert.Equal(t, "Salem", b.MemberLabel)
		assert.Equal(t, editorActor.Name, b.ChangedBy)
	}
}

func TestListCandidatesHidesSnapshotlessFromBatches(t *testing.T) {
	store, svc := newCandidateFixture(t)
	member := seedMember(store, "Jeddah")
	store.changes.seed(&models.ChangeRecord{
		MemberID:   member.ID,
		FieldName:  models.FieldCity,
		OldValue:   strp("Riyadh"),
		NewValue:   strp("Jeddah"),
		ChangeType: models.ChangeTypeUpdate,
		ActorID:    editorActor.ID,
		ActorName:  editorActor.Name,
	})

	result, err := svc.ListCandidates(context.Background(), adminActor, models.ChangeFilter{})
	require.NoError(t, err)
	assert.Len(t, result.Changes, 1)
	assert.Empty(t, result.Batches, "records without snapshots are not grouped")
}

func TestListCandidatesDeletedMemberLabel(t *testing.T) {
	store, svc := newCandidateFixture(t)
	member := seedMember(store, "Jeddah")
	seedFieldChange(store, member, models.FieldCity, strp("Riyadh"), strp("Jeddah"), nil)
	require.NoError(t, store.members.Delete(context.Background(), store, member.ID))

	result, err := svc.ListCandidates(context.Background(), adminActor, models.ChangeFilter{})
	require.NoError(t, err)
	require.Len(t, result.Batches, 1)
	assert.Equal(t, "(deleted member)", result.Batches[0].MemberLabel)
}

func TestListCandidatesNormalizesLimit(t *testing.T) {
	store, svc := newCandidateFixture(t)

	_, err := svc.ListCandidates(context.Background(), adminActor, models.ChangeFilter{Limit: -1})
	require.NoError(t, err)
	assert.Equal(t, 50, store.changes.lastFilter.Limit)

	_, err = svc.ListCandidates(context.Background(), adminActor, models.ChangeFilter{Limit: 10_000})
	require.NoError(t, err)
	assert.Equal(t, 200, store.changes.lastFilter.Limit)
}

func TestListCandidatesFilters(t *testing.T) {
	store, svc := newCandidateFixture(t)
	a := seedMember(store, "Riyadh")
	b := seedMember(store, "Jeddah")
	seedFieldChange(store, a, models.FieldCity, strp("Hail"), strp("Riyadh"), nil)
	seedFieldChange(store, b, models.FieldCity, strp("Hail"), strp("Jeddah"), nil)

	result, err := svc.ListCandidates(context.Background(), adminActor, models.ChangeFilter{MemberID: &a.ID})
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, a.ID, result.Changes[0].MemberID)
}

// Discovery is a read: calling it twice returns identical results and appends
// nothing to the ledger.
func TestListCandidatesIsIdempotent(t *testing.T) {
	store, svc := newCandidateFixture(t)
	member := seedMember(store, "Jeddah")
	seedFieldChange(store, member, models.FieldCity, strp("Riyadh"), strp("Jeddah"), nil)

	first, err := svc.ListCandidates(context.Background(), adminActor, models.ChangeFilter{})
	require.NoError(t, err)
	second, err := svc.ListCandidates(context.Background(), adminActor, models.ChangeFilter{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, store.changes.records, 1)
}
