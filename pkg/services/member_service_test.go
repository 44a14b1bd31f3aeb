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

func newMemberFixture(t *testing.T) (*fakeStore, MemberService) {
	t.Helper()
	store := newFakeStore()
	svc := NewMemberService(store, store.members, store.changes, nil, zap.NewNop())
	return store, svc
}

func validMember() *models.Member {
	return &models.Member{
		FirstName:       "Salem",
		FatherName:      "Abdullah",
		GrandfatherName: "Mohammed",
		Gender:          models.GenderMale,
		City:            "Riyadh",
		Status:          models.StatusAlive,
	}
}

func TestMemberCreateWritesSummaryRecord(t *testing.T) {
	store, svc := newMemberFixture(t)

	created, err := svc.Create(context.Background(), editorActor, validMember())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)

	require.Len(t, store.changes.records, 1)
	rec := store.changes.records[0]
	assert.Equal(t, models.ChangeTypeCreate, rec.ChangeType)
	assert.Equal(t, models.FieldFullRestore, rec.FieldName)
	assert.Equal(t, created.ID, rec.MemberID)
	assert.Nil(t, rec.OldValue)
	require.NotNil(t, rec.NewValue)
	assert.True(t, rec.HasSnapshot())
	assert.Equal(t, editorActor.ID, rec.ActorID)
	assert.Equal(t, editorActor.Name, rec.ActorName)

	snap, err := rec.DecodeSnapshot()
	require.NoError(t, err)
	assert.Equal(t, "Riyadh", *snap[models.FieldCity])
}

func TestMemberCreateRejectsViewer(t *testing.T) {
	store, svc := newMemberFixture(t)

	_, err := svc.Create(context.Background(), viewerActor, validMember())
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Empty(t, store.changes.records)
}

func TestMemberCreateValidatesBeforeWriting(t *testing.T) {
	store, svc := newMemberFixture(t)
	m := validMember()
	m.Gender = "other"

	_, err := svc.Create(context.Background(), editorActor, m)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, store.members.byID)
	assert.Empty(t, store.changes.records)
}

func TestMemberUpdateRecordsOneEntryPerChangedField(t *testing.T) {
	store, svc := newMemberFixture(t)
	created, err := svc.Create(context.Background(), editorActor, validMember())
	require.NoError(t, err)

	updated := *created
	updated.City = "Jeddah"
	updated.Phone = "+966500000001"

	result, err := svc.Update(context.Background(), adminActor, created.ID, &updated)
	require.NoError(t, err)
	assert.Equal(t, "Jeddah", result.City)

	// CREATE summary plus one UPDATE per changed field.
	require.Len(t, store.changes.records, 3)
	first, second := store.changes.records[1], store.changes.records[2]

	assert.Equal(t, models.ChangeTypeUpdate, first.ChangeType)
	assert.Equal(t, models.FieldCity, first.FieldName)
	assert.Equal(t, "Riyadh", *first.OldValue)
	assert.Equal(t, "Jeddah", *first.NewValue)

	assert.Equal(t, models.FieldPhone, second.FieldName)
	require.NotNil(t, second.OldValue)
	assert.Empty(t, *second.OldValue, "phone was empty before")
	assert.Equal(t, "+966500000001", *second.NewValue)

	// Multi-field edits share one batch key; both carry the post-edit snapshot.
	require.NotNil(t, first.BatchID)
	require.NotNil(t, second.BatchID)
	assert.Equal(t, *first.BatchID, *second.BatchID)
	assert.True(t, first.HasSnapshot())
	assert.True(t, second.HasSnapshot())
}

func TestMemberUpdateSingleFieldHasNoBatchID(t *testing.T) {
	store, svc := newMemberFixture(t)
	created, err := svc.Create(context.Background(), editorActor, validMember())
	require.NoError(t, err)

	updated := *created
	updated.City = "Jeddah"

	_, err = svc.Update(context.Background(), editorActor, created.ID, &updated)
	require.NoError(t, err)

	require.Len(t, store.changes.records, 2)
	rec := store.changes.records[1]
	assert.Nil(t, rec.BatchID, "single-field edits stay ungrouped")
	assert.Equal(t, rec.ID, rec.GroupKey(), "record ID doubles as the batch key")
}

func TestMemberUpdateNoChangesWritesNothing(t *testing.T) {
	store, svc := newMemberFixture(t)
	created, err := svc.Create(context.Background(), editorActor, validMember())
	require.NoError(t, err)

	same := *created
	_, err = svc.Update(context.Background(), editorActor, created.ID, &same)
	require.NoError(t, err)
	assert.Len(t, store.changes.records, 1, "no-op update appends no ledger entries")
}

func TestMemberUpdateUnknownMember(t *testing.T) {
	_, svc := newMemberFixture(t)

	_, err := svc.Update(context.Background(), editorActor, uuid.New(), validMember())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMemberUpdateAtomicOnLedgerFailure(t *testing.T) {
	store, svc := newMemberFixture(t)
	created, err := svc.Create(context.Background(), editorActor, validMember())
	require.NoError(t, err)

	store.changes.recordErr = assert.AnError
	updated := *created
	updated.City = "Jeddah"

	_, err = svc.Update(context.Background(), editorActor, created.ID, &updated)
	require.Error(t, err)

	got, err := store.members.GetByID(context.Background(), store, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Riyadh", got.City, "member write rolls back with the ledger write")
	assert.Len(t, store.changes.records, 1)
}

func TestMemberDeleteRecordsSnapshot(t *testing.T) {
	store, svc := newMemberFixture(t)
	created, err := svc.Create(context.Background(), editorActor, validMember())
	require.NoError(t, err)

	err = svc.Delete(context.Background(), adminActor, created.ID, "duplicate entry")
	require.NoError(t, err)

	_, err = store.members.GetByID(context.Background(), store, created.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.Len(t, store.changes.records, 2)
	rec := store.changes.records[1]
	assert.Equal(t, models.ChangeTypeDelete, rec.ChangeType)
	assert.Equal(t, models.FieldFullRestore, rec.FieldName)
	require.NotNil(t, rec.OldValue)
	assert.Contains(t, *rec.OldValue, "Riyadh", "old value holds the pre-deletion state")
	assert.True(t, rec.HasSnapshot())
	require.NotNil(t, rec.Reason)
	assert.Equal(t, "duplicate entry", *rec.Reason)
}

func TestMemberDeleteRejectsViewer(t *testing.T) {
	store, svc := newMemberFixture(t)
	member := seedMember(store, "Riyadh")

	err := svc.Delete(context.Background(), viewerActor, member.ID, "")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = store.members.GetByID(context.Background(), store, member.ID)
	assert.NoError(t, err)
}

func TestMemberHistoryNewestFirst(t *testing.T) {
	_, svc := newMemberFixture(t)
	created, err := svc.Create(context.Background(), editorActor, validMember())
	require.NoError(t, err)

	updated := *created
	updated.City = "Jeddah"
	_, err = svc.Update(context.Background(), editorActor, created.ID, &updated)
	require.NoError(t, err)

	history, err := svc.History(context.Background(), created.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.ChangeTypeUpdate, history[0].ChangeType)
	assert.Equal(t, models.ChangeTypeCreate, history[1].ChangeType)
}
