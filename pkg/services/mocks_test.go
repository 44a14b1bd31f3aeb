package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alshaya00/Alshaya-sub002/pkg/apperrors"
	"github.com/alshaya00/Alshaya-sub002/pkg/database"
	"github.com/alshaya00/Alshaya-sub002/pkg/models"
	"github.com/alshaya00/Alshaya-sub002/pkg/repositories"
)

// fakeStore implements database.Store over the in-memory fake repositories.
// WithTx snapshots repository state before running fn and restores it when fn
// or the simulated commit fails, mirroring real transaction rollback so
// atomicity properties are observable in unit tests.
type fakeStore struct {
	members *fakeMemberRepo
	changes *fakeChangeRepo

	commitErr error
	commits   int
	rollbacks int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members: newFakeMemberRepo(),
		changes: newFakeChangeRepo(),
	}
}

func (s *fakeStore) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (s *fakeStore) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("fakeStore does not execute SQL")
}

func (s *fakeStore) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("fakeStore does not execute SQL")
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(q database.Querier) error) error {
	membersBackup := s.members.backup()
	changesBackup := s.changes.backup()

	err := fn(s)
	if err == nil && s.commitErr != nil {
		err = s.commitErr
	}
	if err != nil {
		s.members.restore(membersBackup)
		s.changes.restore(changesBackup)
		s.rollbacks++
		return err
	}

	s.commits++
	return nil
}

var _ database.Store = (*fakeStore)(nil)

// fakeMemberRepo is an in-memory MemberRepository. Reads hand out copies, so
// callers must go through Update for mutations to stick, like with real rows.
type fakeMemberRepo struct {
	byID map[uuid.UUID]models.Member

	getErr    error
	updateErr error
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{byID: make(map[uuid.UUID]models.Member)}
}

func (r *fakeMemberRepo) put(m *models.Member) {
	r.byID[m.ID] = *m
}

func (r *fakeMemberRepo) backup() map[uuid.UUID]models.Member {
	cp := make(map[uuid.UUID]models.Member, len(r.byID))
	for k, v := range r.byID {
		cp[k] = v
	}
	return cp
}

func (r *fakeMemberRepo) restore(backup map[uuid.UUID]models.Member) {
	r.byID = backup
}

func (r *fakeMemberRepo) GetByID(ctx context.Context, q database.Querier, id uuid.UUID) (*models.Member, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	m, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", id, apperrors.ErrNotFound)
	}
	cp := m
	return &cp, nil
}

func (r *fakeMemberRepo) GetByIDForUpdate(ctx context.Context, q database.Querier, id uuid.UUID) (*models.Member, error) {
	return r.GetByID(ctx, q, id)
}

func (r *fakeMemberRepo) List(ctx context.Context, q database.Querier, limit, offset int) ([]*models.Member, error) {
	var members []*models.Member
	for _, m := range r.byID {
		cp := m
		members = append(members, &cp)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].FirstName < members[j].FirstName })
	if offset >= len(members) {
		return nil, nil
	}
	members = members[offset:]
	if limit < len(members) {
		members = members[:limit]
	}
	return members, nil
}

func (r *fakeMemberRepo) Create(ctx context.Context, q database.Querier, m *models.Member) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	r.byID[m.ID] = *m
	return nil
}

func (r *fakeMemberRepo) Update(ctx context.Context, q database.Querier, m *models.Member) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.byID[m.ID]; !ok {
		return fmt.Errorf("member %s: %w", m.ID, apperrors.ErrNotFound)
	}
	m.UpdatedAt = time.Now().UTC()
	r.byID[m.ID] = *m
	return nil
}

func (r *fakeMemberRepo) Delete(ctx context.Context, q database.Querier, id uuid.UUID) error {
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("member %s: %w", id, apperrors.ErrNotFound)
	}
	delete(r.byID, id)
	return nil
}

var _ repositories.MemberRepository = (*fakeMemberRepo)(nil)

// fakeChangeRepo is an in-memory append-only ChangeRepository. Records get a
// monotonically increasing seq and timestamps that follow insertion order.
type fakeChangeRepo struct {
	records []*models.ChangeRecord
	seq     int64

	recordErr       error
	failAfterWrites int // fail Record after this many successful writes, 0 disables

	lastFilter *models.ChangeFilter
}

func newFakeChangeRepo() *fakeChangeRepo {
	return &fakeChangeRepo{}
}

type changeBackup struct {
	records []*models.ChangeRecord
	seq     int64
}

func (r *fakeChangeRepo) backup() changeBackup {
	return changeBackup{records: append([]*models.ChangeRecord(nil), r.records...), seq: r.seq}
}

func (r *fakeChangeRepo) restore(b changeBackup) {
	r.records = b.records
	r.seq = b.seq
}

// seed inserts a record directly, bypassing error injection.
func (r *fakeChangeRepo) seed(rec *models.ChangeRecord) *models.ChangeRecord {
	r.seq++
	cp := *rec
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	cp.Seq = r.seq
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(r.seq) * time.Second)
	}
	r.records = append(r.records, &cp)
	return &cp
}

func (r *fakeChangeRepo) Record(ctx context.Context, q database.Querier, rec *models.ChangeRecord) error {
	if r.recordErr != nil {
		return r.recordErr
	}
	if r.failAfterWrites > 0 && len(r.records) >= r.failAfterWrites {
		return errors.New("simulated insert failure")
	}
	stored := r.seed(rec)
	*rec = *stored
	return nil
}

func (r *fakeChangeRepo) GetByID(ctx context.Context, q database.Querier, id uuid.UUID) (*models.ChangeRecord, error) {
	for _, rec := range r.records {
		if rec.ID == id {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("change %s: %w", id, apperrors.ErrNotFound)
}

func (r *fakeChangeRepo) ListByMember(ctx context.Context, q database.Querier, memberID uuid.UUID, limit int) ([]*models.ChangeRecord, error) {
	var out []*models.ChangeRecord
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		if r.records[i].MemberID == memberID {
			cp := *r.records[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeChangeRepo) ListByBatch(ctx context.Context, q database.Querier, batchID uuid.UUID) ([]*models.ChangeRecord, error) {
	var out []*models.ChangeRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].GroupKey() == batchID {
			cp := *r.records[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeChangeRepo) ListRecent(ctx context.Context, q database.Querier, filter models.ChangeFilter) ([]*models.ChangeRecord, error) {
	f := filter
	r.lastFilter = &f
	var out []*models.ChangeRecord
	for i := len(r.records) - 1; i >= 0 && len(out) < filter.Limit; i-- {
		rec := r.records[i]
		if filter.MemberID != nil && rec.MemberID != *filter.MemberID {
			continue
		}
		if filter.BatchID != nil && rec.GroupKey() != *filter.BatchID {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeChangeRepo) LatestWithSnapshot(ctx context.Context, q database.Querier, memberID uuid.UUID) (*models.ChangeRecord, error) {
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if rec.MemberID == memberID && rec.HasSnapshot() {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("no snapshot for member %s: %w", memberID, apperrors.ErrNotFound)
}

func (r *fakeChangeRepo) CountByMember(ctx context.Context, q database.Querier, memberID uuid.UUID) (int, error) {
	count := 0
	for _, rec := range r.records {
		if rec.MemberID == memberID {
			count++
		}
	}
	return count, nil
}

var _ repositories.ChangeRepository = (*fakeChangeRepo)(nil)

// Shared test fixtures.

var (
	adminActor  = models.Actor{ID: uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001"), Name: "Noura", Roles: []string{models.RoleAdmin}}
	editorActor = models.Actor{ID: uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002"), Name: "Fahad", Roles: []string{models.RoleEditor}}
	viewerActor = models.Actor{ID: uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000003"), Name: "Reem", Roles: []string{models.RoleViewer}}
)

func seedMember(store *fakeStore, city string) *models.Member {
	m := &models.Member{
		ID:        uuid.New(),
		FirstName: "Salem",
		Gender:    models.GenderMale,
		City:      city,
		Status:    models.StatusAlive,
	}
	store.members.put(m)
	return m
}

func strp(s string) *string {
	return &s
}
