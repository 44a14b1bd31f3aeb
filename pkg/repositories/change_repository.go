package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/alshaya00/Alshaya-sub002/pkg/apperrors"
	"github.com/alshaya00/Alshaya-sub002/pkg/database"
	"github.com/alshaya00/Alshaya-sub002/pkg/models"
)

// ChangeRepository provides data access for the append-only change ledger.
// Writes go through Record only; nothing here updates or deletes ledger rows.
type ChangeRepository interface {
	// Record inserts a new ledger entry. It runs against the caller's
	// Querier, so a transaction passed in covers both the entity mutation
	// and its ledger rows.
	Record(ctx context.Context, q database.Querier, rec *models.ChangeRecord) error

	// GetByID returns a single ledger entry.
	GetByID(ctx context.Context, q database.Querier, id uuid.UUID) (*models.ChangeRecord, error)

	// ListByMember returns ledger entries for one member, newest first.
	ListByMember(ctx context.Context, q database.Querier, memberID uuid.UUID, limit int) ([]*models.ChangeRecord, error)

	// ListByBatch returns all entries sharing a batch correlation key,
	// newest first. A record that was never part of a multi-record batch is
	// addressed by its own ID.
	ListByBatch(ctx context.Context, q database.Querier, batchID uuid.UUID) ([]*models.ChangeRecord, error)

	// ListRecent returns recent ledger entries matching the filter, newest first.
	ListRecent(ctx context.Context, q database.Querier, filter models.ChangeFilter) ([]*models.ChangeRecord, error)

	// LatestWithSnapshot returns the most recent entry for a member that
	// carries a full snapshot.
	LatestWithSnapshot(ctx context.Context, q database.Querier, memberID uuid.UUID) (*models.ChangeRecord, error)

	// CountByMember returns the total number of ledger entries for a member.
	CountByMember(ctx context.Context, q database.Querier, memberID uuid.UUID) (int, error)
}

type changeRepository struct{}

// NewChangeRepository creates a new ChangeRepository.
func NewChangeRepository() ChangeRepository {
	return &changeRepository{}
}

var _ ChangeRepository = (*changeRepository)(nil)

const changeColumns = `id, seq, member_id, field_name, old_value, new_value, change_type, actor_id, actor_name, batch_id, full_snapshot, reason, created_at`

func (r *changeRepository) Record(ctx context.Context, q database.Querier, rec *models.ChangeRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO registry_change_log (
			id, member_id, field_name, old_value, new_value, change_type,
			actor_id, actor_name, batch_id, full_snapshot, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING seq`

	err := q.QueryRow(ctx, query,
		rec.ID,
		rec.MemberID,
		rec.FieldName,
		rec.OldValue,
		rec.NewValue,
		rec.ChangeType,
		rec.ActorID,
		rec.ActorName,
		rec.BatchID,
		rec.FullSnapshot,
		rec.Reason,
		rec.CreatedAt,
	).Scan(&rec.Seq)
	if err != nil {
		return fmt.Errorf("failed to record change: %w", err)
	}

	return nil
}

func (r *changeRepository) GetByID(ctx context.Context, q database.Querier, id uuid.UUID) (*models.ChangeRecord, error) {
	query := `
		SELECT ` + changeColumns + `
		FROM registry_change_log
		WHERE id = $1`

	rec, err := scanChangeRecord(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("change %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return rec, nil
}

func (r *changeRepository) ListByMember(ctx context.Context, q database.Querier, memberID uuid.UUID, limit int) ([]*models.ChangeRecord, error) {
	query := `
		SELECT ` + changeColumns + `
		FROM registry_change_log
		WHERE member_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`

	rows, err := q.Query(ctx, query, memberID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query change log by member: %w", err)
	}
	defer rows.Close()

	return collectChangeRecords(rows)
}

func (r *changeRepository) ListByBatch(ctx context.Context, q database.Querier, batchID uuid.UUID) ([]*models.ChangeRecord, error) {
	// COALESCE mirrors the grouping key: a record without a batch ID is its
	// own singleton batch.
	query := `
		SELECT ` + changeColumns + `
		FROM registry_change_log
		WHERE COALESCE(batch_id, id) = $1
		ORDER BY created_at DESC, seq DESC`

	rows, err := q.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query change log by batch: %w", err)
	}
	defer rows.Close()

	return collectChangeRecords(rows)
}

func (r *changeRepository) ListRecent(ctx context.Context, q database.Querier, filter models.ChangeFilter) ([]*models.ChangeRecord, error) {
	query := `
		SELECT ` + changeColumns + `
		FROM registry_change_log
		WHERE ($1::uuid IS NULL OR member_id = $1)
		  AND ($2::uuid IS NULL OR COALESCE(batch_id, id) = $2)
		ORDER BY created_at DESC, seq DESC
		LIMIT $3`

	rows, err := q.Query(ctx, query, filter.MemberID, filter.BatchID, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent changes: %w", err)
	}
	defer rows.Close()

	return collectChangeRecords(rows)
}

func (r *changeRepository) LatestWithSnapshot(ctx context.Context, q database.Querier, memberID uuid.UUID) (*models.ChangeRecord, error) {
	query := `
		SELECT ` + changeColumns + `
		FROM registry_change_log
		WHERE member_id = $1 AND full_snapshot IS NOT NULL
		ORDER BY created_at DESC, seq DESC
		LIMIT 1`

	rec, err := scanChangeRecord(q.QueryRow(ctx, query, memberID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("no snapshot for member %s: %w", memberID, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return rec, nil
}

func (r *changeRepository) CountByMember(ctx context.Context, q database.Querier, memberID uuid.UUID) (int, error) {
	var count int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM registry_change_log WHERE member_id = $1`, memberID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count changes: %w", err)
	}
	return count, nil
}

func scanChangeRecord(row pgx.Row) (*models.ChangeRecord, error) {
	var rec models.ChangeRecord
	err := row.Scan(
		&rec.ID,
		&rec.Seq,
		&rec.MemberID,
		&rec.FieldName,
		&rec.OldValue,
		&rec.NewValue,
		&rec.ChangeType,
		&rec.ActorID,
		&rec.ActorName,
		&rec.BatchID,
		&rec.FullSnapshot,
		&rec.Reason,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan change record: %w", err)
	}
	return &rec, nil
}

func collectChangeRecords(rows pgx.Rows) ([]*models.ChangeRecord, error) {
	var records []*models.ChangeRecord
	for rows.Next() {
		rec, err := scanChangeRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating change records: %w", err)
	}
	return records, nil
}
