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

// MemberRepository provides data access for family member records.
type MemberRepository interface {
	// GetByID returns a member by ID.
	GetByID(ctx context.Context, q database.Querier, id uuid.UUID) (*models.Member, error)

	// GetByIDForUpdate returns a member with a row lock held for the rest of
	// the surrounding transaction. Every tracked mutation and rollback reads
	// through this, making the transaction the per-member critical section.
	GetByIDForUpdate(ctx context.Context, q database.Querier, id uuid.UUID) (*models.Member, error)

	// List returns members ordered by name.
	List(ctx context.Context, q database.Querier, limit, offset int) ([]*models.Member, error)

	// Create inserts a new member.
	Create(ctx context.Context, q database.Querier, m *models.Member) error

	// Update writes the full member row.
	Update(ctx context.Context, q database.Querier, m *models.Member) error

	// Delete removes a member row.
	Delete(ctx context.Context, q database.Querier, id uuid.UUID) error
}

type memberRepository struct{}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository() MemberRepository {
	return &memberRepository{}
}

var _ MemberRepository = (*memberRepository)(nil)

const memberColumns = `id, first_name, father_name, grandfather_name, parent_id, gender,
		birth_date, death_date, city, phone, email, status, photo_url, created_at, updated_at`

func (r *memberRepository) GetByID(ctx context.Context, q database.Querier, id uuid.UUID) (*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM registry_members
		WHERE id = $1`

	return r.getOne(ctx, q, query, id)
}

func (r *memberRepository) GetByIDForUpdate(ctx context.Context, q database.Querier, id uuid.UUID) (*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM registry_members
		WHERE id = $1
		FOR UPDATE`

	return r.getOne(ctx, q, query, id)
}

func (r *memberRepository) getOne(ctx context.Context, q database.Querier, query string, id uuid.UUID) (*models.Member, error) {
	m, err := scanMember(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("member %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return m, nil
}

func (r *memberRepository) List(ctx context.Context, q database.Querier, limit, offset int) ([]*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM registry_members
		ORDER BY first_name, father_name, grandfather_name
		LIMIT $1 OFFSET $2`

	rows, err := q.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}
	return members, nil
}

func (r *memberRepository) Create(ctx context.Context, q database.Querier, m *models.Member) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	query := `
		INSERT INTO registry_members (
			id, first_name, father_name, grandfather_name, parent_id, gender,
			birth_date, death_date, city, phone, email, status, photo_url,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := q.Exec(ctx, query,
		m.ID, m.FirstName, m.FatherName, m.GrandfatherName, m.ParentID, m.Gender,
		m.BirthDate, m.DeathDate, m.City, m.Phone, m.Email, m.Status, m.PhotoURL,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}
	return nil
}

func (r *memberRepository) Update(ctx context.Context, q database.Querier, m *models.Member) error {
	m.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE registry_members SET
			first_name = $2, father_name = $3, grandfather_name = $4,
			parent_id = $5, gender = $6, birth_date = $7, death_date = $8,
			city = $9, phone = $10, email = $11, status = $12, photo_url = $13,
			updated_at = $14
		WHERE id = $1`

	tag, err := q.Exec(ctx, query,
		m.ID, m.FirstName, m.FatherName, m.GrandfatherName,
		m.ParentID, m.Gender, m.BirthDate, m.DeathDate,
		m.City, m.Phone, m.Email, m.Status, m.PhotoURL,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %s: %w", m.ID, apperrors.ErrNotFound)
	}
	return nil
}

func (r *memberRepository) Delete(ctx context.Context, q database.Querier, id uuid.UUID) error {
	tag, err := q.Exec(ctx, `DELETE FROM registry_members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("member %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

func scanMember(row pgx.Row) (*models.Member, error) {
	var m models.Member
	err := row.Scan(
		&m.ID,
		&m.FirstName,
		&m.FatherName,
		&m.GrandfatherName,
		&m.ParentID,
		&m.Gender,
		&m.BirthDate,
		&m.DeathDate,
		&m.City,
		&m.Phone,
		&m.Email,
		&m.Status,
		&m.PhotoURL,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan member: %w", err)
	}
	return &m, nil
}
