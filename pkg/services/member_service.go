package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/alshaya00/Alshaya-sub002/pkg/apperrors"
	"github.com/alshaya00/Alshaya-sub002/pkg/database"
	"github.com/alshaya00/Alshaya-sub002/pkg/models"
	"github.com/alshaya00/Alshaya-sub002/pkg/repositories"
)

// memberLabelTTL bounds staleness of cached member display labels.
const memberLabelTTL = 10 * time.Minute

func memberLabelKey(id uuid.UUID) string {
	return "member:label:" + id.String()
}

// MemberService is the tracked write path for family member records. Every
// mutation runs in one transaction together with its ledger records, so the
// ledger never disagrees with the member store.
type MemberService interface {
	// Get returns a member by ID.
	Get(ctx context.Context, id uuid.UUID) (*models.Member, error)

	// List returns members ordered by name.
	List(ctx context.Context, limit, offset int) ([]*models.Member, error)

	// Create inserts a new member and a summary CREATE ledger record.
	Create(ctx context.Context, actor models.Actor, m *models.Member) (*models.Member, error)

	// Update replaces the member's restorable fields with those of updated,
	// recording one ledger entry per changed field under a shared batch ID.
	Update(ctx context.Context, actor models.Actor, id uuid.UUID, updated *models.Member) (*models.Member, error)

	// Delete removes a member, recording a summary DELETE ledger record that
	// carries the pre-deletion snapshot.
	Delete(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) error

	// History returns the member's ledger records, newest first.
	History(ctx context.Context, id uuid.UUID, limit int) ([]*models.ChangeRecord, error)
}

type memberService struct {
	store   database.Store
	members repositories.MemberRepository
	changes repositories.ChangeRepository
	cache   *redis.Client // optional, nil disables label caching
	logger  *zap.Logger
}

// NewMemberService creates a new MemberService.
func NewMemberService(
	store database.Store,
	members repositories.MemberRepository,
	changes repositories.ChangeRepository,
	cache *redis.Client,
	logger *zap.Logger,
) MemberService {
	return &memberService{
		store:   store,
		members: members,
		changes: changes,
		cache:   cache,
		logger:  logger.Named("member-service"),
	}
}

var _ MemberService = (*memberService)(nil)

func (s *memberService) Get(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	return s.members.GetByID(ctx, s.store, id)
}

func (s *memberService) List(ctx context.Context, limit, offset int) ([]*models.Member, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.members.List(ctx, s.store, limit, offset)
}

func (s *memberService) Create(ctx context.Context, actor models.Actor, m *models.Member) (*models.Member, error) {
	if !actor.CanEdit() {
		return nil, fmt.Errorf("actor %s may not edit members: %w", actor.ID, apperrors.ErrUnauthorized)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err)
	}

	err := s.store.WithTx(ctx, func(q database.Querier) error {
		if err := s.members.Create(ctx, q, m); err != nil {
			return err
		}

		snapshot, err := m.EncodeSnapshot()
		if err != nil {
			return err
		}
		rec := &models.ChangeRecord{
			MemberID:     m.ID,
			FieldName:    models.FieldFullRestore,
			NewValue:     &snapshot,
			ChangeType:   models.ChangeTypeCreate,
			ActorID:      actor.ID,
			ActorName:    actor.Name,
			FullSnapshot: &snapshot,
		}
		return s.changes.Record(ctx, q, rec)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Member created",
		zap.String("member_id", m.ID.String()),
		zap.String("actor_id", actor.ID.String()))
	return m, nil
}

func (s *memberService) Update(ctx context.Context, actor models.Actor, id uuid.UUID, updated *models.Member) (*models.Member, error) {
	if !actor.CanEdit() {
		return nil, fmt.Errorf("actor %s may not edit members: %w", actor.ID, apperrors.ErrUnauthorized)
	}

	var result *models.Member
	var changed int
	err := s.store.WithTx(ctx, func(q database.Querier) error {
		current, err := s.members.GetByIDForUpdate(ctx, q, id)
		if err != nil {
			return err
		}

		next := *current
		for _, field := range models.RestorableFields {
			value, err := updated.FieldValue(field)
			if err != nil {
				return err
			}
			if err := next.SetField(field, value); err != nil {
				return fmt.Errorf("%w: %s", apperrors.ErrValidation, err)
			}
		}
		if err := next.Validate(); err != nil {
			return fmt.Errorf("%w: %s", apperrors.ErrValidation, err)
		}

		diffs := models.DiffFields(current, &next)
		if len(diffs) == 0 {
			result = current
			return nil
		}

		if err := s.members.Update(ctx, q, &next); err != nil {
			return err
		}

		snapshot, err := next.EncodeSnapshot()
		if err != nil {
			return err
		}

		// A single-field edit stays ungrouped; its record ID doubles as the
		// batch key.
		var batchID *uuid.UUID
		if len(diffs) > 1 {
			b := uuid.New()
			batchID = &b
		}

		for _, diff := range diffs {
			rec := &models.ChangeRecord{
				MemberID:     id,
				FieldName:    diff.Field,
				OldValue:     diff.Old,
				NewValue:     diff.New,
				ChangeType:   models.ChangeTypeUpdate,
				ActorID:      actor.ID,
				ActorName:    actor.Name,
				BatchID:      batchID,
				FullSnapshot: &snapshot,
			}
			if err := s.changes.Record(ctx, q, rec); err != nil {
				return err
			}
		}

		changed = len(diffs)
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed > 0 {
		s.invalidateLabel(ctx, id)
		s.logger.Info("Member updated",
			zap.String("member_id", id.String()),
			zap.String("actor_id", actor.ID.String()),
			zap.Int("changed_fields", changed))
	}
	return result, nil
}

func (s *memberService) Delete(ctx context.Context, actor models.Actor, id uuid.UUID, reason string) error {
	if !actor.CanEdit() {
		return fmt.Errorf("actor %s may not edit members: %w", actor.ID, apperrors.ErrUnauthorized)
	}

	err := s.store.WithTx(ctx, func(q database.Querier) error {
		current, err := s.members.GetByIDForUpdate(ctx, q, id)
		if err != nil {
			return err
		}

		snapshot, err := current.EncodeSnapshot()
		if err != nil {
			return err
		}

		if err := s.members.Delete(ctx, q, id); err != nil {
			return err
		}

		rec := &models.ChangeRecord{
			MemberID:     id,
			FieldName:    models.FieldFullRestore,
			OldValue:     &snapshot,
			ChangeType:   models.ChangeTypeDelete,
			ActorID:      actor.ID,
			ActorName:    actor.Name,
			FullSnapshot: &snapshot,
		}
		if reason != "" {
			rec.Reason = &reason
		}
		return s.changes.Record(ctx, q, rec)
	})
	if err != nil {
		return err
	}

	s.invalidateLabel(ctx, id)
	s.logger.Info("Member deleted",
		zap.String("member_id", id.String()),
		zap.String("actor_id", actor.ID.String()))
	return nil
}

func (s *memberService) History(ctx context.Context, id uuid.UUID, limit int) ([]*models.ChangeRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.changes.ListByMember(ctx, s.store, id, limit)
}

// invalidateLabel drops the cached display label after a mutation. Best
// effort: a stale label only affects candidate presentation.
func (s *memberService) invalidateLabel(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, memberLabelKey(id)).Err(); err != nil {
		s.logger.Debug("Failed to invalidate member label cache", zap.Error(err))
	}
}
