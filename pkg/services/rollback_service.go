package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alshaya00/Alshaya-sub002/pkg/apperrors"
	"github.com/alshaya00/Alshaya-sub002/pkg/database"
	"github.com/alshaya00/Alshaya-sub002/pkg/models"
	"github.com/alshaya00/Alshaya-sub002/pkg/repositories"
)

// RollbackType selects which reversal strategy a rollback request uses.
type RollbackType string

const (
	RollbackSingleChange RollbackType = "SINGLE_CHANGE"
	RollbackBatch        RollbackType = "BATCH"
	RollbackFullSnapshot RollbackType = "FULL_SNAPSHOT"
)

// RollbackRequest identifies what to reverse. Exactly one identifier is
// required depending on Type: ChangeID for SINGLE_CHANGE, BatchID for BATCH,
// ChangeID or MemberID for FULL_SNAPSHOT.
type RollbackRequest struct {
	Type     RollbackType
	ChangeID *uuid.UUID
	BatchID  *uuid.UUID
	MemberID *uuid.UUID
}

// RollbackResult reports a completed rollback. RollbackBatchID groups the
// RESTORE ledger records the rollback produced; the restoration itself can be
// inspected or rolled back through it.
type RollbackResult struct {
	RollbackBatchID uuid.UUID `json:"rollbackBatchId"`
	RolledBackCount int       `json:"rolledBackCount"`
	SkippedCount    int       `json:"skippedCount"`
}

// RollbackService reverses ledger records against the live member store.
// History is never deleted: every rollback appends RESTORE records, so the
// audit trail grows monotonically.
type RollbackService interface {
	Rollback(ctx context.Context, actor models.Actor, req RollbackRequest) (*RollbackResult, error)
}

type rollbackService struct {
	store   database.Store
	members repositories.MemberRepository
	changes repositories.ChangeRepository
	logger  *zap.Logger
}

// NewRollbackService creates a new RollbackService.
func NewRollbackService(
	store database.Store,
	members repositories.MemberRepository,
	changes repositories.ChangeRepository,
	logger *zap.Logger,
) RollbackService {
	return &rollbackService{
		store:   store,
		members: members,
		changes: changes,
		logger:  logger.Named("rollback-service"),
	}
}

var _ RollbackService = (*rollbackService)(nil)

// Rollback validates the request, then applies the selected strategy inside
// one transaction. Authorization is checked before anything else; validation
// before any read; NotFound and snapshot errors surface after reads but
// before any write reaches the database.
func (s *rollbackService) Rollback(ctx context.Context, actor models.Actor, req RollbackRequest) (*RollbackResult, error) {
	if !actor.IsElevated() {
		return nil, fmt.Errorf("actor %s lacks rollback privileges: %w", actor.ID, apperrors.ErrUnauthorized)
	}
	if err := validateRollbackRequest(req); err != nil {
		return nil, err
	}

	result := &RollbackResult{RollbackBatchID: uuid.New()}

	err := s.store.WithTx(ctx, func(q database.Querier) error {
		switch req.Type {
		case RollbackSingleChange:
			return s.rollbackSingleChange(ctx, q, actor, *req.ChangeID, result)
		case RollbackBatch:
			return s.rollbackBatch(ctx, q, actor, *req.BatchID, result)
		case RollbackFullSnapshot:
			return s.rollbackFullSnapshot(ctx, q, actor, req, result)
		default:
			return fmt.Errorf("unrecognized rollback type %q: %w", req.Type, apperrors.ErrValidation)
		}
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Rollback completed",
		zap.String("type", string(req.Type)),
		zap.String("rollback_batch_id", result.RollbackBatchID.String()),
		zap.String("actor_id", actor.ID.String()),
		zap.Int("rolled_back", result.RolledBackCount),
		zap.Int("skipped", result.SkippedCount))
	return result, nil
}

func validateRollbackRequest(req RollbackRequest) error {
	switch req.Type {
	case RollbackSingleChange:
		if req.ChangeID == nil {
			return fmt.Errorf("changeId is required for SINGLE_CHANGE: %w", apperrors.ErrValidation)
		}
	case RollbackBatch:
		if req.BatchID == nil {
			return fmt.Errorf("batchId is required for BATCH: %w", apperrors.ErrValidation)
		}
	case RollbackFullSnapshot:
		if req.ChangeID == nil && req.MemberID == nil {
			return fmt.Errorf("changeId or entityId is required for FULL_SNAPSHOT: %w", apperrors.ErrValidation)
		}
	default:
		return fmt.Errorf("unrecognized rollback type %q: %w", req.Type, apperrors.ErrValidation)
	}
	return nil
}

// rollbackSingleChange reverses one field-level ledger record: the field is
// written back to the record's old value, and a RESTORE record documents the
// reversal with the live value it displaced.
func (s *rollbackService) rollbackSingleChange(ctx context.Context, q database.Querier, actor models.Actor, changeID uuid.UUID, result *RollbackResult) error {
	rec, err := s.changes.GetByID(ctx, q, changeID)
	if err != nil {
		return err
	}
	if rec.FieldName == models.FieldFullRestore {
		return fmt.Errorf("change %s is a whole-entity record, use FULL_SNAPSHOT: %w", changeID, apperrors.ErrValidation)
	}

	member, err := s.members.GetByIDForUpdate(ctx, q, rec.MemberID)
	if err != nil {
		return err
	}

	if err := s.restoreField(ctx, q, actor, member, rec, fmt.Sprintf("Rollback of change %s", rec.ID), result.RollbackBatchID); err != nil {
		return err
	}

	result.RolledBackCount = 1
	return nil
}

// rollbackBatch reverses every record sharing a batch key, newest first.
// Newest-first order is what makes repeated changes to the same field inside
// one batch unwind to the oldest recorded value. Records whose member no
// longer exists are skipped and counted, not failed.
func (s *rollbackService) rollbackBatch(ctx context.Context, q database.Querier, actor models.Actor, batchID uuid.UUID, result *RollbackResult) error {
	records, err := s.changes.ListByBatch(ctx, q, batchID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("batch %s: %w", batchID, apperrors.ErrNotFound)
	}

	for _, rec := range records {
		if rec.FieldName == models.FieldFullRestore {
			// Whole-entity records have no single field to reverse.
			result.SkippedCount++
			continue
		}

		member, err := s.members.GetByIDForUpdate(ctx, q, rec.MemberID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				s.logger.Warn("Skipping change for missing member",
					zap.String("change_id", rec.ID.String()),
					zap.String("member_id", rec.MemberID.String()))
				result.SkippedCount++
				continue
			}
			return err
		}

		reason := fmt.Sprintf("Rollback of batch %s, change %s", batchID, rec.ID)
		if err := s.restoreField(ctx, q, actor, member, rec, reason, result.RollbackBatchID); err != nil {
			return err
		}
		result.RolledBackCount++
	}
	return nil
}

// restoreField writes rec.OldValue back into the member and appends the
// RESTORE ledger record. The RESTORE's old value is the live value
// immediately before this restoration, keeping the ledger an event log
// rather than a correction log.
func (s *rollbackService) restoreField(ctx context.Context, q database.Querier, actor models.Actor, member *models.Member, rec *models.ChangeRecord, reason string, rollbackBatchID uuid.UUID) error {
	currentValue, err := member.FieldValue(rec.FieldName)
	if err != nil {
		return fmt.Errorf("change %s: %v: %w", rec.ID, err, apperrors.ErrValidation)
	}

	if err := member.SetField(rec.FieldName, rec.OldValue); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrValidation, err)
	}
	if err := s.members.Update(ctx, q, member); err != nil {
		return err
	}

	snapshot, err := member.EncodeSnapshot()
	if err != nil {
		return err
	}

	restore := &models.ChangeRecord{
		MemberID:     member.ID,
		FieldName:    rec.FieldName,
		OldValue:     currentValue,
		NewValue:     rec.OldValue,
		ChangeType:   models.ChangeTypeRestore,
		ActorID:      actor.ID,
		ActorName:    actor.Name,
		BatchID:      &rollbackBatchID,
		FullSnapshot: &snapshot,
		Reason:       &reason,
	}
	return s.changes.Record(ctx, q, restore)
}

// rollbackFullSnapshot restores a member's whole restorable state from a
// stored snapshot: the one on the named change, or the member's most recent
// snapshot-bearing record.
func (s *rollbackService) rollbackFullSnapshot(ctx context.Context, q database.Querier, actor models.Actor, req RollbackRequest, result *RollbackResult) error {
	var rec *models.ChangeRecord
	var err error
	if req.ChangeID != nil {
		rec, err = s.changes.GetByID(ctx, q, *req.ChangeID)
	} else {
		rec, err = s.changes.LatestWithSnapshot(ctx, q, *req.MemberID)
	}
	if err != nil {
		return err
	}

	if !rec.HasSnapshot() {
		return fmt.Errorf("change %s carries no snapshot: %w", rec.ID, apperrors.ErrInvalidSnapshot)
	}
	snap, err := rec.DecodeSnapshot()
	if err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidSnapshot, err)
	}

	member, err := s.members.GetByIDForUpdate(ctx, q, rec.MemberID)
	if err != nil {
		return err
	}

	before, err := member.EncodeSnapshot()
	if err != nil {
		return err
	}

	applied, err := member.ApplySnapshot(snap)
	if err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidSnapshot, err)
	}
	if err := member.Validate(); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidSnapshot, err)
	}
	if err := s.members.Update(ctx, q, member); err != nil {
		return err
	}

	appliedJSON, err := models.EncodeValues(applied)
	if err != nil {
		return err
	}
	after, err := member.EncodeSnapshot()
	if err != nil {
		return err
	}

	reason := fmt.Sprintf("Full restore from snapshot taken at %s", rec.CreatedAt.UTC().Format(time.RFC3339))
	restore := &models.ChangeRecord{
		MemberID:     member.ID,
		FieldName:    models.FieldFullRestore,
		OldValue:     &before,
		NewValue:     &appliedJSON,
		ChangeType:   models.ChangeTypeRestore,
		ActorID:      actor.ID,
		ActorName:    actor.Name,
		BatchID:      &result.RollbackBatchID,
		FullSnapshot: &after,
		Reason:       &reason,
	}
	if err := s.changes.Record(ctx, q, restore); err != nil {
		return err
	}

	result.RolledBackCount = len(applied)
	return nil
}
