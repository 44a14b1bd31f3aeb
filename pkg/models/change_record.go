package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Change types recorded in the ledger.
const (
	ChangeTypeCreate  = "CREATE"
	ChangeTypeUpdate  = "UPDATE"
	ChangeTypeDelete  = "DELETE"
	ChangeTypeRestore = "RESTORE"
)

// FieldFullRestore is the sentinel field name for whole-entity ledger
// records: member creation, deletion, and full snapshot restoration.
const FieldFullRestore = "FULL_RESTORE"

// ChangeRecord is one append-only ledger entry documenting a field-level
// mutation to a member. Stored in registry_change_log table. Records are
// written exactly once, inside the same transaction as the mutation they
// document, and never updated or deleted afterwards.
type ChangeRecord struct {
	ID         uuid.UUID `json:"id"`
	Seq        int64     `json:"-"` // insertion order, tie-breaker for CreatedAt
	MemberID   uuid.UUID `json:"entityId"`
	FieldName  string    `json:"fieldName"`
	OldValue   *string   `json:"oldValue"`
	NewValue   *string   `json:"newValue"`
	ChangeType string    `json:"changeType"`
	ActorID    uuid.UUID `json:"actorId"`
	ActorName  string    `json:"actorName"`

	// BatchID correlates records created by one logical operation. It is a
	// grouping key, not a reference to a batch entity; nil for single-record
	// operations (the record's own ID serves as the group key).
	BatchID *uuid.UUID `json:"batchId,omitempty"`

	// FullSnapshot is the serialized restorable state of the member after
	// the mutation that produced this record (before it, for deletions).
	FullSnapshot *string `json:"-"`

	// Reason is a free-text annotation; restorations always carry one.
	Reason *string `json:"reason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// GroupKey returns the batch correlation key: the batch ID when the record
// was part of a multi-field operation, the record's own ID otherwise.
func (c *ChangeRecord) GroupKey() uuid.UUID {
	if c.BatchID != nil {
		return *c.BatchID
	}
	return c.ID
}

// HasSnapshot reports whether this record carries a full entity snapshot.
func (c *ChangeRecord) HasSnapshot() bool {
	return c.FullSnapshot != nil && *c.FullSnapshot != ""
}

// DecodeSnapshot parses the record's full snapshot.
func (c *ChangeRecord) DecodeSnapshot() (map[string]*string, error) {
	if !c.HasSnapshot() {
		return nil, fmt.Errorf("change record %s has no snapshot", c.ID)
	}
	var snap map[string]*string
	if err := json.Unmarshal([]byte(*c.FullSnapshot), &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot of change %s: %w", c.ID, err)
	}
	return snap, nil
}

// GroupIntoBatches groups ledger records by batch correlation key. It is a
// pure function of its input: record order within each group is preserved
// from the input slice.
func GroupIntoBatches(records []*ChangeRecord) map[uuid.UUID][]*ChangeRecord {
	groups := make(map[uuid.UUID][]*ChangeRecord)
	for _, rec := range records {
		key := rec.GroupKey()
		groups[key] = append(groups[key], rec)
	}
	return groups
}

// ChangeBatch is one logical edit presented as a rollback candidate: all
// records sharing a batch key, plus presentation metadata.
type ChangeBatch struct {
	BatchID     uuid.UUID       `json:"batchId"`
	ChangedAt   time.Time       `json:"changedAt"`
	ChangedBy   string          `json:"changedBy"`
	MemberID    uuid.UUID       `json:"entityId"`
	MemberLabel string          `json:"entityLabel"`
	ChangeCount int             `json:"changeCount"`
	Changes     []*ChangeRecord `json:"changes"`
}

// RollbackCandidates is the candidate discovery result: the raw recent
// records plus their batch groupings.
type RollbackCandidates struct {
	Changes []*ChangeRecord `json:"changes"`
	Batches []*ChangeBatch  `json:"batches"`
}

// ChangeFilter narrows ledger queries for candidate discovery.
type ChangeFilter struct {
	MemberID *uuid.UUID
	BatchID  *uuid.UUID
	Limit    int
}
