package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Restorable field names. The ledger stores values for exactly these fields;
// snapshot restoration applies nothing outside this set.
const (
	FieldFirstName       = "first_name"
	FieldFatherName      = "father_name"
	FieldGrandfatherName = "grandfather_name"
	FieldParentID        = "parent_id"
	FieldGender          = "gender"
	FieldBirthDate       = "birth_date"
	FieldDeathDate       = "death_date"
	FieldCity            = "city"
	FieldPhone           = "phone"
	FieldEmail           = "email"
	FieldStatus          = "status"
	FieldPhotoURL        = "photo_url"
)

// RestorableFields is the fixed allowlist of fields the ledger tracks.
// Order here defines diff and snapshot-application order.
var RestorableFields = []string{
	FieldFirstName,
	FieldFatherName,
	FieldGrandfatherName,
	FieldParentID,
	FieldGender,
	FieldBirthDate,
	FieldDeathDate,
	FieldCity,
	FieldPhone,
	FieldEmail,
	FieldStatus,
	FieldPhotoURL,
}

// Gender values.
const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Member status values.
const (
	StatusAlive    = "alive"
	StatusDeceased = "deceased"
)

// dateLayout is the serialization format for date-valued ledger entries.
const dateLayout = "2006-01-02"

// Member is a family member record. Stored in registry_members table.
type Member struct {
	ID              uuid.UUID  `json:"id"`
	FirstName       string     `json:"firstName"`
	FatherName      string     `json:"fatherName"`
	GrandfatherName string     `json:"grandfatherName"`
	ParentID        *uuid.UUID `json:"parentId,omitempty"`
	Gender          string     `json:"gender"`
	BirthDate       *time.Time `json:"birthDate,omitempty"`
	DeathDate       *time.Time `json:"deathDate,omitempty"`
	City            string     `json:"city"`
	Phone           string     `json:"phone"`
	Email           string     `json:"email"`
	Status          string     `json:"status"`
	PhotoURL        string     `json:"photoUrl"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Validate checks the fields a tracked write path requires.
func (m *Member) Validate() error {
	if strings.TrimSpace(m.FirstName) == "" {
		return fmt.Errorf("first name is required")
	}
	if m.Gender != GenderMale && m.Gender != GenderFemale {
		return fmt.Errorf("unknown gender %q", m.Gender)
	}
	if m.Status != StatusAlive && m.Status != StatusDeceased {
		return fmt.Errorf("unknown status %q", m.Status)
	}
	return nil
}

// Label is the member's display name used in rollback candidate listings.
func (m *Member) Label() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{m.FirstName, m.FatherName, m.GrandfatherName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// FieldValue returns the serialized value of a restorable field. The ledger
// is type-erased: every field value is carried as a string, nil for null.
func (m *Member) FieldValue(field string) (*string, error) {
	switch field {
	case FieldFirstName:
		return strPtr(m.FirstName), nil
	case FieldFatherName:
		return strPtr(m.FatherName), nil
	case FieldGrandfatherName:
		return strPtr(m.GrandfatherName), nil
	case FieldParentID:
		if m.ParentID == nil {
			return nil, nil
		}
		return strPtr(m.ParentID.String()), nil
	case FieldGender:
		return strPtr(m.Gender), nil
	case FieldBirthDate:
		return dateValue(m.BirthDate), nil
	case FieldDeathDate:
		return dateValue(m.DeathDate), nil
	case FieldCity:
		return strPtr(m.City), nil
	case FieldPhone:
		return strPtr(m.Phone), nil
	case FieldEmail:
		return strPtr(m.Email), nil
	case FieldStatus:
		return strPtr(m.Status), nil
	case FieldPhotoURL:
		return strPtr(m.PhotoURL), nil
	default:
		return nil, fmt.Errorf("unknown restorable field %q", field)
	}
}

// SetField writes a serialized value back into a restorable field, reversing
// FieldValue. A nil value clears nullable fields and empties string fields.
func (m *Member) SetField(field string, value *string) error {
	switch field {
	case FieldFirstName:
		m.FirstName = strValue(value)
	case FieldFatherName:
		m.FatherName = strValue(value)
	case FieldGrandfatherName:
		m.GrandfatherName = strValue(value)
	case FieldParentID:
		if value == nil {
			m.ParentID = nil
			return nil
		}
		id, err := uuid.Parse(*value)
		if err != nil {
			return fmt.Errorf("invalid parent_id value %q: %w", *value, err)
		}
		m.ParentID = &id
	case FieldGender:
		m.Gender = strValue(value)
	case FieldBirthDate:
		t, err := parseDate(field, value)
		if err != nil {
			return err
		}
		m.BirthDate = t
	case FieldDeathDate:
		t, err := parseDate(field, value)
		if err != nil {
			return err
		}
		m.DeathDate = t
	case FieldCity:
		m.City = strValue(value)
	case FieldPhone:
		m.Phone = strValue(value)
	case FieldEmail:
		m.Email = strValue(value)
	case FieldStatus:
		m.Status = strValue(value)
	case FieldPhotoURL:
		m.PhotoURL = strValue(value)
	default:
		return fmt.Errorf("unknown restorable field %q", field)
	}
	return nil
}

// Snapshot captures the member's full restorable state as a field->value map.
func (m *Member) Snapshot() map[string]*string {
	snap := make(map[string]*string, len(RestorableFields))
	for _, field := range RestorableFields {
		v, _ := m.FieldValue(field)
		snap[field] = v
	}
	return snap
}

// EncodeSnapshot serializes the member's restorable state to JSON.
func (m *Member) EncodeSnapshot() (string, error) {
	data, err := json.Marshal(m.Snapshot())
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return string(data), nil
}

// EncodeValues serializes a field->value map the way snapshots are stored.
func EncodeValues(values map[string]*string) (string, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode field values: %w", err)
	}
	return string(data), nil
}

// ApplySnapshot writes the allowlisted fields present in snap back into the
// member. Keys outside RestorableFields are ignored, so stale snapshots from
// older schemas cannot introduce unknown fields. Returns the fields that were
// applied (including ones whose value did not change).
func (m *Member) ApplySnapshot(snap map[string]*string) (map[string]*string, error) {
	applied := make(map[string]*string)
	for _, field := range RestorableFields {
		value, present := snap[field]
		if !present {
			continue
		}
		if err := m.SetField(field, value); err != nil {
			return nil, err
		}
		applied[field] = value
	}
	return applied, nil
}

// FieldDiff is one field-level difference between two member states.
type FieldDiff struct {
	Field string
	Old   *string
	New   *string
}

// DiffFields computes the field-level differences between two member states,
// in RestorableFields order.
func DiffFields(old, updated *Member) []FieldDiff {
	var diffs []FieldDiff
	for _, field := range RestorableFields {
		oldVal, _ := old.FieldValue(field)
		newVal, _ := updated.FieldValue(field)
		if !equalValue(oldVal, newVal) {
			diffs = append(diffs, FieldDiff{Field: field, Old: oldVal, New: newVal})
		}
	}
	return diffs
}

func equalValue(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtr(s string) *string {
	return &s
}

func strValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func dateValue(t *time.Time) *string {
	if t == nil {
		return nil
	}
	return strPtr(t.Format(dateLayout))
}

func parseDate(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", field, *value, err)
	}
	return &t, nil
}
