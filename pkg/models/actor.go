package models

import "github.com/google/uuid"

// Operator roles as issued by the auth server.
const (
	RoleViewer     = "viewer"
	RoleEditor     = "editor"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// elevatedRoles are the roles allowed to perform rollbacks.
var elevatedRoles = map[string]struct{}{
	RoleAdmin:      {},
	RoleSuperAdmin: {},
}

// Actor is the authenticated operator performing a mutation or rollback.
// Authentication itself is handled by the external auth server; this is the
// resolved identity the ledger attributes changes to.
type Actor struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Roles []string  `json:"roles"`
}

// IsElevated reports whether the actor holds a role permitted to roll back
// changes.
func (a Actor) IsElevated() bool {
	for _, role := range a.Roles {
		if _, ok := elevatedRoles[role]; ok {
			return true
		}
	}
	return false
}

// CanEdit reports whether the actor may mutate member records.
func (a Actor) CanEdit() bool {
	if a.IsElevated() {
		return true
	}
	for _, role := range a.Roles {
		if role == RoleEditor {
			return true
		}
	}
	return false
}
