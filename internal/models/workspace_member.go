package models

import "time"

// Workspace roles as stored in the role column. The creator's effective role is
// always RoleOwner regardless of the stored value; use EffectiveRole when
// surfacing roles to clients.
const (
	RoleOwner  = "owner"
	RoleEditor = "editor"
	RoleViewer = "viewer"
	RoleMember = "member"
)

// ValidMemberRole reports whether the role can be assigned to a non-creator member.
func ValidMemberRole(role string) bool {
	switch role {
	case RoleEditor, RoleViewer, RoleMember:
		return true
	}
	return false
}

// WorkspaceMember joins a user to a workspace. The unique index on
// (workspace_id, user_id) is the storage-level guard against duplicate
// memberships racing past the application-level checks.
type WorkspaceMember struct {
	BaseModel

	WorkspaceID string `gorm:"type:uuid;not null;uniqueIndex:idx_workspace_members_workspace_user" json:"workspace_id"`
	UserID      string `gorm:"type:uuid;not null;uniqueIndex:idx_workspace_members_workspace_user;index" json:"user_id"`

	Role        string    `gorm:"not null;default:member" json:"role"`
	IsFavourite bool      `gorm:"default:false" json:"is_favourite"`
	JoinedAt    time.Time `json:"joined_at"`
}

// EffectiveRole derives the role surfaced to clients: owner when the user
// created the workspace, the stored role otherwise.
func EffectiveRole(workspace *Workspace, userID, storedRole string) string {
	if workspace != nil && workspace.CreatedBy == userID {
		return RoleOwner
	}
	return storedRole
}
