package models

import "time"

// DefaultInviteTTL is how long a workspace invite stays usable after creation.
const DefaultInviteTTL = 7 * 24 * time.Hour

// WorkspaceInvite is a pending offer to join a workspace, addressed to an
// existing user and redeemable by token. Expiry is evaluated lazily at read
// time; expired rows are never swept by a background job.
type WorkspaceInvite struct {
	BaseModel

	WorkspaceID   string `gorm:"type:uuid;not null;index" json:"workspace_id"`
	InvitedBy     string `gorm:"type:uuid;not null" json:"invited_by"`
	InvitedUserID string `gorm:"type:uuid;not null;index" json:"invited_user_id"`

	Token string `gorm:"uniqueIndex;not null" json:"token"`
	Role  string `gorm:"not null;default:editor" json:"role"`

	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	IsUsed     bool       `gorm:"default:false" json:"is_used"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
}

// Expired reports whether the invite has passed its expiry at the given time.
func (i *WorkspaceInvite) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Pending reports whether the invite can still be accepted or rejected.
func (i *WorkspaceInvite) Pending(now time.Time) bool {
	return !i.IsUsed && i.AcceptedAt == nil && i.RejectedAt == nil && !i.Expired(now)
}
