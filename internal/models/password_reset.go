package models

import "time"

// PasswordReset is a single-use 6-digit reset code for a local account. Used
// and expired rows are kept; validity is checked at redemption time.
type PasswordReset struct {
	BaseModel

	UserID    string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Code      string     `gorm:"size:6;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
}

// Valid reports whether the code can still be redeemed at the given time.
func (p *PasswordReset) Valid(now time.Time) bool {
	return p.UsedAt == nil && now.Before(p.ExpiresAt)
}
