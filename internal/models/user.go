package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Auth provider identifiers stored on User.AuthProvider.
const (
	AuthProviderLocal  = "local"
	AuthProviderGoogle = "google"
)

// User describes a platform account. Accounts created with email/password start
// inactive and become active once the verification code is confirmed; Google
// accounts are active immediately because the provider verifies the email.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `json:"-"` // empty for Google-only accounts

	FullName string `json:"full_name"`
	Avatar   string `json:"avatar"`

	IsActive     bool    `gorm:"default:false" json:"is_active"`
	AuthProvider string  `gorm:"default:local" json:"auth_provider"`
	GoogleID     *string `gorm:"uniqueIndex" json:"-"`

	VerificationCode          *string    `gorm:"size:6" json:"-"`
	VerificationCodeExpiresAt *time.Time `json:"-"`

	ActiveWorkspaceID *string `gorm:"type:uuid" json:"active_workspace_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// HasVerificationCode reports whether a code is present and unexpired at the given time.
func (u *User) HasVerificationCode(now time.Time) bool {
	return u.VerificationCode != nil &&
		u.VerificationCodeExpiresAt != nil &&
		now.Before(*u.VerificationCodeExpiresAt)
}
