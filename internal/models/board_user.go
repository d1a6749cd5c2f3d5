package models

import "time"

// BoardUser holds per-user board state: favourite flag, presence flag and the
// last time the user opened the board. Rows are created on demand when a user
// first touches any of those.
type BoardUser struct {
	BaseModel

	BoardID string `gorm:"type:uuid;not null;uniqueIndex:idx_board_users_board_user" json:"board_id"`
	UserID  string `gorm:"type:uuid;not null;uniqueIndex:idx_board_users_board_user;index" json:"user_id"`

	IsFavourite bool       `gorm:"default:false" json:"is_favourite"`
	IsOnline    bool       `gorm:"default:false" json:"is_online"`
	LastOpened  *time.Time `json:"last_opened,omitempty"`
}
