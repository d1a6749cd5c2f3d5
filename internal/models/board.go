package models

import "time"

// Board is a drawing surface inside a workspace. LastModified tracks the most
// recent content change so workspace listings can sort boards by activity.
type Board struct {
	BaseModel

	WorkspaceID string `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Name        string `gorm:"not null" json:"name"`
	Icon        string `gorm:"default:Presentation" json:"icon"`
	BgColor     string `gorm:"default:bg-blue-500" json:"bg_color"`
	CreatedBy   string `gorm:"type:uuid;not null" json:"created_by"`

	LastModified   time.Time `json:"last_modified"`
	LastModifiedBy string    `gorm:"type:uuid" json:"last_modified_by"`

	Users    []BoardUser    `gorm:"foreignKey:BoardID;constraint:OnDelete:CASCADE" json:"-"`
	Elements []BoardElement `gorm:"foreignKey:BoardID;constraint:OnDelete:CASCADE" json:"-"`
}
