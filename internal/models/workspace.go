package models

// Workspace is a named collaboration container. The creator is the owner; it
// cannot be transferred. Deleting a workspace cascades to members, boards and
// invites.
type Workspace struct {
	BaseModel

	Name    string `gorm:"not null" json:"name"`
	Icon    string `gorm:"default:Home" json:"icon"`
	BgColor string `gorm:"default:bg-green-500" json:"bg_color"`

	CreatedBy string `gorm:"type:uuid;not null;index" json:"created_by"`

	Members []WorkspaceMember `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"-"`
	Boards  []Board           `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"-"`
	Invites []WorkspaceInvite `gorm:"foreignKey:WorkspaceID;constraint:OnDelete:CASCADE" json:"-"`
}
