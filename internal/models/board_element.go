package models

import "gorm.io/datatypes"

// MaxElementBatch caps how many elements a single batch save may carry.
const MaxElementBatch = 100

// BoardElement is one freeform drawing element. ElementID is the client-side
// identifier; the unique index on (board_id, element_id) makes batch saves
// idempotent per board. Deletes are soft so a later save of the same element
// id revives the row.
type BoardElement struct {
	BaseModel

	BoardID   string `gorm:"type:uuid;not null;uniqueIndex:idx_board_elements_board_element" json:"board_id"`
	ElementID string `gorm:"type:uuid;not null;uniqueIndex:idx_board_elements_board_element" json:"element_id"`

	Kind      string         `gorm:"not null" json:"kind"`
	Payload   datatypes.JSON `json:"payload"`
	IsDeleted bool           `gorm:"default:false;index" json:"is_deleted"`
	CreatedBy string         `gorm:"type:uuid" json:"created_by"`
}
