package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/easylesson/easylesson-server/internal/models"
)

// AutoMigrate applies the schema for every persistent model. Ordered so that
// referenced tables exist before the tables that point at them.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("nil database handle")
	}

	targets := []any{
		&models.User{},
		&models.Workspace{},
		&models.WorkspaceMember{},
		&models.WorkspaceInvite{},
		&models.Board{},
		&models.BoardUser{},
		&models.BoardElement{},
		&models.PasswordReset{},
	}

	if err := db.AutoMigrate(targets...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	return nil
}
