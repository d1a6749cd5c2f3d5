package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/easylesson/easylesson-server/pkg/errors"
)

// isUniqueConstraintError detects database uniqueness constraint violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}

// ErrAccountTaken covers uniqueness races where the violated column cannot be
// determined from the driver error.
var ErrAccountTaken = apperrors.NewConflict("ACCOUNT_TAKEN", "Username or email is already taken")

// registrationConflict maps a unique violation on the users table to the
// column that caused it. SQLite names the column, postgres names the
// constraint, and mysql names the key; all three carry the column name.
func registrationConflict(err error) error {
	detail := strings.ToLower(err.Error())

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil {
		detail = strings.ToLower(pgErr.ConstraintName + " " + pgErr.Detail)
	}

	switch {
	case strings.Contains(detail, "username"):
		return ErrUsernameTaken
	case strings.Contains(detail, "email"):
		return ErrEmailTaken
	default:
		return ErrAccountTaken
	}
}
