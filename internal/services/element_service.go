package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/easylesson/easylesson-server/internal/models"
	apperrors "github.com/easylesson/easylesson-server/pkg/errors"
	"github.com/easylesson/easylesson-server/pkg/metrics"
)

// ErrElementNotFound indicates the element is absent or already deleted.
var ErrElementNotFound = apperrors.New("ELEMENT_NOT_FOUND", "Element not found", http.StatusNotFound)

// ElementInput is one element in a batch save.
type ElementInput struct {
	ElementID string         `json:"element_id"`
	Kind      string         `json:"kind"`
	Payload   datatypes.JSON `json:"payload"`
}

// ElementOption customises ElementService behaviour.
type ElementOption func(*ElementService)

// WithElementClock injects a custom clock primarily for testing.
func WithElementClock(clock func() time.Time) ElementOption {
	return func(s *ElementService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// ElementService persists board elements as opaque JSON payloads.
type ElementService struct {
	db     *gorm.DB
	boards *BoardService
	now    func() time.Time
}

// NewElementService constructs an ElementService instance.
func NewElementService(db *gorm.DB, boards *BoardService, opts ...ElementOption) (*ElementService, error) {
	if db == nil {
		return nil, errors.New("element service: db is required")
	}
	if boards == nil {
		return nil, errors.New("element service: board service is required")
	}

	service := &ElementService{db: db, boards: boards, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// SaveBatch upserts up to 100 elements keyed by (board_id, element_id) in one
// transaction. Soft-deleted rows that reappear in a batch are revived.
// Oversized batches are rejected before anything is written.
func (s *ElementService) SaveBatch(ctx context.Context, userID, boardID string, elements []ElementInput) ([]models.BoardElement, error) {
	ctx = ensureContext(ctx)

	if _, err := s.boards.requireAccess(ctx, userID, boardID); err != nil {
		return nil, err
	}

	if len(elements) == 0 {
		return []models.BoardElement{}, nil
	}
	if len(elements) > models.MaxElementBatch {
		return nil, apperrors.NewBadRequest(
			fmt.Sprintf("batch exceeds the maximum of %d elements", models.MaxElementBatch))
	}

	for i, element := range elements {
		if strings.TrimSpace(element.ElementID) == "" {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("element %d is missing element_id", i))
		}
		if strings.TrimSpace(element.Kind) == "" {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("element %d is missing kind", i))
		}
	}

	metrics.ElementBatchSize.Observe(float64(len(elements)))

	saved := make([]models.BoardElement, 0, len(elements))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, input := range elements {
			row := models.BoardElement{
				BoardID:   boardID,
				ElementID: input.ElementID,
				Kind:      input.Kind,
				Payload:   input.Payload,
				CreatedBy: userID,
			}

			// A single statement per element: insert, or rewrite the row in
			// place when the (board_id, element_id) key already exists. The
			// database resolves concurrent saves of the same element instead
			// of the two writers racing a read-then-write.
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "board_id"}, {Name: "element_id"}},
				DoUpdates: clause.Assignments(map[string]any{
					"kind":       input.Kind,
					"payload":    input.Payload,
					"is_deleted": false,
					"updated_at": s.now(),
				}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("element service: save element: %w", err)
			}

			var stored models.BoardElement
			if err := tx.Where("board_id = ? AND element_id = ?", boardID, input.ElementID).
				First(&stored).Error; err != nil {
				return fmt.Errorf("element service: reload element: %w", err)
			}
			saved = append(saved, stored)
		}

		if err := tx.Model(&models.Board{}).
			Where("id = ?", boardID).
			Updates(map[string]any{
				"last_modified":    s.now(),
				"last_modified_by": userID,
			}).Error; err != nil {
			return fmt.Errorf("element service: touch board: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return saved, nil
}

// List returns the board's live (non-deleted) elements.
func (s *ElementService) List(ctx context.Context, userID, boardID string) ([]models.BoardElement, error) {
	ctx = ensureContext(ctx)

	if _, err := s.boards.requireAccess(ctx, userID, boardID); err != nil {
		return nil, err
	}

	var elements []models.BoardElement
	if err := s.db.WithContext(ctx).
		Where("board_id = ? AND is_deleted = ?", boardID, false).
		Order("created_at ASC").
		Find(&elements).Error; err != nil {
		return nil, fmt.Errorf("element service: list elements: %w", err)
	}
	return elements, nil
}

// Delete soft-deletes one element by its client identifier.
func (s *ElementService) Delete(ctx context.Context, userID, boardID, elementID string) error {
	ctx = ensureContext(ctx)

	if _, err := s.boards.requireAccess(ctx, userID, boardID); err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Model(&models.BoardElement{}).
		Where("board_id = ? AND element_id = ? AND is_deleted = ?", boardID, elementID, false).
		Update("is_deleted", true)
	if result.Error != nil {
		return fmt.Errorf("element service: delete element: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrElementNotFound
	}

	if err := s.boards.TouchModified(ctx, userID, boardID); err != nil {
		return err
	}
	return nil
}
