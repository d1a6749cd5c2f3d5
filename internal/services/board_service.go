package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/easylesson/easylesson-server/internal/models"
	apperrors "github.com/easylesson/easylesson-server/pkg/errors"
)

var (
	// ErrBoardNotFound indicates the requested board does not exist.
	ErrBoardNotFound = apperrors.New("BOARD_NOT_FOUND", "Board not found", http.StatusNotFound)
	// ErrNoBoardAccess signals the user has no access grant for the board.
	ErrNoBoardAccess = apperrors.New("NO_BOARD_ACCESS", "No access to this board", http.StatusForbidden)
	// ErrNotBoardOwner signals an owner-only board operation by a non-owner.
	ErrNotBoardOwner = apperrors.New("NOT_BOARD_OWNER", "Only the board owner can do this", http.StatusForbidden)
)

// CreateBoardInput captures new board metadata.
type CreateBoardInput struct {
	WorkspaceID string
	Name        string
	Icon        string
	BgColor     string
}

// UpdateBoardInput describes mutable board fields.
type UpdateBoardInput struct {
	Name    *string
	Icon    *string
	BgColor *string
}

// BoardSummary is one row in a workspace board listing.
type BoardSummary struct {
	Board          models.Board `json:"board"`
	IsFavourite    bool         `json:"is_favourite"`
	LastOpened     *time.Time   `json:"last_opened,omitempty"`
	Owner          UserSummary  `json:"owner"`
	LastModifiedBy *UserSummary `json:"last_modified_by,omitempty"`
	OnlineCount    int64        `json:"online_count"`
}

// OnlineUser pairs a user summary with their presence row.
type OnlineUser struct {
	User       UserSummary `json:"user"`
	LastOpened *time.Time  `json:"last_opened,omitempty"`
}

// BoardOption customises BoardService behaviour.
type BoardOption func(*BoardService)

// WithBoardClock injects a custom clock primarily for testing.
func WithBoardClock(clock func() time.Time) BoardOption {
	return func(s *BoardService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// BoardService handles board lifecycle, per-user board state and presence.
type BoardService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewBoardService constructs a BoardService instance.
func NewBoardService(db *gorm.DB, opts ...BoardOption) (*BoardService, error) {
	if db == nil {
		return nil, errors.New("board service: db is required")
	}

	service := &BoardService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create adds a board to a workspace and grants the creator an online
// BoardUser row.
func (s *BoardService) Create(ctx context.Context, userID string, input CreateBoardInput) (*models.Board, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("board name is required")
	}

	var workspace models.Workspace
	err := s.db.WithContext(ctx).First(&workspace, "id = ?", input.WorkspaceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("board service: load workspace: %w", err)
	}

	now := s.now()
	board := &models.Board{
		WorkspaceID:    input.WorkspaceID,
		Name:           name,
		Icon:           strings.TrimSpace(input.Icon),
		BgColor:        strings.TrimSpace(input.BgColor),
		CreatedBy:      userID,
		LastModified:   now,
		LastModifiedBy: userID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(board).Error; err != nil {
			return fmt.Errorf("board service: create board: %w", err)
		}

		boardUser := &models.BoardUser{
			BoardID:    board.ID,
			UserID:     userID,
			IsOnline:   true,
			LastOpened: &now,
		}
		if err := tx.Create(boardUser).Error; err != nil {
			return fmt.Errorf("board service: create board user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return board, nil
}

// Update modifies board metadata and bumps last_modified.
func (s *BoardService) Update(ctx context.Context, userID, boardID string, input UpdateBoardInput) (*models.Board, error) {
	ctx = ensureContext(ctx)

	board, err := s.requireAccess(ctx, userID, boardID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" {
			updates["name"] = name
		}
	}
	if input.Icon != nil {
		updates["icon"] = strings.TrimSpace(*input.Icon)
	}
	if input.BgColor != nil {
		updates["bg_color"] = strings.TrimSpace(*input.BgColor)
	}

	if len(updates) == 0 {
		return board, nil
	}

	updates["last_modified"] = s.now()
	updates["last_modified_by"] = userID

	if err := s.db.WithContext(ctx).Model(board).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("board service: update board: %w", err)
	}

	if err := s.db.WithContext(ctx).First(board, "id = ?", boardID).Error; err != nil {
		return nil, fmt.Errorf("board service: reload board: %w", err)
	}
	return board, nil
}

// Delete removes a board with its per-user state and elements. Creator only.
func (s *BoardService) Delete(ctx context.Context, userID, boardID string) error {
	ctx = ensureContext(ctx)

	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return err
	}
	if board.CreatedBy != userID {
		return ErrNotBoardOwner
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("board_id = ?", boardID).Delete(&models.BoardElement{}).Error; err != nil {
			return fmt.Errorf("board service: delete elements: %w", err)
		}
		if err := tx.Where("board_id = ?", boardID).Delete(&models.BoardUser{}).Error; err != nil {
			return fmt.Errorf("board service: delete board users: %w", err)
		}
		if err := tx.Delete(board).Error; err != nil {
			return fmt.Errorf("board service: delete board: %w", err)
		}
		return nil
	})
}

// List returns the boards of a workspace visible to the user, annotated with
// owner and activity data. Boards whose owner no longer exists are skipped.
func (s *BoardService) List(ctx context.Context, userID, workspaceID string, limit, offset int) ([]BoardSummary, int64, error) {
	ctx = ensureContext(ctx)

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Board{}).
		Where("workspace_id = ?", workspaceID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("board service: count boards: %w", err)
	}

	var boards []models.Board
	if err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("last_modified DESC").
		Limit(limit).
		Offset(offset).
		Find(&boards).Error; err != nil {
		return nil, 0, fmt.Errorf("board service: list boards: %w", err)
	}

	summaries := make([]BoardSummary, 0, len(boards))
	for _, board := range boards {
		var owner models.User
		err := s.db.WithContext(ctx).First(&owner, "id = ?", board.CreatedBy).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("board service: load board owner: %w", err)
		}

		summary := BoardSummary{
			Board: board,
			Owner: UserSummary{
				ID:       owner.ID,
				Username: owner.Username,
				FullName: owner.FullName,
				Avatar:   owner.Avatar,
			},
		}

		if board.LastModifiedBy != "" && board.LastModifiedBy != board.CreatedBy {
			var modifier models.User
			if err := s.db.WithContext(ctx).First(&modifier, "id = ?", board.LastModifiedBy).Error; err == nil {
				summary.LastModifiedBy = &UserSummary{
					ID:       modifier.ID,
					Username: modifier.Username,
					FullName: modifier.FullName,
					Avatar:   modifier.Avatar,
				}
			}
		}

		var boardUser models.BoardUser
		if err := s.db.WithContext(ctx).
			Where("board_id = ? AND user_id = ?", board.ID, userID).
			First(&boardUser).Error; err == nil {
			summary.IsFavourite = boardUser.IsFavourite
			summary.LastOpened = boardUser.LastOpened
		}

		if err := s.db.WithContext(ctx).Model(&models.BoardUser{}).
			Where("board_id = ? AND is_online = ?", board.ID, true).
			Count(&summary.OnlineCount).Error; err != nil {
			return nil, 0, fmt.Errorf("board service: count online users: %w", err)
		}

		summaries = append(summaries, summary)
	}

	return summaries, total, nil
}

// ToggleFavourite flips the user's favourite flag, creating the BoardUser row
// on first use.
func (s *BoardService) ToggleFavourite(ctx context.Context, userID, boardID string) (bool, error) {
	ctx = ensureContext(ctx)

	if _, err := s.loadBoard(ctx, boardID); err != nil {
		return false, err
	}

	var boardUser models.BoardUser
	err := s.db.WithContext(ctx).
		Where("board_id = ? AND user_id = ?", boardID, userID).
		First(&boardUser).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		boardUser = models.BoardUser{
			BoardID:     boardID,
			UserID:      userID,
			IsFavourite: true,
		}
		if err := s.db.WithContext(ctx).Create(&boardUser).Error; err != nil {
			return false, fmt.Errorf("board service: create board user: %w", err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("board service: load board user: %w", err)
	}

	next := !boardUser.IsFavourite
	if err := s.db.WithContext(ctx).Model(&boardUser).Update("is_favourite", next).Error; err != nil {
		return false, fmt.Errorf("board service: toggle favourite: %w", err)
	}
	return next, nil
}

// SetOnline marks the user present on the board and bumps last_opened.
func (s *BoardService) SetOnline(ctx context.Context, userID, boardID string) error {
	ctx = ensureContext(ctx)

	boardUser, err := s.requireBoardUser(ctx, userID, boardID)
	if err != nil {
		return err
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(boardUser).Updates(map[string]any{
		"is_online":   true,
		"last_opened": now,
	}).Error; err != nil {
		return fmt.Errorf("board service: set online: %w", err)
	}
	return nil
}

// SetOffline clears the user's presence flag.
func (s *BoardService) SetOffline(ctx context.Context, userID, boardID string) error {
	ctx = ensureContext(ctx)

	boardUser, err := s.requireBoardUser(ctx, userID, boardID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(boardUser).Update("is_online", false).Error; err != nil {
		return fmt.Errorf("board service: set offline: %w", err)
	}
	return nil
}

// OnlineUsers lists users currently flagged online on the board.
func (s *BoardService) OnlineUsers(ctx context.Context, userID, boardID string, limit, offset int) ([]OnlineUser, int64, error) {
	ctx = ensureContext(ctx)

	if _, err := s.requireAccess(ctx, userID, boardID); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.BoardUser{}).
		Where("board_id = ? AND is_online = ?", boardID, true).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("board service: count online users: %w", err)
	}

	var rows []models.BoardUser
	if err := s.db.WithContext(ctx).
		Where("board_id = ? AND is_online = ?", boardID, true).
		Order("last_opened DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("board service: list online users: %w", err)
	}

	out := make([]OnlineUser, 0, len(rows))
	for _, row := range rows {
		var user models.User
		err := s.db.WithContext(ctx).First(&user, "id = ?", row.UserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("board service: load online user: %w", err)
		}

		out = append(out, OnlineUser{
			User: UserSummary{
				ID:       user.ID,
				Username: user.Username,
				FullName: user.FullName,
				Avatar:   user.Avatar,
			},
			LastOpened: row.LastOpened,
		})
	}

	return out, total, nil
}

// OwnerInfo returns the board creator's summary.
func (s *BoardService) OwnerInfo(ctx context.Context, userID, boardID string) (*UserSummary, error) {
	ctx = ensureContext(ctx)

	board, err := s.requireAccess(ctx, userID, boardID)
	if err != nil {
		return nil, err
	}
	return s.userSummary(ctx, board.CreatedBy)
}

// LastModifierInfo returns who last modified the board, falling back to the
// owner when no modifier is recorded.
func (s *BoardService) LastModifierInfo(ctx context.Context, userID, boardID string) (*UserSummary, error) {
	ctx = ensureContext(ctx)

	board, err := s.requireAccess(ctx, userID, boardID)
	if err != nil {
		return nil, err
	}

	modifierID := board.LastModifiedBy
	if modifierID == "" {
		modifierID = board.CreatedBy
	}

	summary, err := s.userSummary(ctx, modifierID)
	if errors.Is(err, ErrUserNotFound) && modifierID != board.CreatedBy {
		return s.userSummary(ctx, board.CreatedBy)
	}
	return summary, err
}

// LastOpenedInfo returns the user's own last_opened timestamp for the board.
func (s *BoardService) LastOpenedInfo(ctx context.Context, userID, boardID string) (*time.Time, error) {
	ctx = ensureContext(ctx)

	boardUser, err := s.requireBoardUser(ctx, userID, boardID)
	if err != nil {
		return nil, err
	}
	return boardUser.LastOpened, nil
}

// TouchModified bumps the board's activity markers. Used by element writes.
func (s *BoardService) TouchModified(ctx context.Context, userID, boardID string) error {
	ctx = ensureContext(ctx)

	if err := s.db.WithContext(ctx).Model(&models.Board{}).
		Where("id = ?", boardID).
		Updates(map[string]any{
			"last_modified":    s.now(),
			"last_modified_by": userID,
		}).Error; err != nil {
		return fmt.Errorf("board service: touch modified: %w", err)
	}
	return nil
}

func (s *BoardService) loadBoard(ctx context.Context, boardID string) (*models.Board, error) {
	var board models.Board
	err := s.db.WithContext(ctx).First(&board, "id = ?", boardID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBoardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("board service: load board: %w", err)
	}
	return &board, nil
}

// requireAccess allows the creator or anyone holding a BoardUser row.
func (s *BoardService) requireAccess(ctx context.Context, userID, boardID string) (*models.Board, error) {
	board, err := s.loadBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}

	if board.CreatedBy == userID {
		return board, nil
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.BoardUser{}).
		Where("board_id = ? AND user_id = ?", boardID, userID).
		Count(&count).Error; err != nil {
		return nil, fmt.Errorf("board service: check access: %w", err)
	}
	if count == 0 {
		return nil, ErrNoBoardAccess
	}
	return board, nil
}

// requireBoardUser returns the user's BoardUser row, creating it for users
// with access who have not touched the board yet.
func (s *BoardService) requireBoardUser(ctx context.Context, userID, boardID string) (*models.BoardUser, error) {
	if _, err := s.requireAccess(ctx, userID, boardID); err != nil {
		return nil, err
	}

	var boardUser models.BoardUser
	err := s.db.WithContext(ctx).
		Where("board_id = ? AND user_id = ?", boardID, userID).
		First(&boardUser).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		boardUser = models.BoardUser{BoardID: boardID, UserID: userID}
		if err := s.db.WithContext(ctx).Create(&boardUser).Error; err != nil {
			return nil, fmt.Errorf("board service: create board user: %w", err)
		}
		return &boardUser, nil
	}
	if err != nil {
		return nil, fmt.Errorf("board service: load board user: %w", err)
	}
	return &boardUser, nil
}

func (s *BoardService) userSummary(ctx context.Context, userID string) (*UserSummary, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("board service: load user: %w", err)
	}
	return &UserSummary{
		ID:       user.ID,
		Username: user.Username,
		FullName: user.FullName,
		Avatar:   user.Avatar,
	}, nil
}
