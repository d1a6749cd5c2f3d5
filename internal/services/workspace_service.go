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
	// ErrWorkspaceNotFound indicates the requested workspace does not exist.
	ErrWorkspaceNotFound = apperrors.New("WORKSPACE_NOT_FOUND", "Workspace not found", http.StatusNotFound)
	// ErrNotWorkspaceMember signals the user does not belong to the workspace.
	ErrNotWorkspaceMember = apperrors.New("NOT_WORKSPACE_MEMBER", "Not a member of this workspace", http.StatusForbidden)
	// ErrNotWorkspaceOwner signals an owner-only operation was attempted by a non-owner.
	ErrNotWorkspaceOwner = apperrors.New("NOT_WORKSPACE_OWNER", "Only the workspace owner can do this", http.StatusForbidden)
	// ErrOwnerCannotLeave signals the creator tried to leave their own workspace.
	ErrOwnerCannotLeave = apperrors.New("OWNER_CANNOT_LEAVE", "The owner cannot leave the workspace", http.StatusConflict)
	// ErrMemberNotFound indicates the target user is not a member of the workspace.
	ErrMemberNotFound = apperrors.New("MEMBER_NOT_FOUND", "User is not a member of the workspace", http.StatusNotFound)
)

// CreateWorkspaceInput captures new workspace metadata.
type CreateWorkspaceInput struct {
	Name    string
	Icon    string
	BgColor string
}

// UpdateWorkspaceInput describes mutable workspace fields.
type UpdateWorkspaceInput struct {
	Name    *string
	Icon    *string
	BgColor *string
}

// UserSummary is the public projection of a user embedded in listings.
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Avatar   string `json:"avatar"`
}

// WorkspaceSummary is one row in a user's workspace listing.
type WorkspaceSummary struct {
	Workspace   models.Workspace `json:"workspace"`
	Role        string           `json:"role"`
	IsOwner     bool             `json:"is_owner"`
	IsFavourite bool             `json:"is_favourite"`
	MemberCount int64            `json:"member_count"`
	BoardCount  int64            `json:"board_count"`
	Creator     *UserSummary     `json:"creator,omitempty"`
}

// WorkspaceMemberInfo pairs a membership row with its user summary.
type WorkspaceMemberInfo struct {
	User     UserSummary `json:"user"`
	Role     string      `json:"role"`
	JoinedAt time.Time   `json:"joined_at"`
}

// WorkspaceOption customises WorkspaceService behaviour.
type WorkspaceOption func(*WorkspaceService)

// WithWorkspaceClock injects a custom clock primarily for testing.
func WithWorkspaceClock(clock func() time.Time) WorkspaceOption {
	return func(s *WorkspaceService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WorkspaceService handles workspace lifecycle and membership management.
type WorkspaceService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewWorkspaceService constructs a WorkspaceService instance.
func NewWorkspaceService(db *gorm.DB, opts ...WorkspaceOption) (*WorkspaceService, error) {
	if db == nil {
		return nil, errors.New("workspace service: db is required")
	}

	service := &WorkspaceService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create registers a new workspace with the creator as its owner member.
func (s *WorkspaceService) Create(ctx context.Context, userID string, input CreateWorkspaceInput) (*models.Workspace, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("workspace name is required")
	}

	workspace := &models.Workspace{
		Name:      name,
		Icon:      strings.TrimSpace(input.Icon),
		BgColor:   strings.TrimSpace(input.BgColor),
		CreatedBy: userID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(workspace).Error; err != nil {
			return fmt.Errorf("workspace service: create workspace: %w", err)
		}

		member := &models.WorkspaceMember{
			WorkspaceID: workspace.ID,
			UserID:      userID,
			Role:        models.RoleOwner,
			JoinedAt:    s.now(),
		}
		if err := tx.Create(member).Error; err != nil {
			return fmt.Errorf("workspace service: create owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return workspace, nil
}

// List returns every workspace the user belongs to, annotated with counts and
// the user's effective role.
func (s *WorkspaceService) List(ctx context.Context, userID string) ([]WorkspaceSummary, error) {
	ctx = ensureContext(ctx)

	var memberships []models.WorkspaceMember
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("joined_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("workspace service: list memberships: %w", err)
	}

	summaries := make([]WorkspaceSummary, 0, len(memberships))
	for _, membership := range memberships {
		var workspace models.Workspace
		err := s.db.WithContext(ctx).First(&workspace, "id = ?", membership.WorkspaceID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("workspace service: load workspace: %w", err)
		}

		var memberCount int64
		if err := s.db.WithContext(ctx).Model(&models.WorkspaceMember{}).
			Where("workspace_id = ?", workspace.ID).
			Count(&memberCount).Error; err != nil {
			return nil, fmt.Errorf("workspace service: count members: %w", err)
		}

		var boardCount int64
		if err := s.db.WithContext(ctx).Model(&models.Board{}).
			Where("workspace_id = ?", workspace.ID).
			Count(&boardCount).Error; err != nil {
			return nil, fmt.Errorf("workspace service: count boards: %w", err)
		}

		summary := WorkspaceSummary{
			Workspace:   workspace,
			Role:        models.EffectiveRole(&workspace, userID, membership.Role),
			IsOwner:     workspace.CreatedBy == userID,
			IsFavourite: membership.IsFavourite,
			MemberCount: memberCount,
			BoardCount:  boardCount,
		}

		var creator models.User
		if err := s.db.WithContext(ctx).First(&creator, "id = ?", workspace.CreatedBy).Error; err == nil {
			summary.Creator = &UserSummary{
				ID:       creator.ID,
				Username: creator.Username,
				FullName: creator.FullName,
				Avatar:   creator.Avatar,
			}
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// Get loads a workspace the user is a member of.
func (s *WorkspaceService) Get(ctx context.Context, userID, workspaceID string) (*models.Workspace, error) {
	ctx = ensureContext(ctx)

	workspace, _, err := s.requireMembership(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	return workspace, nil
}

// Update modifies workspace metadata. Creator only.
func (s *WorkspaceService) Update(ctx context.Context, userID, workspaceID string, input UpdateWorkspaceInput) (*models.Workspace, error) {
	ctx = ensureContext(ctx)

	workspace, err := s.requireOwner(ctx, userID, workspaceID)
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
		return workspace, nil
	}

	if err := s.db.WithContext(ctx).Model(workspace).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("workspace service: update workspace: %w", err)
	}

	if err := s.db.WithContext(ctx).First(workspace, "id = ?", workspaceID).Error; err != nil {
		return nil, fmt.Errorf("workspace service: reload workspace: %w", err)
	}
	return workspace, nil
}

// Delete removes a workspace and everything under it. Creator only.
func (s *WorkspaceService) Delete(ctx context.Context, userID, workspaceID string) error {
	ctx = ensureContext(ctx)

	workspace, err := s.requireOwner(ctx, userID, workspaceID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var boardIDs []string
		if err := tx.Model(&models.Board{}).
			Where("workspace_id = ?", workspaceID).
			Pluck("id", &boardIDs).Error; err != nil {
			return fmt.Errorf("workspace service: list boards: %w", err)
		}

		if len(boardIDs) > 0 {
			if err := tx.Where("board_id IN ?", boardIDs).Delete(&models.BoardElement{}).Error; err != nil {
				return fmt.Errorf("workspace service: delete board elements: %w", err)
			}
			if err := tx.Where("board_id IN ?", boardIDs).Delete(&models.BoardUser{}).Error; err != nil {
				return fmt.Errorf("workspace service: delete board users: %w", err)
			}
			if err := tx.Where("workspace_id = ?", workspaceID).Delete(&models.Board{}).Error; err != nil {
				return fmt.Errorf("workspace service: delete boards: %w", err)
			}
		}

		if err := tx.Where("workspace_id = ?", workspaceID).Delete(&models.WorkspaceInvite{}).Error; err != nil {
			return fmt.Errorf("workspace service: delete invites: %w", err)
		}
		if err := tx.Where("workspace_id = ?", workspaceID).Delete(&models.WorkspaceMember{}).Error; err != nil {
			return fmt.Errorf("workspace service: delete members: %w", err)
		}

		// Users pointing at this workspace fall back to no active workspace.
		if err := tx.Model(&models.User{}).
			Where("active_workspace_id = ?", workspaceID).
			Update("active_workspace_id", nil).Error; err != nil {
			return fmt.Errorf("workspace service: clear active workspace: %w", err)
		}

		if err := tx.Delete(workspace).Error; err != nil {
			return fmt.Errorf("workspace service: delete workspace: %w", err)
		}
		return nil
	})
}

// ToggleFavourite flips the requesting member's favourite flag.
func (s *WorkspaceService) ToggleFavourite(ctx context.Context, userID, workspaceID string) (bool, error) {
	ctx = ensureContext(ctx)

	_, membership, err := s.requireMembership(ctx, userID, workspaceID)
	if err != nil {
		return false, err
	}

	next := !membership.IsFavourite
	if err := s.db.WithContext(ctx).Model(membership).Update("is_favourite", next).Error; err != nil {
		return false, fmt.Errorf("workspace service: toggle favourite: %w", err)
	}
	return next, nil
}

// SetActive records the workspace as the user's active one.
func (s *WorkspaceService) SetActive(ctx context.Context, userID, workspaceID string) error {
	ctx = ensureContext(ctx)

	if _, _, err := s.requireMembership(ctx, userID, workspaceID); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("active_workspace_id", workspaceID).Error; err != nil {
		return fmt.Errorf("workspace service: set active workspace: %w", err)
	}
	return nil
}

// ListMembers returns the workspace membership with user summaries. Any member
// may list.
func (s *WorkspaceService) ListMembers(ctx context.Context, userID, workspaceID string) ([]WorkspaceMemberInfo, error) {
	ctx = ensureContext(ctx)

	workspace, _, err := s.requireMembership(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}

	var memberships []models.WorkspaceMember
	if err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("joined_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("workspace service: list members: %w", err)
	}

	infos := make([]WorkspaceMemberInfo, 0, len(memberships))
	for _, membership := range memberships {
		var user models.User
		err := s.db.WithContext(ctx).First(&user, "id = ?", membership.UserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("workspace service: load member user: %w", err)
		}

		infos = append(infos, WorkspaceMemberInfo{
			User: UserSummary{
				ID:       user.ID,
				Username: user.Username,
				FullName: user.FullName,
				Avatar:   user.Avatar,
			},
			Role:     models.EffectiveRole(workspace, user.ID, membership.Role),
			JoinedAt: membership.JoinedAt,
		})
	}

	return infos, nil
}

// RemoveMember detaches a member from the workspace. Creator only, and the
// creator themselves cannot be removed.
func (s *WorkspaceService) RemoveMember(ctx context.Context, requesterID, workspaceID, targetUserID string) error {
	ctx = ensureContext(ctx)

	workspace, err := s.requireOwner(ctx, requesterID, workspaceID)
	if err != nil {
		return err
	}
	if targetUserID == workspace.CreatedBy {
		return apperrors.NewConflict("CANNOT_REMOVE_OWNER", "The workspace owner cannot be removed")
	}

	result := s.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, targetUserID).
		Delete(&models.WorkspaceMember{})
	if result.Error != nil {
		return fmt.Errorf("workspace service: remove member: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// UpdateMemberRole changes a member's stored role. Creator only; the creator's
// own role is immutable.
func (s *WorkspaceService) UpdateMemberRole(ctx context.Context, requesterID, workspaceID, targetUserID, role string) error {
	ctx = ensureContext(ctx)

	if !models.ValidMemberRole(role) {
		return apperrors.NewBadRequest("role must be one of editor, viewer or member")
	}

	workspace, err := s.requireOwner(ctx, requesterID, workspaceID)
	if err != nil {
		return err
	}
	if targetUserID == workspace.CreatedBy {
		return apperrors.NewConflict("OWNER_ROLE_IMMUTABLE", "The workspace owner's role cannot be changed")
	}

	result := s.db.WithContext(ctx).Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, targetUserID).
		Update("role", role)
	if result.Error != nil {
		return fmt.Errorf("workspace service: update member role: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// Leave removes the requesting user's own membership. The creator cannot
// leave and must delete the workspace instead.
func (s *WorkspaceService) Leave(ctx context.Context, userID, workspaceID string) error {
	ctx = ensureContext(ctx)

	workspace, membership, err := s.requireMembership(ctx, userID, workspaceID)
	if err != nil {
		return err
	}
	if workspace.CreatedBy == userID {
		return ErrOwnerCannotLeave
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(membership).Error; err != nil {
			return fmt.Errorf("workspace service: leave workspace: %w", err)
		}
		if err := tx.Model(&models.User{}).
			Where("id = ? AND active_workspace_id = ?", userID, workspaceID).
			Update("active_workspace_id", nil).Error; err != nil {
			return fmt.Errorf("workspace service: clear active workspace: %w", err)
		}
		return nil
	})
}

// requireMembership loads the workspace and the user's membership row,
// translating absence into the service error taxonomy.
func (s *WorkspaceService) requireMembership(ctx context.Context, userID, workspaceID string) (*models.Workspace, *models.WorkspaceMember, error) {
	var workspace models.Workspace
	err := s.db.WithContext(ctx).First(&workspace, "id = ?", workspaceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("workspace service: load workspace: %w", err)
	}

	var membership models.WorkspaceMember
	err = s.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotWorkspaceMember
	}
	if err != nil {
		return nil, nil, fmt.Errorf("workspace service: load membership: %w", err)
	}

	return &workspace, &membership, nil
}

func (s *WorkspaceService) requireOwner(ctx context.Context, userID, workspaceID string) (*models.Workspace, error) {
	workspace, _, err := s.requireMembership(ctx, userID, workspaceID)
	if err != nil {
		return nil, err
	}
	if workspace.CreatedBy != userID {
		return nil, ErrNotWorkspaceOwner
	}
	return workspace, nil
}
