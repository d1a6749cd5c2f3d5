package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/easylesson/easylesson-server/internal/models"
	"github.com/easylesson/easylesson-server/pkg/crypto"
	apperrors "github.com/easylesson/easylesson-server/pkg/errors"
	"github.com/easylesson/easylesson-server/pkg/logger"
	"github.com/easylesson/easylesson-server/pkg/mail"
	"github.com/easylesson/easylesson-server/pkg/metrics"
)

const (
	inviteTokenBytes       = 24
	inviteTokenMaxAttempts = 5
)

var (
	// ErrInviteNotFound indicates no invite matches the provided token.
	ErrInviteNotFound = apperrors.New("INVITE_NOT_FOUND", "Invite not found", http.StatusNotFound)
	// ErrInviteExpired indicates the invite token has passed its expiry.
	ErrInviteExpired = apperrors.New("INVITE_EXPIRED", "Invite has expired", http.StatusGone)
	// ErrInviteAlreadyUsed signals the invite was accepted or rejected before.
	ErrInviteAlreadyUsed = apperrors.NewConflict("INVITE_ALREADY_USED", "Invite has already been used")
	// ErrInviteWrongUser signals the invite is addressed to a different account.
	ErrInviteWrongUser = apperrors.New("INVITE_WRONG_USER", "Invite is addressed to a different user", http.StatusForbidden)
	// ErrInviteAlreadyMember signals the invitee already belongs to the workspace.
	ErrInviteAlreadyMember = apperrors.NewConflict("ALREADY_MEMBER", "User is already a member of the workspace")
	// ErrInviteDuplicatePending signals another live invite exists for the same pair.
	ErrInviteDuplicatePending = apperrors.NewConflict("INVITE_PENDING", "A pending invite for this user already exists")
)

// InviteOption customises InviteService behaviour.
type InviteOption func(*InviteService)

// WithInviteClock injects a custom clock primarily for testing.
func WithInviteClock(clock func() time.Time) InviteOption {
	return func(s *InviteService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithInviteTTL overrides the invite lifetime.
func WithInviteTTL(d time.Duration) InviteOption {
	return func(s *InviteService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// PendingInvite is one row in a user's pending invite listing.
type PendingInvite struct {
	Invite        models.WorkspaceInvite `json:"invite"`
	WorkspaceName string                 `json:"workspace_name"`
	InviterName   string                 `json:"inviter_name"`
}

// InviteService manages the workspace invite state machine: pending invites
// become accepted or rejected exactly once, and expiry is evaluated lazily.
type InviteService struct {
	db     *gorm.DB
	mailer mail.Mailer
	ttl    time.Duration
	now    func() time.Time
}

// NewInviteService constructs an InviteService with the provided dependencies.
func NewInviteService(db *gorm.DB, mailer mail.Mailer, opts ...InviteOption) (*InviteService, error) {
	if db == nil {
		return nil, errors.New("invite service: db is required")
	}

	service := &InviteService{
		db:     db,
		mailer: mailer,
		ttl:    models.DefaultInviteTTL,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// Create issues an invite from a workspace member to an existing user.
func (s *InviteService) Create(ctx context.Context, workspaceID, inviterID, invitedUserID string) (*models.WorkspaceInvite, error) {
	ctx = ensureContext(ctx)

	var workspace models.Workspace
	err := s.db.WithContext(ctx).First(&workspace, "id = ?", workspaceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invite service: load workspace: %w", err)
	}

	var inviterMembership models.WorkspaceMember
	err = s.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, inviterID).
		First(&inviterMembership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotWorkspaceMember
	}
	if err != nil {
		return nil, fmt.Errorf("invite service: load inviter membership: %w", err)
	}

	var invitee models.User
	err = s.db.WithContext(ctx).First(&invitee, "id = ?", invitedUserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invite service: load invitee: %w", err)
	}

	var memberCount int64
	if err := s.db.WithContext(ctx).Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, invitedUserID).
		Count(&memberCount).Error; err != nil {
		return nil, fmt.Errorf("invite service: check membership: %w", err)
	}
	if memberCount > 0 {
		return nil, ErrInviteAlreadyMember
	}

	now := s.now()
	var pendingCount int64
	if err := s.db.WithContext(ctx).Model(&models.WorkspaceInvite{}).
		Where("workspace_id = ? AND invited_user_id = ? AND is_used = ? AND expires_at > ?",
			workspaceID, invitedUserID, false, now).
		Count(&pendingCount).Error; err != nil {
		return nil, fmt.Errorf("invite service: check pending invites: %w", err)
	}
	if pendingCount > 0 {
		return nil, ErrInviteDuplicatePending
	}

	invite, err := s.createWithUniqueToken(ctx, workspaceID, inviterID, invitedUserID, now)
	if err != nil {
		return nil, err
	}

	metrics.InviteTransitions.WithLabelValues("created").Inc()
	s.sendInviteEmail(ctx, &invitee, &workspace, invite)

	return invite, nil
}

// Pending returns unused, unexpired invites addressed to the user, newest first.
func (s *InviteService) Pending(ctx context.Context, userID string) ([]PendingInvite, error) {
	ctx = ensureContext(ctx)

	var invites []models.WorkspaceInvite
	if err := s.db.WithContext(ctx).
		Where("invited_user_id = ? AND is_used = ? AND expires_at > ?", userID, false, s.now()).
		Order("created_at DESC").
		Find(&invites).Error; err != nil {
		return nil, fmt.Errorf("invite service: list pending: %w", err)
	}

	out := make([]PendingInvite, 0, len(invites))
	for _, invite := range invites {
		row := PendingInvite{Invite: invite}

		var workspace models.Workspace
		if err := s.db.WithContext(ctx).First(&workspace, "id = ?", invite.WorkspaceID).Error; err == nil {
			row.WorkspaceName = workspace.Name
		}

		var inviter models.User
		if err := s.db.WithContext(ctx).First(&inviter, "id = ?", invite.InvitedBy).Error; err == nil {
			row.InviterName = inviter.FullName
			if row.InviterName == "" {
				row.InviterName = inviter.Username
			}
		}

		out = append(out, row)
	}

	return out, nil
}

// Accept consumes a pending invite and creates the membership with role editor.
func (s *InviteService) Accept(ctx context.Context, token, userID string) (*models.WorkspaceMember, error) {
	ctx = ensureContext(ctx)

	invite, err := s.loadForUser(ctx, token, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if invite.Expired(now) {
		return nil, ErrInviteExpired
	}

	var memberCount int64
	if err := s.db.WithContext(ctx).Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", invite.WorkspaceID, userID).
		Count(&memberCount).Error; err != nil {
		return nil, fmt.Errorf("invite service: check membership: %w", err)
	}
	if memberCount > 0 {
		return nil, ErrInviteAlreadyMember
	}

	member := &models.WorkspaceMember{
		WorkspaceID: invite.WorkspaceID,
		UserID:      userID,
		Role:        models.RoleEditor,
		JoinedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(member).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrInviteAlreadyMember
			}
			return fmt.Errorf("invite service: create membership: %w", err)
		}
		if err := tx.Model(invite).Updates(map[string]any{
			"is_used":     true,
			"accepted_at": now,
		}).Error; err != nil {
			return fmt.Errorf("invite service: mark accepted: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.InviteTransitions.WithLabelValues("accepted").Inc()
	return member, nil
}

// Reject consumes a pending invite without creating a membership. Expired
// invites can still be rejected.
func (s *InviteService) Reject(ctx context.Context, token, userID string) error {
	ctx = ensureContext(ctx)

	invite, err := s.loadForUser(ctx, token, userID)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Model(invite).Updates(map[string]any{
		"is_used":     true,
		"rejected_at": s.now(),
	}).Error; err != nil {
		return fmt.Errorf("invite service: mark rejected: %w", err)
	}

	metrics.InviteTransitions.WithLabelValues("rejected").Inc()
	return nil
}

// createWithUniqueToken retries token generation on unique-index collisions.
func (s *InviteService) createWithUniqueToken(ctx context.Context, workspaceID, inviterID, invitedUserID string, now time.Time) (*models.WorkspaceInvite, error) {
	for attempt := 0; attempt < inviteTokenMaxAttempts; attempt++ {
		token, err := crypto.GenerateToken(inviteTokenBytes)
		if err != nil {
			return nil, fmt.Errorf("invite service: generate token: %w", err)
		}

		invite := &models.WorkspaceInvite{
			WorkspaceID:   workspaceID,
			InvitedBy:     inviterID,
			InvitedUserID: invitedUserID,
			Token:         token,
			Role:          models.RoleEditor,
			ExpiresAt:     now.Add(s.ttl),
		}

		err = s.db.WithContext(ctx).Create(invite).Error
		if err == nil {
			return invite, nil
		}
		if !isUniqueConstraintError(err) {
			return nil, fmt.Errorf("invite service: create invite: %w", err)
		}
	}

	return nil, apperrors.ErrInternalServer.WithInternal(errors.New("invite token generation exhausted"))
}

// loadForUser resolves a token and checks it is addressed to the user and unused.
func (s *InviteService) loadForUser(ctx context.Context, token, userID string) (*models.WorkspaceInvite, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.NewBadRequest("invite token is required")
	}

	var invite models.WorkspaceInvite
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invite service: load invite: %w", err)
	}

	if invite.InvitedUserID != userID {
		return nil, ErrInviteWrongUser
	}
	if invite.IsUsed {
		return nil, ErrInviteAlreadyUsed
	}

	return &invite, nil
}

func (s *InviteService) sendInviteEmail(ctx context.Context, invitee *models.User, workspace *models.Workspace, invite *models.WorkspaceInvite) {
	if s.mailer == nil {
		return
	}

	msg := mail.Message{
		To:      invitee.Email,
		ToName:  invitee.FullName,
		Subject: fmt.Sprintf("You've been invited to %s", workspace.Name),
		PlainBody: fmt.Sprintf(
			"You have been invited to join the workspace %q on EasyLesson. Open your pending invites to accept. The invite expires on %s.",
			workspace.Name, invite.ExpiresAt.Format(time.RFC1123)),
	}
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrMailDisabled) {
		logger.WithModule("services.invite").Warn("send invite email failed",
			zap.String("to", invitee.Email),
			zap.Error(err))
	}
}
