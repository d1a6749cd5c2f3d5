package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/easylesson/easylesson-server/internal/database/testutil"
	"github.com/easylesson/easylesson-server/internal/models"
)

// seedBoard creates a board plus the owner's BoardUser row the way
// BoardService.Create does.
func seedBoard(t *testing.T, db *gorm.DB, workspace *models.Workspace, owner *models.User, name string, lastModified time.Time) *models.Board {
	t.Helper()

	board := &models.Board{
		WorkspaceID:    workspace.ID,
		Name:           name,
		CreatedBy:      owner.ID,
		LastModified:   lastModified,
		LastModifiedBy: owner.ID,
	}
	require.NoError(t, db.Create(board).Error)
	require.NoError(t, db.Create(&models.BoardUser{
		BoardID:    board.ID,
		UserID:     owner.ID,
		IsOnline:   true,
		LastOpened: &lastModified,
	}).Error)
	return board
}

func TestBoardServiceCreate(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	current := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	owner := seedActiveUser(t, db, "owner", "owner@example.com", "password1")
	workspace := seedWorkspace(t, db, owner, "Maths 101")

	svc, err := NewBoardService(db, WithBoardClock(func() time.Time { return current }))
	require.NoError(t, err)

	board, err := svc.Create(context.Background(), owner.ID, CreateBoardInput{
		WorkspaceID: workspace.ID,
		Name:        "Week 1",
	})
	require.NoError(t, err)
	require.Equal(t, current, board.LastModified)
	require.Equal(t, owner.ID, board.LastModifiedBy)

	// The creator starts online on their new board.
	var boardUser models.BoardUser
	require.NoError(t, db.First(&boardUser, "board_id = ? AND user_id = ?", board.ID, owner.ID).Error)
	require.True(t, boardUser.IsOnline)
	require.NotNil(t, boardUser.LastOpened)

	_, err = svc.Create(context.Background(), owner.ID, CreateBoardInput{
		WorkspaceID: "missing",
		Name:        "Orphan",
	})
	require.ErrorIs(t, err, ErrWorkspaceNotFound)

	_, err = svc.Create(context.Background(), owner.ID, CreateBoardInput{
		WorkspaceID: workspace.ID,
		Name:        "   ",
	})
	require.Error(t, err)
}

func TestBoardServiceUpdateBumpsActivity(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	current := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	owner := seedActiveUser(t, db, "owner", "owner@example.com", "password1")
	collaborator := seedActiveUser(t, db, "collab", "collab@example.com", "password1")
	workspace := seedWorkspace(t, db, owner, "Maths 101")
	board := seedBoard(t, db, workspace, owner, "Week 1", current)

	require.NoError(t, db.Create(&models.BoardUser{BoardID: board.ID, UserID: collaborator.ID}).Error)

	svc, err := NewBoardService(db, WithBoardClock(func() time.Time { return current }))
	require.NoError(t, err)

	current = current.Add(time.Hour)
	name := "Week 1 revised"
	updated, err := svc.Update(context.Background(), collaborator.ID, board.ID, UpdateBoardInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Week 1 revised", updated.Name)
	require.Equal(t, collaborator.ID, updated.LastModifiedBy)
	require.Equal(t, current.Unix(), updated.LastModified.Unix())

	// No-op updates leave the activity markers alone.
	before := updated.LastModified
	current = current.Add(time.Hour)
	updated, err = svc.Update(context.Background(), owner.ID, board.ID, UpdateBoardInput{})
	require.NoError(t, err)
	require.Equal(t, before.Unix(), updated.LastModified.Unix())
}

func TestBoardServiceDelete(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	owner := seedActiveUser(t, db, "owner", "owner@example.com", "password1")
	collaborator := seedActiveUser(t, db, "collab", "collab@example.com", "password1")
	workspace := seedWorkspace(t, db, owner, "Maths 101")
	board := seedBoard(t, db, workspace, owner, "Week 1", now)

	require.NoError(t, db.Create(&models.BoardUser{BoardID: board.ID, UserID: collaborator.ID}).Error)
	require.NoError(t, db.Create(&models.BoardElement{
		BoardID:   board.ID,
		ElementID: "4fa1cbd0-0000-0000-0000-000000000001",
		Kind:      "path",
	}).Error)

	svc, err := NewBoardService(db)
	require.NoError(t, err)

	// Collaborators can edit but not delete.
	require.ErrorIs(t, svc.Delete(context.Background(), collaborator.ID, board.ID), ErrNotBoardOwner)

	require.NoError(t, svc.Delete(context.Background(), owner.ID, board.ID))

	for _, model := range []any{&models.Board{}, &models.BoardUser{}, &models.BoardElement{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		require.Zero(t, count)
	}

	require.ErrorIs(t, svc.Delete(context.Background(), owner.ID, board.ID), ErrBoardNotFound)
}

func TestBoardServiceList(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	owner := seedActiveUser(t, db, "owner", "owner@example.com", "password1")
	workspace := seedWorkspace(t, db, owner, "Maths 101")

	older := seedBoard(t, db, workspace, owner, "Older", base)
	newer := seedBoard(t, db, workspace, owner, "Newer", base.Add(time.Hour))

	// A board whose owner account has since been deleted is hidden.
	require.NoError(t, db.Create(&models.Board{
		WorkspaceID:  workspace.ID,
		Name:         "Orphan",
		CreatedBy:    "deleted-user",
		LastModified: base.Add(2 * time.Hour),
	}).Error)

	svc, err := NewBoardService(db)
	require.NoError(t, err)

	summaries, total, err := svc.List(context.Background(), owner.ID, workspace.ID, 50, 0)
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, summaries, 2)

	// Most recently modified first.
	require.Equal(t, newer.ID, summaries[0].Board.ID)
	require.Equal(t, older.ID, summaries[1].Board.ID)

	require.Equal(t, owner.ID, summaries[0].Owner.ID)
	require.Equal(t, int64(1), summaries[0].OnlineCount)
	require.NotNil(t, summaries[0].LastOpened)

	// Modifier equal to the owner is not repeated in the summary.
	require.Nil(t, summaries[0].LastModifiedBy)
}

func TestBoardServiceListShowsDistinctModifier(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	owner := seedActiveUser(t, db, "owner", "owner@example.com", "password1")
	editor := seedActiveUser(t, db, "editor", "editor@example.com", "password1")
	workspace := seedWorkspace(t, db, owner, "Maths 101")
	board := seedBoard(t, db, workspace, owner, "Week 1", base)

	require.NoError(t, db.Model(board).Update("last_modified_by", editor.ID).Error)

	svc, err := NewBoardService(db)
	require.NoError(t, err)

	summaries, _, err := svc.List(context.Background(), owner.ID, workspace.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.NotNil(t, summaries[0].LastModifiedBy)
	require.Equal(t, editor.ID, summaries[0].LastModifiedBy.ID)
}

func TestBoardServiceToggleFavourite(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	owner := seedActiveUser(t, db, "owner", "owner@example.com", "password1")
	other := seedActiveUser(t, db, "other", "other@example.com", "password1")
	workspace := seedWorkspace(t, db, owner, "Maths 101")
	board := seedBoard(t, db, workspace, owner, "Week 1", now)

	svc, err := NewBoardService(db)
	require.NoError(t, err)

	// First toggle creates the per-user row.
	favourite, err := svc.ToggleFavourite(context.Background(), other.ID, board.ID)
	require.NoError(t, err)
	require.True(t, favourite)

	favourite, err = svc.ToggleFavourite(context.Background(), other.ID, board.ID)
	require.NoError(t, err)
	require.False(t, favourite)

	_, err = svc.ToggleFavourite(context.Background(), other.ID, "missing")
	require.ErrorIs(t, err, ErrBoardNotFound)
}

func TestBoardServicePresence(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	current := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	owner := seedActiveUser(t, db, "owner", "owner@example.com", "password1")
	collaborator := seedActiveUser(t, db, "collab", "collab@example.com", "password1")
	stranger := seedActiveUser(t, db, "stranger", "stranger@example.com", "password1")
	workspace := seedWorkspace(t, db, owner, "Maths 101")
	board := seedBoard(t, db, workspace, owner, "Week 1", current)

	require.NoError(t, db.Create(&models.BoardUser{BoardID: board.ID, UserID: collaborator.ID}).Error)

	svc, err := NewBoardService(db, WithBoardClock(func() time.Time { return current }))
	require.NoError(t, err)

	current = current.Add(time.Minute)
	require.NoError(t, svc.SetOnline(context.Background(), collaborator.ID, board.ID))

	users, total, err := svc.OnlineUsers(context.Background(), owner.ID, board.ID, 50, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, users, 2)

	lastOpened, err := svc.LastOpenedInfo(context.Background(), collaborator.ID, board.ID)
	require.NoError(t, err)
	require.NotNil(t, lastOpened)
	require.Equal(t, current.Unix(), lastOpened.Unix())

	require.NoError(t, svc.SetOffline(context.Background(), collaborator.ID, board.ID))

	_, total, err = svc.OnlineUsers(context.Background(), owner.ID, board.ID, 50, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)

	// No BoardUser row and not the creator means no access at all.
	require.ErrorIs(t, svc.SetOnline(context.Background(), stranger.ID, board.ID), ErrNoBoardAccess)
	_, _, err = svc.OnlineUsers(context.Background(), stranger.ID, board.ID, 50, 0)
	require.ErrorIs(t, err, ErrNoBoardAccess)
}

func TestBoardServiceOwnerAndModifierInfo(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	owner := seedActiveUser(t, db, "owner", "owner@example.com", "password1")
	workspace := seedWorkspace(t, db, owner, "Maths 101")
	board := seedBoard(t, db, workspace, owner, "Week 1", now)

	svc, err := NewBoardService(db)
	require.NoError(t, err)

	info, err := svc.OwnerInfo(context.Background(), owner.ID, board.ID)
	require.NoError(t, err)
	require.Equal(t, owner.ID, info.ID)
	require.Equal(t, "owner", info.Username)

	// With no distinct modifier the owner is reported.
	modifier, err := svc.LastModifierInfo(context.Background(), owner.ID, board.ID)
	require.NoError(t, err)
	require.Equal(t, owner.ID, modifier.ID)

	// A modifier that no longer exists falls back to the owner.
	require.NoError(t, db.Model(board).Update("last_modified_by", "deleted-user").Error)
	modifier, err = svc.LastModifierInfo(context.Background(), owner.ID, board.ID)
	require.NoError(t, err)
	require.Equal(t, owner.ID, modifier.ID)
}
