package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/easylesson/easylesson-server/internal/handlers/testutil"
	"github.com/easylesson/easylesson-server/internal/models"
)

func TestWorkspaceLifecycleOverHTTP(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.RegisterAndVerify("owner", "owner@example.com", "AuthPassw0rd!")

	w := env.Request(http.MethodPost, "/api/workspaces", map[string]string{
		"name":     "Maths 101",
		"icon":     "Calculator",
		"bg_color": "bg-red-500",
	}, token)
	require.Equal(t, http.StatusCreated, w.Code)

	var workspace models.Workspace
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &workspace)
	require.Equal(t, "Maths 101", workspace.Name)

	// The starter workspace plus the new one.
	w = env.Request(http.MethodGet, "/api/workspaces", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var summaries []map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &summaries)
	require.Len(t, summaries, 2)

	name := "Maths 102"
	w = env.Request(http.MethodPut, "/api/workspaces/"+workspace.ID, map[string]string{"name": name}, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodPatch, "/api/workspaces/"+workspace.ID+"/favourite", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodPatch, "/api/workspaces/"+workspace.ID+"/set-active", nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodDelete, "/api/workspaces/"+workspace.ID, nil, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodGet, "/api/workspaces/"+workspace.ID, nil, token)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestInviteFlowOverHTTP(t *testing.T) {
	env := testutil.NewEnv(t)
	owner, ownerToken := env.RegisterAndVerify("owner", "owner@example.com", "AuthPassw0rd!")
	invitee, inviteeToken := env.RegisterAndVerify("invitee", "invitee@example.com", "AuthPassw0rd!")

	workspaceID := *owner.ActiveWorkspaceID

	w := env.Request(http.MethodPost, "/api/workspaces/"+workspaceID+"/invite", map[string]string{
		"user_id": invitee.ID,
	}, ownerToken)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var invite models.WorkspaceInvite
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &invite)
	require.NotEmpty(t, invite.Token)

	// Inviting again while the first invite is live conflicts.
	w = env.Request(http.MethodPost, "/api/workspaces/"+workspaceID+"/invite", map[string]string{
		"user_id": invitee.ID,
	}, ownerToken)
	require.Equal(t, http.StatusConflict, w.Code)

	w = env.Request(http.MethodGet, "/api/workspaces/invites/pending", nil, inviteeToken)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &pending)
	require.Len(t, pending, 1)

	w = env.Request(http.MethodPost, "/api/workspaces/invites/accept/"+invite.Token, nil, inviteeToken)
	require.Equal(t, http.StatusOK, w.Code)

	var member models.WorkspaceMember
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &member)
	require.Equal(t, models.RoleEditor, member.Role)

	// Accepting a consumed invite is a replay.
	w = env.Request(http.MethodPost, "/api/workspaces/invites/accept/"+invite.Token, nil, inviteeToken)
	require.Equal(t, http.StatusConflict, w.Code)

	w = env.Request(http.MethodGet, "/api/workspaces/"+workspaceID+"/members", nil, inviteeToken)
	require.Equal(t, http.StatusOK, w.Code)
	var members []map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &members)
	require.Len(t, members, 2)
}

func TestInviteRejectOverHTTP(t *testing.T) {
	env := testutil.NewEnv(t)
	owner, ownerToken := env.RegisterAndVerify("owner", "owner@example.com", "AuthPassw0rd!")
	invitee, inviteeToken := env.RegisterAndVerify("invitee", "invitee@example.com", "AuthPassw0rd!")

	workspaceID := *owner.ActiveWorkspaceID

	w := env.Request(http.MethodPost, "/api/workspaces/"+workspaceID+"/invite", map[string]string{
		"user_id": invitee.ID,
	}, ownerToken)
	require.Equal(t, http.StatusCreated, w.Code)

	var invite models.WorkspaceInvite
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &invite)

	w = env.Request(http.MethodDelete, "/api/workspaces/invites/"+invite.Token, nil, inviteeToken)
	require.Equal(t, http.StatusOK, w.Code)

	// No membership was created.
	w = env.Request(http.MethodGet, "/api/workspaces/"+workspaceID, nil, inviteeToken)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestMemberManagementOverHTTP(t *testing.T) {
	env := testutil.NewEnv(t)
	owner, ownerToken := env.RegisterAndVerify("owner", "owner@example.com", "AuthPassw0rd!")
	member, memberToken := env.RegisterAndVerify("member", "member@example.com", "AuthPassw0rd!")

	workspaceID := *owner.ActiveWorkspaceID
	require.NoError(t, env.DB.Create(&models.WorkspaceMember{
		WorkspaceID: workspaceID,
		UserID:      member.ID,
		Role:        models.RoleMember,
	}).Error)

	w := env.Request(http.MethodPatch,
		"/api/workspaces/"+workspaceID+"/members/"+member.ID+"/role",
		map[string]string{"role": "viewer"}, ownerToken)
	require.Equal(t, http.StatusOK, w.Code)

	// Roles outside the allowed set are rejected by validation.
	w = env.Request(http.MethodPatch,
		"/api/workspaces/"+workspaceID+"/members/"+member.ID+"/role",
		map[string]string{"role": "admin"}, ownerToken)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Only the owner manages members.
	w = env.Request(http.MethodDelete,
		"/api/workspaces/"+workspaceID+"/members/"+owner.ID, nil, memberToken)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = env.Request(http.MethodPost, "/api/workspaces/"+workspaceID+"/leave", nil, memberToken)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodPost, "/api/workspaces/"+workspaceID+"/leave", nil, ownerToken)
	require.Equal(t, http.StatusConflict, w.Code)
}
