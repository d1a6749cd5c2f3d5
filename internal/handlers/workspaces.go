package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/easylesson/easylesson-server/internal/services"
	"github.com/easylesson/easylesson-server/pkg/response"
)

// WorkspaceHandler exposes workspace CRUD and membership management.
type WorkspaceHandler struct {
	svc *services.WorkspaceService
}

// NewWorkspaceHandler constructs a WorkspaceHandler.
func NewWorkspaceHandler(svc *services.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{svc: svc}
}

type createWorkspaceRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=128"`
	Icon    string `json:"icon" validate:"omitempty,max=64"`
	BgColor string `json:"bg_color" validate:"omitempty,max=64"`
}

type updateWorkspaceRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=128"`
	Icon    *string `json:"icon" validate:"omitempty,max=64"`
	BgColor *string `json:"bg_color" validate:"omitempty,max=64"`
}

type memberRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=editor viewer member"`
}

// GET /api/workspaces
func (h *WorkspaceHandler) List(c *gin.Context) {
	summaries, err := h.svc.List(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, summaries)
}

// POST /api/workspaces
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var body createWorkspaceRequest
	if !bindAndValidate(c, &body) {
		return
	}

	workspace, err := h.svc.Create(requestContext(c), currentUserID(c), services.CreateWorkspaceInput{
		Name:    body.Name,
		Icon:    body.Icon,
		BgColor: body.BgColor,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, workspace)
}

// GET /api/workspaces/:id
func (h *WorkspaceHandler) Get(c *gin.Context) {
	workspace, err := h.svc.Get(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, workspace)
}

// PUT /api/workspaces/:id
func (h *WorkspaceHandler) Update(c *gin.Context) {
	var body updateWorkspaceRequest
	if !bindAndValidate(c, &body) {
		return
	}

	input := services.UpdateWorkspaceInput{Icon: body.Icon, BgColor: body.BgColor}
	if body.Name != nil {
		trimmed := strings.TrimSpace(*body.Name)
		input.Name = &trimmed
	}

	workspace, err := h.svc.Update(requestContext(c), currentUserID(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, workspace)
}

// DELETE /api/workspaces/:id
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// PATCH /api/workspaces/:id/favourite
func (h *WorkspaceHandler) ToggleFavourite(c *gin.Context) {
	favourite, err := h.svc.ToggleFavourite(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"is_favourite": favourite})
}

// PATCH /api/workspaces/:id/set-active
func (h *WorkspaceHandler) SetActive(c *gin.Context) {
	if err := h.svc.SetActive(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"active_workspace_id": c.Param("id")})
}

// GET /api/workspaces/:id/members
func (h *WorkspaceHandler) ListMembers(c *gin.Context) {
	members, err := h.svc.ListMembers(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, members)
}

// DELETE /api/workspaces/:id/members/:userID
func (h *WorkspaceHandler) RemoveMember(c *gin.Context) {
	if err := h.svc.RemoveMember(requestContext(c), currentUserID(c), c.Param("id"), c.Param("userID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// PATCH /api/workspaces/:id/members/:userID/role
func (h *WorkspaceHandler) UpdateMemberRole(c *gin.Context) {
	var body memberRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	if err := h.svc.UpdateMemberRole(requestContext(c), currentUserID(c), c.Param("id"), c.Param("userID"), body.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"role": body.Role})
}

// POST /api/workspaces/:id/leave
func (h *WorkspaceHandler) Leave(c *gin.Context) {
	if err := h.svc.Leave(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"left": true})
}
