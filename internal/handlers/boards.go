package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/easylesson/easylesson-server/internal/services"
	apperrors "github.com/easylesson/easylesson-server/pkg/errors"
	"github.com/easylesson/easylesson-server/pkg/response"
)

// BoardHandler exposes board CRUD, favourites and presence.
type BoardHandler struct {
	svc *services.BoardService
}

// NewBoardHandler constructs a BoardHandler.
func NewBoardHandler(svc *services.BoardService) *BoardHandler {
	return &BoardHandler{svc: svc}
}

type createBoardRequest struct {
	WorkspaceID string `json:"workspace_id" validate:"required,uuid4"`
	Name        string `json:"name" validate:"required,min=1,max=128"`
	Icon        string `json:"icon" validate:"omitempty,max=64"`
	BgColor     string `json:"bg_color" validate:"omitempty,max=64"`
}

type updateBoardRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=128"`
	Icon    *string `json:"icon" validate:"omitempty,max=64"`
	BgColor *string `json:"bg_color" validate:"omitempty,max=64"`
}

// GET /api/boards?workspace_id=...&limit=...&offset=...
func (h *BoardHandler) List(c *gin.Context) {
	workspaceID := strings.TrimSpace(c.Query("workspace_id"))
	if workspaceID == "" {
		response.Error(c, apperrors.NewBadRequest("workspace_id query parameter is required"))
		return
	}

	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)

	summaries, total, err := h.svc.List(requestContext(c), currentUserID(c), workspaceID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, summaries, &response.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  total,
	})
}

// POST /api/boards
func (h *BoardHandler) Create(c *gin.Context) {
	var body createBoardRequest
	if !bindAndValidate(c, &body) {
		return
	}

	board, err := h.svc.Create(requestContext(c), currentUserID(c), services.CreateBoardInput{
		WorkspaceID: body.WorkspaceID,
		Name:        body.Name,
		Icon:        body.Icon,
		BgColor:     body.BgColor,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, board)
}

// PUT /api/boards/:id
func (h *BoardHandler) Update(c *gin.Context) {
	var body updateBoardRequest
	if !bindAndValidate(c, &body) {
		return
	}

	board, err := h.svc.Update(requestContext(c), currentUserID(c), c.Param("id"), services.UpdateBoardInput{
		Name:    body.Name,
		Icon:    body.Icon,
		BgColor: body.BgColor,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, board)
}

// DELETE /api/boards/:id
func (h *BoardHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/boards/:id/toggle-favourite
func (h *BoardHandler) ToggleFavourite(c *gin.Context) {
	favourite, err := h.svc.ToggleFavourite(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"is_favourite": favourite})
}

// POST /api/boards/:id/online
func (h *BoardHandler) SetOnline(c *gin.Context) {
	if err := h.svc.SetOnline(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"online": true})
}

// POST /api/boards/:id/offline
func (h *BoardHandler) SetOffline(c *gin.Context) {
	if err := h.svc.SetOffline(requestContext(c), currentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"online": false})
}

// GET /api/boards/:id/online-users
func (h *BoardHandler) OnlineUsers(c *gin.Context) {
	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)

	users, total, err := h.svc.OnlineUsers(requestContext(c), currentUserID(c), c.Param("id"), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, users, &response.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  total,
	})
}

// GET /api/boards/:id/owner
func (h *BoardHandler) OwnerInfo(c *gin.Context) {
	owner, err := h.svc.OwnerInfo(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, owner)
}

// GET /api/boards/:id/last-modified-by
func (h *BoardHandler) LastModifierInfo(c *gin.Context) {
	modifier, err := h.svc.LastModifierInfo(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, modifier)
}

// GET /api/boards/:id/last-opened
func (h *BoardHandler) LastOpenedInfo(c *gin.Context) {
	lastOpened, err := h.svc.LastOpenedInfo(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"last_opened": lastOpened})
}
