package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/easylesson/easylesson-server/internal/services"
	"github.com/easylesson/easylesson-server/pkg/response"
)

// InviteHandler exposes workspace invite creation and consumption.
type InviteHandler struct {
	svc *services.InviteService
}

// NewInviteHandler constructs an InviteHandler.
func NewInviteHandler(svc *services.InviteService) *InviteHandler {
	return &InviteHandler{svc: svc}
}

type createInviteRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
}

// POST /api/workspaces/:id/invite
func (h *InviteHandler) Create(c *gin.Context) {
	var body createInviteRequest
	if !bindAndValidate(c, &body) {
		return
	}

	invite, err := h.svc.Create(requestContext(c), c.Param("id"), currentUserID(c), body.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, invite)
}

// GET /api/workspaces/invites/pending
func (h *InviteHandler) Pending(c *gin.Context) {
	invites, err := h.svc.Pending(requestContext(c), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, invites)
}

// POST /api/workspaces/invites/accept/:token
func (h *InviteHandler) Accept(c *gin.Context) {
	member, err := h.svc.Accept(requestContext(c), c.Param("token"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, member)
}

// DELETE /api/workspaces/invites/:token
func (h *InviteHandler) Reject(c *gin.Context) {
	if err := h.svc.Reject(requestContext(c), c.Param("token"), currentUserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"rejected": true})
}
