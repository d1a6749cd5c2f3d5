package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/easylesson/easylesson-server/internal/services"
	"github.com/easylesson/easylesson-server/pkg/response"
)

// ElementHandler exposes board element batch saves, listing and deletion.
type ElementHandler struct {
	svc *services.ElementService
}

// NewElementHandler constructs an ElementHandler.
func NewElementHandler(svc *services.ElementService) *ElementHandler {
	return &ElementHandler{svc: svc}
}

type elementPayload struct {
	ElementID string         `json:"element_id" validate:"required,uuid4"`
	Kind      string         `json:"kind" validate:"required,max=64"`
	Payload   datatypes.JSON `json:"payload" validate:"required"`
}

type saveElementsRequest struct {
	Elements []elementPayload `json:"elements" validate:"required,dive"`
}

// POST /api/boards/:id/elements/batch
func (h *ElementHandler) SaveBatch(c *gin.Context) {
	var body saveElementsRequest
	if !bindAndValidate(c, &body) {
		return
	}

	inputs := make([]services.ElementInput, 0, len(body.Elements))
	for _, element := range body.Elements {
		inputs = append(inputs, services.ElementInput{
			ElementID: element.ElementID,
			Kind:      element.Kind,
			Payload:   element.Payload,
		})
	}

	saved, err := h.svc.SaveBatch(requestContext(c), currentUserID(c), c.Param("id"), inputs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, saved)
}

// GET /api/boards/:id/elements
func (h *ElementHandler) List(c *gin.Context) {
	elements, err := h.svc.List(requestContext(c), currentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, elements)
}

// DELETE /api/boards/:id/elements/:elementID
func (h *ElementHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), currentUserID(c), c.Param("id"), c.Param("elementID")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
