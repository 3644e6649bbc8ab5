package handlers

import (
	"github.com/gin-gonic/gin"

	"mise/internal/domain/catalogs/ingredient"
	"mise/internal/domain/inventory"
	"mise/internal/infrastructure/http/v1/dto"
)

// InventoryHandler handles HTTP requests for the aggregate inventory view.
type InventoryHandler struct {
	*BaseHandler
	service *inventory.Service
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, service *inventory.Service) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List returns derived views for all ingredients, optionally filtered by
// expiry bucket.
// GET /api/v1/inventory
func (h *InventoryHandler) List(c *gin.Context) {
	var req dto.ListInventoryRequest
	if !h.BindQuery(c, &req) {
		return
	}

	views, err := h.service.ListViews(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	items := dto.FromViews(views)
	h.OK(c, dto.ListResponse{Items: items, Count: len(items)})
}

// Get returns the derived view for one ingredient. An optional unit query
// parameter re-expresses the quantities in a compatible unit of measure.
// GET /api/v1/inventory/:ingredientId?unit=grams
func (h *InventoryHandler) Get(c *gin.Context) {
	ingID, ok := h.ParseID(c, "ingredientId")
	if !ok {
		return
	}

	view, err := h.service.GetView(c.Request.Context(), ingID)
	if err != nil {
		h.Error(c, err)
		return
	}

	if unit := c.Query("unit"); unit != "" {
		view, err = view.InUnit(ingredient.Unit(unit))
		if err != nil {
			h.Error(c, err)
			return
		}
	}

	h.OK(c, dto.FromView(view))
}
