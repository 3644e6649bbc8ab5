package handlers

import (
	"github.com/gin-gonic/gin"

	"mise/internal/domain/catalogs/ingredient"
	"mise/internal/infrastructure/http/v1/dto"
)

// IngredientHandler handles HTTP requests for the ingredient catalog.
type IngredientHandler struct {
	*BaseHandler
	service *ingredient.Service
}

// NewIngredientHandler creates a new ingredient handler.
func NewIngredientHandler(base *BaseHandler, service *ingredient.Service) *IngredientHandler {
	return &IngredientHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create registers a new ingredient with zero quantity.
// POST /api/v1/ingredients
func (h *IngredientHandler) Create(c *gin.Context) {
	var req dto.CreateIngredientRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ing, err := h.service.Create(c.Request.Context(), req.Name, ingredient.Unit(req.Unit))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromIngredient(ing))
}

// Get retrieves one ingredient.
// GET /api/v1/ingredients/:id
func (h *IngredientHandler) Get(c *gin.Context) {
	ingID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	ing, err := h.service.GetByID(c.Request.Context(), ingID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromIngredient(ing))
}

// List retrieves ingredients with filtering.
// GET /api/v1/ingredients
func (h *IngredientHandler) List(c *gin.Context) {
	var req dto.ListIngredientsRequest
	if !h.BindQuery(c, &req) {
		return
	}

	ings, err := h.service.List(c.Request.Context(), req.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	items := dto.FromIngredients(ings)
	h.OK(c, dto.ListResponse{
		Items:  items,
		Count:  len(items),
		Limit:  req.Limit,
		Offset: req.Offset,
	})
}

// Update renames an ingredient.
// PATCH /api/v1/ingredients/:id
func (h *IngredientHandler) Update(c *gin.Context) {
	ingID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateIngredientRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ing, err := h.service.Rename(c.Request.Context(), ingID, req.Name)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromIngredient(ing))
}

// Hide removes the ingredient from catalog listings. Ledger history stays.
// DELETE /api/v1/ingredients/:id
func (h *IngredientHandler) Hide(c *gin.Context) {
	ingID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Hide(c.Request.Context(), ingID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
