package dto

import (
	"time"

	"mise/internal/core/types"
	"mise/internal/domain/catalogs/ingredient"
)

// --- Request DTOs ---

// CreateIngredientRequest represents a request to register an ingredient.
type CreateIngredientRequest struct {
	Name string `json:"name" binding:"required"`
	Unit string `json:"unit" binding:"required"`
}

// UpdateIngredientRequest represents a rename request.
type UpdateIngredientRequest struct {
	Name string `json:"name" binding:"required"`
}

// ListIngredientsRequest contains ingredient listing filters.
type ListIngredientsRequest struct {
	Search        string `form:"search"`
	IncludeHidden bool   `form:"includeHidden"`
	Limit         int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset        int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the request to a repository filter.
func (r *ListIngredientsRequest) ToFilter() ingredient.ListFilter {
	return ingredient.ListFilter{
		NameContains:  r.Search,
		IncludeHidden: r.IncludeHidden,
		Limit:         r.Limit,
		Offset:        r.Offset,
	}
}

// --- Response DTOs ---

// IngredientResponse represents an ingredient in API responses.
type IngredientResponse struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Unit            string         `json:"unit"`
	CurrentQuantity types.Quantity `json:"currentQuantity"`
	Hidden          bool           `json:"hidden"`
	Version         int            `json:"version"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// FromIngredient creates IngredientResponse from domain entity.
func FromIngredient(ing *ingredient.Ingredient) IngredientResponse {
	return IngredientResponse{
		ID:              ing.ID.String(),
		Name:            ing.Name,
		Unit:            string(ing.Unit),
		CurrentQuantity: ing.CurrentQuantity,
		Hidden:          ing.Hidden,
		Version:         ing.Version,
		CreatedAt:       ing.CreatedAt,
		UpdatedAt:       ing.UpdatedAt,
	}
}

// FromIngredients converts a list of domain entities.
func FromIngredients(ings []*ingredient.Ingredient) []IngredientResponse {
	out := make([]IngredientResponse, len(ings))
	for i, ing := range ings {
		out[i] = FromIngredient(ing)
	}
	return out
}
