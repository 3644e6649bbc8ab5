package dto

import (
	"time"

	"mise/internal/core/types"
	"mise/internal/domain/inventory"
)

// InventoryViewResponse is the derived inventory state for one ingredient.
type InventoryViewResponse struct {
	IngredientID     string         `json:"ingredientId"`
	Name             string         `json:"name"`
	Unit             string         `json:"unit"`
	CurrentQuantity  types.Quantity `json:"currentQuantity"`
	NearestExpiry    *time.Time     `json:"nearestExpiry,omitempty"`
	ExpiringQuantity types.Quantity `json:"expiringQuantity"`
	DaysUntilExpiry  *int           `json:"daysUntilExpiry,omitempty"`
	Bucket           string         `json:"bucket"`
}

// FromView creates InventoryViewResponse from the domain view.
func FromView(v *inventory.View) InventoryViewResponse {
	return InventoryViewResponse{
		IngredientID:     v.IngredientID.String(),
		Name:             v.Name,
		Unit:             string(v.Unit),
		CurrentQuantity:  v.CurrentQuantity,
		NearestExpiry:    v.NearestExpiry,
		ExpiringQuantity: v.ExpiringQuantity,
		DaysUntilExpiry:  v.DaysUntilExpiry,
		Bucket:           string(v.Bucket),
	}
}

// FromViews converts a list of domain views.
func FromViews(views []*inventory.View) []InventoryViewResponse {
	out := make([]InventoryViewResponse, len(views))
	for i, v := range views {
		out[i] = FromView(v)
	}
	return out
}

// ListInventoryRequest contains inventory listing filters.
type ListInventoryRequest struct {
	Bucket        string `form:"bucket" binding:"omitempty,oneof=expired critical warning notice normal none"`
	IncludeHidden bool   `form:"includeHidden"`
}

// ToFilter converts the request to a service filter.
func (r *ListInventoryRequest) ToFilter() inventory.ListFilter {
	return inventory.ListFilter{
		Bucket:        inventory.ExpiryBucket(r.Bucket),
		IncludeHidden: r.IncludeHidden,
	}
}
