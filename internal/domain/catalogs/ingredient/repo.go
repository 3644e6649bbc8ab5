package ingredient

import (
	"context"

	"mise/internal/core/id"
	"mise/internal/core/types"
)

// ListFilter narrows ingredient listings.
type ListFilter struct {
	// NameContains filters by case-insensitive substring match.
	NameContains string

	// IncludeHidden includes ingredients removed from the catalog UI.
	IncludeHidden bool

	Limit  int
	Offset int
}

// Repository defines the interface for Ingredient persistence.
type Repository interface {
	Create(ctx context.Context, ing *Ingredient) error

	GetByID(ctx context.Context, ingredientID id.ID) (*Ingredient, error)

	// GetForUpdate retrieves the ingredient with a row lock. Called inside
	// a transaction by the ledger engine to pin the cached quantity.
	GetForUpdate(ctx context.Context, ingredientID id.ID) (*Ingredient, error)

	Update(ctx context.Context, ing *Ingredient) error

	// UpdateQuantity sets the cached quantity (ledger engine only).
	UpdateQuantity(ctx context.Context, ingredientID id.ID, quantity types.Quantity) error

	List(ctx context.Context, filter ListFilter) ([]*Ingredient, error)
}
