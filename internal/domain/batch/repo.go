package batch

import (
	"context"

	"mise/internal/core/id"
)

// Repository defines operations for batch persistence.
// Batches are only mutated inside a surrounding ledger transaction.
type Repository interface {
	// Insert stores a new batch.
	Insert(ctx context.Context, b *Batch) error

	// UpdateRemaining persists a changed remaining quantity.
	UpdateRemaining(ctx context.Context, b *Batch) error

	// ListByIngredient returns all batches for the ingredient, drained
	// ones included, in no particular order.
	ListByIngredient(ctx context.Context, ingredientID id.ID) ([]*Batch, error)

	// ListLive returns batches with remaining > 0.
	ListLive(ctx context.Context, ingredientID id.ID) ([]*Batch, error)

	// ReplaceForIngredient atomically swaps the ingredient's batch set.
	// Used by Rebuild after a ledger edit.
	ReplaceForIngredient(ctx context.Context, ingredientID id.ID, batches []*Batch) error
}
