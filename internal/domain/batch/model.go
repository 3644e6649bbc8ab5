// Package batch provides the batch store: the authoritative set of stock
// batches per ingredient. A batch is created by a stock-in item and drained
// by stock-out items under the earliest-expiry-first policy. Fully drained
// batches are kept with zero remaining so ledger replay stays auditable.
package batch

import (
	"time"

	"mise/internal/core/id"
	"mise/internal/core/types"
)

// Batch is one received quantity of an ingredient.
type Batch struct {
	ID           id.ID `db:"id" json:"id"`
	IngredientID id.ID `db:"ingredient_id" json:"ingredientId"`

	// InitialQuantity is the quantity of the originating stock-in item.
	// Remaining never exceeds it.
	InitialQuantity types.Quantity `db:"initial_quantity" json:"initialQuantity"`
	Remaining       types.Quantity `db:"remaining" json:"remaining"`

	// ExpiryDate is nil when the batch has no tracked expiry.
	ExpiryDate *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	// ReceivedAt is the creation timestamp of the originating transaction.
	// Together with LineNo it gives the deterministic FIFO tie-break, so a
	// rebuild reproduces the same depletion order as the original inserts.
	ReceivedAt time.Time `db:"received_at" json:"receivedAt"`
	LineNo     int       `db:"line_no" json:"lineNo"`

	// OriginItemID references the stock-in transaction item that created
	// this batch.
	OriginItemID id.ID `db:"origin_item_id" json:"originItemId"`
}

// IsLive reports whether the batch still holds stock.
func (b *Batch) IsLive() bool {
	return b.Remaining.IsPositive()
}

// DaysUntilExpiry returns whole days between now and the expiry date,
// negative when already past. Second result is false without a tracked expiry.
func (b *Batch) DaysUntilExpiry(now time.Time) (int, bool) {
	if b.ExpiryDate == nil {
		return 0, false
	}
	nowDay := now.UTC().Truncate(24 * time.Hour)
	expDay := b.ExpiryDate.UTC().Truncate(24 * time.Hour)
	return int(expDay.Sub(nowDay).Hours() / 24), true
}

// ReplayKind marks the direction of a replayed ledger item.
type ReplayKind string

const (
	ReplayIn  ReplayKind = "in"
	ReplayOut ReplayKind = "out"
)

// ReplayItem is one ledger item in ingredient order, as consumed by Rebuild.
// The ledger engine produces these from the full transaction history.
type ReplayItem struct {
	Kind         ReplayKind
	ItemID       id.ID
	Quantity     types.Quantity
	ExpiryDate   *time.Time // in items only
	ReceivedAt   time.Time  // originating transaction creation timestamp
	LineNo       int
}
