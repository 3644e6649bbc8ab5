// Package ledger provides the stock ledger: the append-ordered sequence of
// stock-in and stock-out transactions that is the single source of
// historical truth for ingredient quantities.
package ledger

import (
	"context"
	"time"

	"mise/internal/core/apperror"
	"mise/internal/core/entity"
	"mise/internal/core/id"
	"mise/internal/core/types"
)

// TxType is the direction of a stock transaction.
type TxType string

const (
	TxTypeIn  TxType = "in"
	TxTypeOut TxType = "out"
)

// Transaction is one dated stock movement with its items.
// Transactions are never deleted. They may be edited after the fact, in
// which case every downstream balance is recomputed by the cascade.
type Transaction struct {
	entity.BaseDocument

	Type TxType `db:"type" json:"type"`

	// Date is the business date of the movement. Ledger order is
	// (Date, CreatedAt): two transactions on the same date are ordered by
	// creation timestamp.
	Date time.Time `db:"date" json:"date"`

	// ActorID is the user who recorded the transaction.
	ActorID string `db:"actor_id" json:"actorId"`

	// Supplier is free text, stock-in only.
	Supplier string `db:"supplier" json:"supplier,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// Item is one ingredient line of a transaction.
type Item struct {
	ID            id.ID `db:"id" json:"id"`
	TransactionID id.ID `db:"transaction_id" json:"transactionId"`
	LineNo        int   `db:"line_no" json:"lineNo"`

	IngredientID id.ID          `db:"ingredient_id" json:"ingredientId"`
	Quantity     types.Quantity `db:"quantity" json:"quantity"`

	// QuantityBefore and QuantityAfter are ingredient-level snapshots at
	// the moment this item was applied. Within one ingredient's history
	// each item's QuantityBefore equals the previous item's QuantityAfter.
	QuantityBefore types.Quantity `db:"quantity_before" json:"quantityBefore"`
	QuantityAfter  types.Quantity `db:"quantity_after" json:"quantityAfter"`

	// ExpiryDate defines the created batch's expiry. Stock-in only.
	ExpiryDate *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`

	// Reason is free text. Stock-out only.
	Reason string `db:"reason" json:"reason,omitempty"`
}

// StockInItem is the caller's input for one stock-in line.
type StockInItem struct {
	IngredientID id.ID          `json:"ingredientId"`
	Quantity     types.Quantity `json:"quantity"`
	ExpiryDate   *time.Time     `json:"expiryDate,omitempty"`
}

// StockOutItem is the caller's input for one stock-out line.
type StockOutItem struct {
	IngredientID id.ID          `json:"ingredientId"`
	Quantity     types.Quantity `json:"quantity"`
	Reason       string         `json:"reason,omitempty"`
}

// ItemEdit is the caller's input for editing one existing item.
// The item keeps its identity, position and ingredient. Quantity is
// required; ExpiryDate and Reason leave the stored value unchanged when
// nil.
type ItemEdit struct {
	ItemID     id.ID          `json:"itemId"`
	Quantity   types.Quantity `json:"quantity"`
	ExpiryDate *time.Time     `json:"expiryDate,omitempty"` // in transactions
	Reason     *string        `json:"reason,omitempty"`     // out transactions
}

// NewTransaction creates a transaction shell without items.
func NewTransaction(txType TxType, date time.Time, actorID, supplier string) *Transaction {
	return &Transaction{
		BaseDocument: entity.NewBaseDocument(),
		Type:         txType,
		Date:         date.UTC(),
		ActorID:      actorID,
		Supplier:     supplier,
	}
}

// Validate implements entity self-validation.
func (t *Transaction) Validate(ctx context.Context) error {
	if t.Type != TxTypeIn && t.Type != TxTypeOut {
		return apperror.NewValidation("invalid transaction type").
			WithDetail("field", "type").
			WithDetail("value", string(t.Type))
	}

	if t.Date.IsZero() {
		return apperror.NewValidation("date is required").
			WithDetail("field", "date")
	}

	if len(t.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}

	for i, item := range t.Items {
		if id.IsNil(item.IngredientID) {
			return apperror.NewValidation("ingredient is required").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if !item.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "items").
				WithDetail("lineNo", i+1)
		}
		if t.Type == TxTypeOut && item.ExpiryDate != nil {
			return apperror.NewValidation("expiry date is only valid on stock-in items").
				WithDetail("lineNo", i+1)
		}
		if t.Type == TxTypeIn && item.Reason != "" {
			return apperror.NewValidation("reason is only valid on stock-out items").
				WithDetail("lineNo", i+1)
		}
	}

	return nil
}

// IngredientIDs returns the distinct ingredients touched by the transaction.
func (t *Transaction) IngredientIDs() []id.ID {
	seen := make(map[id.ID]struct{}, len(t.Items))
	ids := make([]id.ID, 0, len(t.Items))
	for _, item := range t.Items {
		if _, ok := seen[item.IngredientID]; ok {
			continue
		}
		seen[item.IngredientID] = struct{}{}
		ids = append(ids, item.IngredientID)
	}
	return ids
}
