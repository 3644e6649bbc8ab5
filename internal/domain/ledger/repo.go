package ledger

import (
	"context"
	"time"

	"mise/internal/core/id"
)

// ListFilter narrows transaction listings.
type ListFilter struct {
	IngredientID *id.ID
	Type         *TxType
	FromDate     *time.Time
	ToDate       *time.Time
	Limit        int
	Offset       int
}

// ChainItem is an item joined with its transaction's ordering fields.
// The chain for one ingredient, ordered by (TxDate, TxCreatedAt, LineNo),
// is the full replayable history the cascade walks.
type ChainItem struct {
	Item

	TxType      TxType    `db:"tx_type" json:"txType"`
	TxDate      time.Time `db:"tx_date" json:"txDate"`
	TxCreatedAt time.Time `db:"tx_created_at" json:"txCreatedAt"`
}

// Repository defines operations for ledger persistence.
type Repository interface {
	// CreateTransaction appends a transaction with its items.
	CreateTransaction(ctx context.Context, t *Transaction) error

	// GetTransaction retrieves a transaction with items, NotFound if missing.
	GetTransaction(ctx context.Context, txID id.ID) (*Transaction, error)

	// UpdateTransaction persists edited header fields and items of one
	// transaction (cascade only; ledger position never changes).
	UpdateTransaction(ctx context.Context, t *Transaction) error

	// UpdateItemSnapshots persists recomputed before/after snapshots for
	// items across transactions (cascade only).
	UpdateItemSnapshots(ctx context.Context, items []Item) error

	// ItemsByIngredient returns every item ever recorded for the
	// ingredient, ordered by (transaction date, transaction creation
	// timestamp, line number).
	ItemsByIngredient(ctx context.Context, ingredientID id.ID) ([]ChainItem, error)

	// List retrieves transactions with items, newest first.
	List(ctx context.Context, filter ListFilter) ([]*Transaction, error)
}
