package ledger

import (
	"context"
	"fmt"
	"time"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/keylock"
	"mise/internal/core/tx"
	"mise/internal/domain/batch"
	"mise/internal/domain/catalogs/ingredient"
	"mise/pkg/logger"
)

// Engine validates and applies stock transactions. It computes the
// before/after snapshots at insertion time and keeps the cached ingredient
// quantity in step with the batch store. Past transactions are only
// mutated through EditTransaction (cascade.go).
//
// All mutating entry points serialize per ingredient through the keyed
// mutex: the lock set for every touched ingredient is taken, in ascending
// id order, before the first balance read and held until commit.
type Engine struct {
	repo        Repository
	ingredients ingredient.Repository
	batches     *batch.Store
	locks       *keylock.KeyedMutex
	txManager   tx.Manager
	audit       EditAudit
}

// NewEngine creates a new ledger engine.
func NewEngine(
	repo Repository,
	ingredients ingredient.Repository,
	batches *batch.Store,
	locks *keylock.KeyedMutex,
	txManager tx.Manager,
	audit EditAudit,
) *Engine {
	return &Engine{
		repo:        repo,
		ingredients: ingredients,
		batches:     batches,
		locks:       locks,
		txManager:   txManager,
		audit:       audit,
	}
}

// RecordStockIn appends a stock-in transaction. Each item creates a batch;
// snapshots are taken per item in order, so one transaction listing the
// same ingredient twice behaves as two sequential deltas.
func (e *Engine) RecordStockIn(ctx context.Context, date time.Time, supplier string, items []StockInItem, actorID string) (*Transaction, error) {
	t := NewTransaction(TxTypeIn, date, actorID, supplier)
	for i, in := range items {
		t.Items = append(t.Items, Item{
			ID:            id.New(),
			TransactionID: t.ID,
			LineNo:        i + 1,
			IngredientID:  in.IngredientID,
			Quantity:      in.Quantity,
			ExpiryDate:    in.ExpiryDate,
		})
	}

	if err := t.Validate(ctx); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(t.IngredientIDs()...)
	defer unlock()

	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		loaded, err := e.loadForUpdate(ctx, t.IngredientIDs())
		if err != nil {
			return err
		}

		for i := range t.Items {
			item := &t.Items[i]
			ing := loaded[item.IngredientID]

			item.QuantityBefore = ing.CurrentQuantity
			item.QuantityAfter = item.QuantityBefore + item.Quantity

			if err := e.batches.AddBatch(ctx, &batch.Batch{
				IngredientID:    item.IngredientID,
				InitialQuantity: item.Quantity,
				ExpiryDate:      item.ExpiryDate,
				ReceivedAt:      t.CreatedAt,
				LineNo:          item.LineNo,
				OriginItemID:    item.ID,
			}); err != nil {
				return err
			}

			ing.CurrentQuantity = item.QuantityAfter
		}

		if err := e.repo.CreateTransaction(ctx, t); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}

		return e.flushQuantities(ctx, loaded)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock-in recorded",
		"transaction_id", t.ID,
		"items", len(t.Items),
		"supplier", supplier,
	)

	return t, nil
}

// RecordStockOut appends a stock-out transaction. Any item exceeding its
// ingredient's balance rejects the whole transaction; nothing is applied.
func (e *Engine) RecordStockOut(ctx context.Context, date time.Time, items []StockOutItem, actorID string) (*Transaction, error) {
	t := NewTransaction(TxTypeOut, date, actorID, "")
	for i, out := range items {
		t.Items = append(t.Items, Item{
			ID:            id.New(),
			TransactionID: t.ID,
			LineNo:        i + 1,
			IngredientID:  out.IngredientID,
			Quantity:      out.Quantity,
			Reason:        out.Reason,
		})
	}

	if err := t.Validate(ctx); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(t.IngredientIDs()...)
	defer unlock()

	err := e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		loaded, err := e.loadForUpdate(ctx, t.IngredientIDs())
		if err != nil {
			return err
		}

		for i := range t.Items {
			item := &t.Items[i]
			ing := loaded[item.IngredientID]

			if item.Quantity > ing.CurrentQuantity {
				return apperror.NewInsufficientStock(
					item.IngredientID.String(),
					item.Quantity.Float64(),
					ing.CurrentQuantity.Float64(),
				).WithDetail("lineNo", item.LineNo)
			}

			item.QuantityBefore = ing.CurrentQuantity
			item.QuantityAfter = item.QuantityBefore - item.Quantity

			if err := e.batches.Deplete(ctx, item.IngredientID, item.Quantity); err != nil {
				return err
			}

			ing.CurrentQuantity = item.QuantityAfter
		}

		if err := e.repo.CreateTransaction(ctx, t); err != nil {
			return fmt.Errorf("create transaction: %w", err)
		}

		return e.flushQuantities(ctx, loaded)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock-out recorded",
		"transaction_id", t.ID,
		"items", len(t.Items),
	)

	return t, nil
}

// GetTransaction retrieves a transaction with items.
func (e *Engine) GetTransaction(ctx context.Context, txID id.ID) (*Transaction, error) {
	return e.repo.GetTransaction(ctx, txID)
}

// ListTransactions retrieves transaction history, newest first.
func (e *Engine) ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return e.repo.List(ctx, filter)
}

// EditHistory returns the audit trail for a transaction.
func (e *Engine) EditHistory(ctx context.Context, txID id.ID) ([]EditAuditEntry, error) {
	if _, err := e.repo.GetTransaction(ctx, txID); err != nil {
		return nil, err
	}
	return e.audit.History(ctx, txID)
}

// loadForUpdate loads and row-locks the given ingredients, keyed by id.
// The map is shared across items so repeated ingredients see each other's
// running balance.
func (e *Engine) loadForUpdate(ctx context.Context, ids []id.ID) (map[id.ID]*ingredient.Ingredient, error) {
	loaded := make(map[id.ID]*ingredient.Ingredient, len(ids))
	for _, ingID := range ids {
		ing, err := e.ingredients.GetForUpdate(ctx, ingID)
		if err != nil {
			return nil, err
		}
		loaded[ingID] = ing
	}
	return loaded, nil
}

// flushQuantities persists the cached quantities accumulated in loaded.
func (e *Engine) flushQuantities(ctx context.Context, loaded map[id.ID]*ingredient.Ingredient) error {
	for _, ing := range loaded {
		if err := e.ingredients.UpdateQuantity(ctx, ing.ID, ing.CurrentQuantity); err != nil {
			return fmt.Errorf("update cached quantity for %s: %w", ing.ID, err)
		}
	}
	return nil
}
