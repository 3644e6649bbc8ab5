package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/batch"
	"mise/pkg/logger"
)

// EditTransaction applies a retroactive edit to an existing transaction and
// restores ledger consistency by replaying every affected ingredient's full
// history. The edit keeps the transaction's identity, type, date and item
// ingredient bindings; only quantities, expiry dates (stock-in) and reasons
// (stock-out) change.
//
// The whole operation is atomic: if any recomputed downstream stock-out
// would drive a balance below zero, the edit fails with InsufficientStock
// and the transaction, every snapshot touched by the replay, and all
// batches are left exactly as they were.
func (e *Engine) EditTransaction(ctx context.Context, txID id.ID, edits []ItemEdit, actorID string) (*Transaction, error) {
	if len(edits) == 0 {
		return nil, apperror.NewValidation("at least one item edit is required").
			WithDetail("field", "items")
	}

	// First read only determines the lock set; the authoritative state is
	// reloaded under the lock.
	t, err := e.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(t.IngredientIDs()...)
	defer unlock()

	err = e.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err = e.repo.GetTransaction(ctx, txID)
		if err != nil {
			return err
		}

		before, err := e.snapshotForAudit(ctx, t)
		if err != nil {
			return err
		}

		if err := applyEdits(t, edits); err != nil {
			return err
		}
		t.UpdatedBy = actorID
		t.Touch()

		if err := e.repo.UpdateTransaction(ctx, t); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}

		for _, ingID := range t.IngredientIDs() {
			if err := e.replayIngredient(ctx, ingID); err != nil {
				return err
			}
		}

		// Return value must carry the recomputed snapshots.
		t, err = e.repo.GetTransaction(ctx, txID)
		if err != nil {
			return err
		}

		after, err := e.snapshotForAudit(ctx, t)
		if err != nil {
			return err
		}

		return e.audit.RecordEdit(ctx, EditAuditEntry{
			ID:            id.New(),
			TransactionID: txID,
			ActorID:       actorID,
			Before:        before,
			After:         after,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "transaction edited",
		"transaction_id", txID,
		"items", len(edits),
	)

	return t, nil
}

// editSnapshot is the audit payload: the edited transaction together with
// the full item chain of every ingredient it touches, keyed by ingredient
// id. Capturing the chains means downstream snapshots rewritten by the
// cascade are auditable too, not just the edited transaction.
type editSnapshot struct {
	Transaction *Transaction           `json:"transaction"`
	Chains      map[string][]ChainItem `json:"chains"`
}

func (e *Engine) snapshotForAudit(ctx context.Context, t *Transaction) (json.RawMessage, error) {
	snap := editSnapshot{
		Transaction: t,
		Chains:      make(map[string][]ChainItem),
	}
	for _, ingID := range t.IngredientIDs() {
		chain, err := e.repo.ItemsByIngredient(ctx, ingID)
		if err != nil {
			return nil, fmt.Errorf("load chain for audit: %w", err)
		}
		snap.Chains[ingID.String()] = chain
	}

	b, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal edit snapshot: %w", err)
	}
	return b, nil
}

// replayIngredient recomputes the full snapshot chain for one ingredient,
// rebuilds its batches from the final item list and refreshes the cached
// quantity. Runs inside the cascade's transaction and lock scope.
func (e *Engine) replayIngredient(ctx context.Context, ingredientID id.ID) error {
	chain, err := e.repo.ItemsByIngredient(ctx, ingredientID)
	if err != nil {
		return fmt.Errorf("load item chain: %w", err)
	}

	var running types.Quantity
	updated := make([]Item, 0, len(chain))
	for i := range chain {
		ci := &chain[i]

		ci.QuantityBefore = running
		switch ci.TxType {
		case TxTypeIn:
			ci.QuantityAfter = ci.QuantityBefore + ci.Quantity
		case TxTypeOut:
			ci.QuantityAfter = ci.QuantityBefore - ci.Quantity
			if ci.QuantityAfter.IsNegative() {
				return apperror.NewInsufficientStock(
					ingredientID.String(),
					ci.Quantity.Float64(),
					ci.QuantityBefore.Float64(),
				).WithDetail("transaction_id", ci.TransactionID.String())
			}
		default:
			return apperror.NewLedgerCorruption("unknown transaction type in chain").
				WithDetail("transaction_id", ci.TransactionID.String())
		}
		running = ci.QuantityAfter

		updated = append(updated, ci.Item)
	}

	if err := e.repo.UpdateItemSnapshots(ctx, updated); err != nil {
		return fmt.Errorf("update snapshots: %w", err)
	}

	if err := e.batches.Rebuild(ctx, ingredientID, toReplayItems(chain)); err != nil {
		return err
	}

	// Rebuilt batches and the replayed chain are two routes to the same
	// number; a mismatch means the replay itself is broken.
	total, err := e.batches.LiveTotal(ctx, ingredientID)
	if err != nil {
		return err
	}
	if total != running {
		return apperror.NewLedgerCorruption("rebuilt batch total diverges from replayed balance").
			WithDetail("ingredient_id", ingredientID.String()).
			WithDetail("batch_total", total.String()).
			WithDetail("chain_balance", running.String())
	}

	return e.ingredients.UpdateQuantity(ctx, ingredientID, running)
}

// applyEdits merges the edits into the transaction's items by item id.
func applyEdits(t *Transaction, edits []ItemEdit) error {
	byID := make(map[id.ID]*Item, len(t.Items))
	for i := range t.Items {
		byID[t.Items[i].ID] = &t.Items[i]
	}

	for _, edit := range edits {
		item, ok := byID[edit.ItemID]
		if !ok {
			return apperror.NewValidation("item does not belong to transaction").
				WithDetail("item_id", edit.ItemID.String())
		}
		if !edit.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("item_id", edit.ItemID.String())
		}
		if t.Type == TxTypeOut && edit.ExpiryDate != nil {
			return apperror.NewValidation("expiry date is only valid on stock-in items").
				WithDetail("item_id", edit.ItemID.String())
		}
		if t.Type == TxTypeIn && edit.Reason != nil {
			return apperror.NewValidation("reason is only valid on stock-out items").
				WithDetail("item_id", edit.ItemID.String())
		}

		item.Quantity = edit.Quantity
		if edit.ExpiryDate != nil {
			item.ExpiryDate = edit.ExpiryDate
		}
		if edit.Reason != nil {
			item.Reason = *edit.Reason
		}
	}

	return nil
}

// toReplayItems converts an ordered chain into the batch store's replay form.
func toReplayItems(chain []ChainItem) []batch.ReplayItem {
	items := make([]batch.ReplayItem, 0, len(chain))
	for _, ci := range chain {
		kind := batch.ReplayIn
		if ci.TxType == TxTypeOut {
			kind = batch.ReplayOut
		}
		items = append(items, batch.ReplayItem{
			Kind:       kind,
			ItemID:     ci.ID,
			Quantity:   ci.Quantity,
			ExpiryDate: ci.ExpiryDate,
			ReceivedAt: ci.TxCreatedAt,
			LineNo:     ci.LineNo,
		})
	}
	return items
}
