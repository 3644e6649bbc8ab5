package ledger_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/catalogs/ingredient"
	"mise/internal/domain/ledger"
)

// riceFixture is the canonical cascade setup: two receipts with different
// expiry dates and one stock-out that drains across both.
type riceFixture struct {
	h    *harness
	rice *ingredient.Ingredient
	inA  *ledger.Transaction // 100 kg, expires Jun 1
	inB  *ledger.Transaction // 50 kg, expires Mar 1
	out  *ledger.Transaction // 60 kg
}

func newRiceFixture(t *testing.T) *riceFixture {
	t.Helper()
	h := newHarness(t)
	ctx := context.Background()
	rice := h.newIngredient(t, "Rice", ingredient.UnitKilograms)

	inA, err := h.engine.RecordStockIn(ctx, date(2026, 1, 5), "Grain Co", []ledger.StockInItem{
		{IngredientID: rice.ID, Quantity: qty(100), ExpiryDate: datePtr(2026, 6, 1)},
	}, "user-1")
	require.NoError(t, err)

	inB, err := h.engine.RecordStockIn(ctx, date(2026, 1, 6), "Grain Co", []ledger.StockInItem{
		{IngredientID: rice.ID, Quantity: qty(50), ExpiryDate: datePtr(2026, 3, 1)},
	}, "user-1")
	require.NoError(t, err)

	out, err := h.engine.RecordStockOut(ctx, date(2026, 1, 8), []ledger.StockOutItem{
		{IngredientID: rice.ID, Quantity: qty(60), Reason: "dinner service"},
	}, "user-1")
	require.NoError(t, err)

	return &riceFixture{h: h, rice: rice, inA: inA, inB: inB, out: out}
}

// remainders returns live batch remainders keyed by originating item id.
func (f *riceFixture) remainders(t *testing.T) map[id.ID]types.Quantity {
	t.Helper()
	live, err := f.h.batches.ListLive(context.Background(), f.rice.ID)
	require.NoError(t, err)
	out := make(map[id.ID]types.Quantity, len(live))
	for _, b := range live {
		out[b.OriginItemID] = b.Remaining
	}
	return out
}

func TestEditTransaction_ReducedStockOutRestoresBatches(t *testing.T) {
	f := newRiceFixture(t)
	ctx := context.Background()

	// Before the edit: the Mar 1 batch is fully drained, Jun 1 holds 90.
	pre := f.remainders(t)
	assert.Equal(t, qty(90), pre[f.inA.Items[0].ID])
	assert.NotContains(t, pre, f.inB.Items[0].ID)

	edited, err := f.h.engine.EditTransaction(ctx, f.out.ID, []ledger.ItemEdit{
		{ItemID: f.out.Items[0].ID, Quantity: qty(40)},
	}, "user-2")
	require.NoError(t, err)

	assert.Equal(t, qty(40), edited.Items[0].Quantity)
	assert.Equal(t, qty(150), edited.Items[0].QuantityBefore)
	assert.Equal(t, qty(110), edited.Items[0].QuantityAfter)
	assert.Equal(t, "user-2", edited.UpdatedBy)

	assert.Equal(t, qty(110), f.h.quantityOf(t, f.rice.ID))

	// The replay re-drains only 40 from the soonest-expiring batch.
	post := f.remainders(t)
	assert.Equal(t, qty(100), post[f.inA.Items[0].ID])
	assert.Equal(t, qty(10), post[f.inB.Items[0].ID])
}

func TestEditTransaction_EditedReceiptRewritesDownstreamSnapshots(t *testing.T) {
	f := newRiceFixture(t)
	ctx := context.Background()

	_, err := f.h.engine.EditTransaction(ctx, f.inA.ID, []ledger.ItemEdit{
		{ItemID: f.inA.Items[0].ID, Quantity: qty(120), ExpiryDate: datePtr(2026, 6, 1)},
	}, "user-2")
	require.NoError(t, err)

	// Every transaction after the edited one carries recomputed snapshots.
	inB, err := f.h.engine.GetTransaction(ctx, f.inB.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(120), inB.Items[0].QuantityBefore)
	assert.Equal(t, qty(170), inB.Items[0].QuantityAfter)

	out, err := f.h.engine.GetTransaction(ctx, f.out.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(170), out.Items[0].QuantityBefore)
	assert.Equal(t, qty(110), out.Items[0].QuantityAfter)

	assert.Equal(t, qty(110), f.h.quantityOf(t, f.rice.ID))
}

func TestEditTransaction_RejectedEditLeavesEverythingUntouched(t *testing.T) {
	f := newRiceFixture(t)
	ctx := context.Background()

	preQty := f.h.quantityOf(t, f.rice.ID)
	preBatches := f.remainders(t)
	preOut, err := f.h.engine.GetTransaction(ctx, f.out.ID)
	require.NoError(t, err)

	// Shrinking the first receipt to 5 kg would drive the stock-out negative.
	_, err = f.h.engine.EditTransaction(ctx, f.inA.ID, []ledger.ItemEdit{
		{ItemID: f.inA.Items[0].ID, Quantity: qty(5), ExpiryDate: datePtr(2026, 6, 1)},
	}, "user-2")
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	assert.Equal(t, preQty, f.h.quantityOf(t, f.rice.ID))
	assert.Equal(t, preBatches, f.remainders(t))

	inA, err := f.h.engine.GetTransaction(ctx, f.inA.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(100), inA.Items[0].Quantity, "rejected edit must not stick")
	assert.Equal(t, f.inA.Version, inA.Version)

	out, err := f.h.engine.GetTransaction(ctx, f.out.ID)
	require.NoError(t, err)
	assert.Equal(t, preOut.Items[0].QuantityBefore, out.Items[0].QuantityBefore)
	assert.Equal(t, preOut.Items[0].QuantityAfter, out.Items[0].QuantityAfter)

	history, err := f.h.engine.EditHistory(ctx, f.inA.ID)
	require.NoError(t, err)
	assert.Empty(t, history, "failed edits leave no audit trail")
}

func TestEditTransaction_AuditTrail(t *testing.T) {
	f := newRiceFixture(t)
	ctx := context.Background()

	_, err := f.h.engine.EditTransaction(ctx, f.out.ID, []ledger.ItemEdit{
		{ItemID: f.out.Items[0].ID, Quantity: qty(55)},
	}, "user-2")
	require.NoError(t, err)

	history, err := f.h.engine.EditHistory(ctx, f.out.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)

	entry := history[0]
	assert.Equal(t, f.out.ID, entry.TransactionID)
	assert.Equal(t, "user-2", entry.ActorID)
	assert.False(t, entry.CreatedAt.IsZero())

	type snapshot struct {
		Transaction ledger.Transaction            `json:"transaction"`
		Chains      map[string][]ledger.ChainItem `json:"chains"`
	}
	var before, after snapshot
	require.NoError(t, json.Unmarshal(entry.Before, &before))
	require.NoError(t, json.Unmarshal(entry.After, &after))
	assert.Equal(t, qty(60), before.Transaction.Items[0].Quantity)
	assert.Equal(t, qty(55), after.Transaction.Items[0].Quantity)

	// The payload also carries the full rice chain, so downstream snapshots
	// rewritten by the replay are preserved.
	beforeChain := before.Chains[f.rice.ID.String()]
	require.Len(t, beforeChain, 3)
	assert.Equal(t, qty(90), beforeChain[2].QuantityAfter)

	afterChain := after.Chains[f.rice.ID.String()]
	require.Len(t, afterChain, 3)
	assert.Equal(t, ledger.TxTypeOut, afterChain[2].TxType)
	assert.Equal(t, qty(95), afterChain[2].QuantityAfter)
}

func TestEditTransaction_QuantityOnlyEditKeepsFields(t *testing.T) {
	f := newRiceFixture(t)
	ctx := context.Background()

	// Editing only the quantity must not wipe the stock-out reason.
	editedOut, err := f.h.engine.EditTransaction(ctx, f.out.ID, []ledger.ItemEdit{
		{ItemID: f.out.Items[0].ID, Quantity: qty(45)},
	}, "user-2")
	require.NoError(t, err)
	assert.Equal(t, "dinner service", editedOut.Items[0].Reason)

	// Same for a receipt's expiry date.
	editedIn, err := f.h.engine.EditTransaction(ctx, f.inA.ID, []ledger.ItemEdit{
		{ItemID: f.inA.Items[0].ID, Quantity: qty(110)},
	}, "user-2")
	require.NoError(t, err)
	require.NotNil(t, editedIn.Items[0].ExpiryDate)
	assert.True(t, editedIn.Items[0].ExpiryDate.Equal(*datePtr(2026, 6, 1)))
}

func TestEditTransaction_ValidationErrors(t *testing.T) {
	f := newRiceFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		txID  id.ID
		edits []ledger.ItemEdit
	}{
		{
			name: "no edits",
			txID: f.out.ID,
		},
		{
			name: "item from another transaction",
			txID: f.out.ID,
			edits: []ledger.ItemEdit{
				{ItemID: f.inA.Items[0].ID, Quantity: qty(10)},
			},
		},
		{
			name: "non-positive quantity",
			txID: f.out.ID,
			edits: []ledger.ItemEdit{
				{ItemID: f.out.Items[0].ID, Quantity: 0},
			},
		},
		{
			name: "expiry date on stock-out",
			txID: f.out.ID,
			edits: []ledger.ItemEdit{
				{ItemID: f.out.Items[0].ID, Quantity: qty(10), ExpiryDate: datePtr(2026, 6, 1)},
			},
		},
		{
			name: "reason on stock-in",
			txID: f.inA.ID,
			edits: []ledger.ItemEdit{
				{ItemID: f.inA.Items[0].ID, Quantity: qty(10), Reason: strPtr("oops")},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.h.engine.EditTransaction(ctx, tc.txID, tc.edits, "user-2")
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}
}

func TestEditTransaction_UnknownTransaction(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.EditTransaction(context.Background(), id.New(), []ledger.ItemEdit{
		{ItemID: id.New(), Quantity: qty(1)},
	}, "user-1")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestEditTransaction_ChangedExpiryReordersDepletion(t *testing.T) {
	f := newRiceFixture(t)
	ctx := context.Background()

	// Push the Mar 1 batch past the Jun 1 one; the replayed stock-out now
	// drains the other receipt first.
	_, err := f.h.engine.EditTransaction(ctx, f.inB.ID, []ledger.ItemEdit{
		{ItemID: f.inB.Items[0].ID, Quantity: qty(50), ExpiryDate: datePtr(2026, 8, 1)},
	}, "user-2")
	require.NoError(t, err)

	post := f.remainders(t)
	assert.Equal(t, qty(40), post[f.inA.Items[0].ID])
	assert.Equal(t, qty(50), post[f.inB.Items[0].ID])
	assert.Equal(t, qty(90), f.h.quantityOf(t, f.rice.ID))
}
