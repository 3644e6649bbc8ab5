package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/keylock"
	"mise/internal/core/types"
	"mise/internal/domain/batch"
	"mise/internal/domain/catalogs/ingredient"
	"mise/internal/domain/ledger"
	"mise/internal/infrastructure/storage/memory"
)

// harness wires the engine onto the in-memory store the way cmd/server does.
type harness struct {
	engine  *ledger.Engine
	store   *memory.Store
	batches *batch.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem := memory.NewStore()
	batches := batch.NewStore(mem.Batches())
	engine := ledger.NewEngine(
		mem.Ledger(),
		mem.Ingredients(),
		batches,
		keylock.New(),
		mem,
		mem.Audit(),
	)
	return &harness{engine: engine, store: mem, batches: batches}
}

func (h *harness) newIngredient(t *testing.T, name string, unit ingredient.Unit) *ingredient.Ingredient {
	t.Helper()
	ing := ingredient.New(name, unit)
	require.NoError(t, h.store.Ingredients().Create(context.Background(), ing))
	return ing
}

func (h *harness) quantityOf(t *testing.T, ingID id.ID) types.Quantity {
	t.Helper()
	ing, err := h.store.Ingredients().GetByID(context.Background(), ingID)
	require.NoError(t, err)
	return ing.CurrentQuantity
}

func qty(v float64) types.Quantity {
	return types.NewQuantityFromFloat64(v)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func strPtr(s string) *string {
	return &s
}

func TestRecordStockIn_Snapshots(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	flour := h.newIngredient(t, "Flour", ingredient.UnitKilograms)

	tx, err := h.engine.RecordStockIn(ctx, date(2026, 1, 10), "Acme Foods", []ledger.StockInItem{
		{IngredientID: flour.ID, Quantity: qty(25), ExpiryDate: datePtr(2026, 6, 1)},
	}, "user-1")
	require.NoError(t, err)

	require.Len(t, tx.Items, 1)
	assert.Equal(t, ledger.TxTypeIn, tx.Type)
	assert.Equal(t, "Acme Foods", tx.Supplier)
	assert.Equal(t, types.Quantity(0), tx.Items[0].QuantityBefore)
	assert.Equal(t, qty(25), tx.Items[0].QuantityAfter)
	assert.Equal(t, 1, tx.Items[0].LineNo)

	assert.Equal(t, qty(25), h.quantityOf(t, flour.ID))

	total, err := h.batches.LiveTotal(ctx, flour.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(25), total, "cached quantity matches live batch total")
}

func TestRecordStockIn_SameIngredientTwiceIsSequential(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	flour := h.newIngredient(t, "Flour", ingredient.UnitKilograms)

	tx, err := h.engine.RecordStockIn(ctx, date(2026, 1, 10), "", []ledger.StockInItem{
		{IngredientID: flour.ID, Quantity: qty(10)},
		{IngredientID: flour.ID, Quantity: qty(5)},
	}, "user-1")
	require.NoError(t, err)

	require.Len(t, tx.Items, 2)
	assert.Equal(t, types.Quantity(0), tx.Items[0].QuantityBefore)
	assert.Equal(t, qty(10), tx.Items[0].QuantityAfter)
	assert.Equal(t, qty(10), tx.Items[1].QuantityBefore)
	assert.Equal(t, qty(15), tx.Items[1].QuantityAfter)

	assert.Equal(t, qty(15), h.quantityOf(t, flour.ID))
}

func TestRecordStockIn_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	flour := h.newIngredient(t, "Flour", ingredient.UnitKilograms)

	tests := []struct {
		name  string
		date  time.Time
		items []ledger.StockInItem
	}{
		{
			name:  "no items",
			date:  date(2026, 1, 10),
			items: nil,
		},
		{
			name: "zero quantity",
			date: date(2026, 1, 10),
			items: []ledger.StockInItem{
				{IngredientID: flour.ID, Quantity: 0},
			},
		},
		{
			name: "negative quantity",
			date: date(2026, 1, 10),
			items: []ledger.StockInItem{
				{IngredientID: flour.ID, Quantity: qty(-1)},
			},
		},
		{
			name: "missing ingredient",
			date: date(2026, 1, 10),
			items: []ledger.StockInItem{
				{Quantity: qty(1)},
			},
		},
		{
			name: "zero date",
			date: time.Time{},
			items: []ledger.StockInItem{
				{IngredientID: flour.ID, Quantity: qty(1)},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.engine.RecordStockIn(ctx, tc.date, "", tc.items, "user-1")
			require.Error(t, err)
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeValidation, appErr.Code)
		})
	}
}

func TestRecordStockIn_UnknownIngredient(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.RecordStockIn(context.Background(), date(2026, 1, 10), "", []ledger.StockInItem{
		{IngredientID: id.New(), Quantity: qty(1)},
	}, "user-1")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestRecordStockOut_DepletesFEFO(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	milk := h.newIngredient(t, "Milk", ingredient.UnitLiters)

	_, err := h.engine.RecordStockIn(ctx, date(2026, 1, 5), "", []ledger.StockInItem{
		{IngredientID: milk.ID, Quantity: qty(10), ExpiryDate: datePtr(2026, 2, 20)},
	}, "user-1")
	require.NoError(t, err)
	_, err = h.engine.RecordStockIn(ctx, date(2026, 1, 6), "", []ledger.StockInItem{
		{IngredientID: milk.ID, Quantity: qty(10), ExpiryDate: datePtr(2026, 2, 10)},
	}, "user-1")
	require.NoError(t, err)

	tx, err := h.engine.RecordStockOut(ctx, date(2026, 1, 7), []ledger.StockOutItem{
		{IngredientID: milk.ID, Quantity: qty(12), Reason: "brunch service"},
	}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, qty(20), tx.Items[0].QuantityBefore)
	assert.Equal(t, qty(8), tx.Items[0].QuantityAfter)
	assert.Equal(t, qty(8), h.quantityOf(t, milk.ID))

	// The Feb 10 batch drains first; the remainder sits in the Feb 20 batch.
	live, err := h.batches.ListLive(ctx, milk.ID)
	require.NoError(t, err)
	require.Len(t, live, 1)
	require.NotNil(t, live[0].ExpiryDate)
	assert.True(t, live[0].ExpiryDate.Equal(date(2026, 2, 20)))
	assert.Equal(t, qty(8), live[0].Remaining)
}

func TestRecordStockOut_InsufficientStockRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	milk := h.newIngredient(t, "Milk", ingredient.UnitLiters)
	eggs := h.newIngredient(t, "Eggs", ingredient.UnitPieces)

	_, err := h.engine.RecordStockIn(ctx, date(2026, 1, 5), "", []ledger.StockInItem{
		{IngredientID: milk.ID, Quantity: qty(10)},
		{IngredientID: eggs.ID, Quantity: qty(30)},
	}, "user-1")
	require.NoError(t, err)

	// First line is satisfiable, second is not. Nothing may be applied.
	_, err = h.engine.RecordStockOut(ctx, date(2026, 1, 6), []ledger.StockOutItem{
		{IngredientID: milk.ID, Quantity: qty(4)},
		{IngredientID: eggs.ID, Quantity: qty(31)},
	}, "user-1")
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	assert.Equal(t, qty(10), h.quantityOf(t, milk.ID))
	assert.Equal(t, qty(30), h.quantityOf(t, eggs.ID))

	milkTotal, err := h.batches.LiveTotal(ctx, milk.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(10), milkTotal, "rejected stock-out must not drain batches")

	txs, err := h.engine.ListTransactions(ctx, ledger.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, txs, 1, "only the stock-in is recorded")
}

func TestTransactionValidate_TypeSpecificFields(t *testing.T) {
	// The record API cannot express these combinations (StockInItem has no
	// Reason, StockOutItem no ExpiryDate), so validation is checked on the
	// persisted form directly: a stored item edited into an invalid shape
	// must not pass.
	in := ledger.NewTransaction(ledger.TxTypeIn, date(2026, 1, 5), "user-1", "")
	in.Items = []ledger.Item{
		{ID: id.New(), IngredientID: id.New(), Quantity: qty(10), Reason: "spoiled"},
	}
	err := in.Validate(context.Background())
	require.Error(t, err, "reason is a stock-out field")
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	out := ledger.NewTransaction(ledger.TxTypeOut, date(2026, 1, 5), "user-1", "")
	out.Items = []ledger.Item{
		{ID: id.New(), IngredientID: id.New(), Quantity: qty(10), ExpiryDate: datePtr(2026, 6, 1)},
	}
	err = out.Validate(context.Background())
	require.Error(t, err, "expiry date is a stock-in field")
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestGetTransaction_NotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.GetTransaction(context.Background(), id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestListTransactions_NewestFirstAndFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	milk := h.newIngredient(t, "Milk", ingredient.UnitLiters)
	eggs := h.newIngredient(t, "Eggs", ingredient.UnitPieces)

	_, err := h.engine.RecordStockIn(ctx, date(2026, 1, 5), "", []ledger.StockInItem{
		{IngredientID: milk.ID, Quantity: qty(10)},
	}, "user-1")
	require.NoError(t, err)
	_, err = h.engine.RecordStockIn(ctx, date(2026, 1, 7), "", []ledger.StockInItem{
		{IngredientID: eggs.ID, Quantity: qty(30)},
	}, "user-1")
	require.NoError(t, err)
	_, err = h.engine.RecordStockOut(ctx, date(2026, 1, 9), []ledger.StockOutItem{
		{IngredientID: milk.ID, Quantity: qty(2)},
	}, "user-1")
	require.NoError(t, err)

	all, err := h.engine.ListTransactions(ctx, ledger.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Date.After(all[1].Date), "newest first")
	assert.True(t, all[1].Date.After(all[2].Date))

	outType := ledger.TxTypeOut
	outs, err := h.engine.ListTransactions(ctx, ledger.ListFilter{Type: &outType})
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, ledger.TxTypeOut, outs[0].Type)

	milkOnly, err := h.engine.ListTransactions(ctx, ledger.ListFilter{IngredientID: &milk.ID})
	require.NoError(t, err)
	assert.Len(t, milkOnly, 2)

	from := date(2026, 1, 6)
	to := date(2026, 1, 8)
	ranged, err := h.engine.ListTransactions(ctx, ledger.ListFilter{FromDate: &from, ToDate: &to})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.True(t, ranged[0].Date.Equal(date(2026, 1, 7)))
}

func TestEditHistory_UnknownTransaction(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.EditHistory(context.Background(), id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
