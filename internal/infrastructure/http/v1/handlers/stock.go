package handlers

import (
	"github.com/gin-gonic/gin"

	"mise/internal/domain/ledger"
	"mise/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for the stock ledger.
type StockHandler struct {
	*BaseHandler
	engine *ledger.Engine
}

// NewStockHandler creates a new stock handler.
func NewStockHandler(base *BaseHandler, engine *ledger.Engine) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		engine:      engine,
	}
}

// StockIn records incoming stock: one batch per item.
// POST /api/v1/stock/in
func (h *StockHandler) StockIn(c *gin.Context) {
	var req dto.StockInRequest
	if !h.BindJSON(c, &req) {
		return
	}

	items, err := req.ToItems()
	if err != nil {
		h.Error(c, err)
		return
	}

	t, err := h.engine.RecordStockIn(c.Request.Context(), req.Date, req.Supplier, items, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromTransaction(t))
}

// StockOut records stock usage or spoilage, depleting batches
// earliest-expiry-first.
// POST /api/v1/stock/out
func (h *StockHandler) StockOut(c *gin.Context) {
	var req dto.StockOutRequest
	if !h.BindJSON(c, &req) {
		return
	}

	items, err := req.ToItems()
	if err != nil {
		h.Error(c, err)
		return
	}

	t, err := h.engine.RecordStockOut(c.Request.Context(), req.Date, items, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromTransaction(t))
}

// Edit applies a retroactive edit and recomputes downstream balances.
// PUT /api/v1/stock/transactions/:id
func (h *StockHandler) Edit(c *gin.Context) {
	txID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.EditTransactionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	edits, err := req.ToEdits()
	if err != nil {
		h.Error(c, err)
		return
	}

	t, err := h.engine.EditTransaction(c.Request.Context(), txID, edits, h.GetUserID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTransaction(t))
}

// Get retrieves one transaction with items.
// GET /api/v1/stock/transactions/:id
func (h *StockHandler) Get(c *gin.Context) {
	txID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	t, err := h.engine.GetTransaction(c.Request.Context(), txID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTransaction(t))
}

// List retrieves transaction history, newest first.
// GET /api/v1/stock/transactions
func (h *StockHandler) List(c *gin.Context) {
	var req dto.ListTransactionsRequest
	if !h.BindQuery(c, &req) {
		return
	}

	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	txs, err := h.engine.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := dto.FromTransactions(txs)
	h.OK(c, dto.ListResponse{
		Items:  items,
		Count:  len(items),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Audit returns the edit trail for a transaction, newest first.
// GET /api/v1/stock/transactions/:id/audit
func (h *StockHandler) Audit(c *gin.Context) {
	txID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	entries, err := h.engine.EditHistory(c.Request.Context(), txID)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := dto.FromEditAudit(entries)
	h.OK(c, dto.ListResponse{Items: items, Count: len(items)})
}
