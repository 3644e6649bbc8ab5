package dto

import (
	"encoding/json"
	"time"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/ledger"
)

// --- Request DTOs ---

// StockInItemRequest is one line of a stock-in request.
type StockInItemRequest struct {
	IngredientID string         `json:"ingredientId" binding:"required"`
	Quantity     types.Quantity `json:"quantity" binding:"required"`
	ExpiryDate   *time.Time     `json:"expiryDate,omitempty"`
}

// StockInRequest represents a request to record incoming stock.
type StockInRequest struct {
	Date     time.Time            `json:"date" binding:"required"`
	Supplier string               `json:"supplier,omitempty"`
	Items    []StockInItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ToItems converts request lines to domain input.
func (r *StockInRequest) ToItems() ([]ledger.StockInItem, error) {
	items := make([]ledger.StockInItem, 0, len(r.Items))
	for i, line := range r.Items {
		ingID, err := id.Parse(line.IngredientID)
		if err != nil {
			return nil, apperror.NewValidation("invalid ingredient id").
				WithDetail("lineNo", i+1).
				WithDetail("value", line.IngredientID)
		}
		items = append(items, ledger.StockInItem{
			IngredientID: ingID,
			Quantity:     line.Quantity,
			ExpiryDate:   line.ExpiryDate,
		})
	}
	return items, nil
}

// StockOutItemRequest is one line of a stock-out request.
type StockOutItemRequest struct {
	IngredientID string         `json:"ingredientId" binding:"required"`
	Quantity     types.Quantity `json:"quantity" binding:"required"`
	Reason       string         `json:"reason,omitempty"`
}

// StockOutRequest represents a request to record stock usage or spoilage.
type StockOutRequest struct {
	Date  time.Time             `json:"date" binding:"required"`
	Items []StockOutItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ToItems converts request lines to domain input.
func (r *StockOutRequest) ToItems() ([]ledger.StockOutItem, error) {
	items := make([]ledger.StockOutItem, 0, len(r.Items))
	for i, line := range r.Items {
		ingID, err := id.Parse(line.IngredientID)
		if err != nil {
			return nil, apperror.NewValidation("invalid ingredient id").
				WithDetail("lineNo", i+1).
				WithDetail("value", line.IngredientID)
		}
		items = append(items, ledger.StockOutItem{
			IngredientID: ingID,
			Quantity:     line.Quantity,
			Reason:       line.Reason,
		})
	}
	return items, nil
}

// ItemEditRequest is one edited line of an existing transaction.
// Omitted expiryDate and reason keep the stored values.
type ItemEditRequest struct {
	ItemID     string         `json:"itemId" binding:"required"`
	Quantity   types.Quantity `json:"quantity" binding:"required"`
	ExpiryDate *time.Time     `json:"expiryDate,omitempty"`
	Reason     *string        `json:"reason,omitempty"`
}

// EditTransactionRequest represents a retroactive edit.
type EditTransactionRequest struct {
	Items []ItemEditRequest `json:"items" binding:"required,min=1,dive"`
}

// ToEdits converts request lines to domain input.
func (r *EditTransactionRequest) ToEdits() ([]ledger.ItemEdit, error) {
	edits := make([]ledger.ItemEdit, 0, len(r.Items))
	for i, line := range r.Items {
		itemID, err := id.Parse(line.ItemID)
		if err != nil {
			return nil, apperror.NewValidation("invalid item id").
				WithDetail("lineNo", i+1).
				WithDetail("value", line.ItemID)
		}
		edits = append(edits, ledger.ItemEdit{
			ItemID:     itemID,
			Quantity:   line.Quantity,
			ExpiryDate: line.ExpiryDate,
			Reason:     line.Reason,
		})
	}
	return edits, nil
}

// ListTransactionsRequest contains history filters.
type ListTransactionsRequest struct {
	IngredientID string     `form:"ingredientId"`
	Type         string     `form:"type" binding:"omitempty,oneof=in out"`
	From         *time.Time `form:"from"`
	To           *time.Time `form:"to"`
	Limit        int        `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset       int        `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the request to a repository filter.
func (r *ListTransactionsRequest) ToFilter() (ledger.ListFilter, error) {
	filter := ledger.ListFilter{
		FromDate: r.From,
		ToDate:   r.To,
		Limit:    r.Limit,
		Offset:   r.Offset,
	}
	if r.IngredientID != "" {
		ingID, err := id.Parse(r.IngredientID)
		if err != nil {
			return filter, apperror.NewValidation("invalid ingredient id").
				WithDetail("value", r.IngredientID)
		}
		filter.IngredientID = &ingID
	}
	if r.Type != "" {
		t := ledger.TxType(r.Type)
		filter.Type = &t
	}
	return filter, nil
}

// --- Response DTOs ---

// TransactionItemResponse represents one line in API responses.
type TransactionItemResponse struct {
	ID             string         `json:"id"`
	LineNo         int            `json:"lineNo"`
	IngredientID   string         `json:"ingredientId"`
	Quantity       types.Quantity `json:"quantity"`
	QuantityBefore types.Quantity `json:"quantityBefore"`
	QuantityAfter  types.Quantity `json:"quantityAfter"`
	ExpiryDate     *time.Time     `json:"expiryDate,omitempty"`
	Reason         string         `json:"reason,omitempty"`
}

// TransactionResponse represents a ledger transaction in API responses.
type TransactionResponse struct {
	ID        string                    `json:"id"`
	Type      string                    `json:"type"`
	Date      time.Time                 `json:"date"`
	ActorID   string                    `json:"actorId"`
	Supplier  string                    `json:"supplier,omitempty"`
	Version   int                       `json:"version"`
	CreatedAt time.Time                 `json:"createdAt"`
	UpdatedAt time.Time                 `json:"updatedAt"`
	Items     []TransactionItemResponse `json:"items"`
}

// FromTransaction creates TransactionResponse from domain entity.
func FromTransaction(t *ledger.Transaction) TransactionResponse {
	items := make([]TransactionItemResponse, len(t.Items))
	for i, item := range t.Items {
		items[i] = TransactionItemResponse{
			ID:             item.ID.String(),
			LineNo:         item.LineNo,
			IngredientID:   item.IngredientID.String(),
			Quantity:       item.Quantity,
			QuantityBefore: item.QuantityBefore,
			QuantityAfter:  item.QuantityAfter,
			ExpiryDate:     item.ExpiryDate,
			Reason:         item.Reason,
		}
	}
	return TransactionResponse{
		ID:        t.ID.String(),
		Type:      string(t.Type),
		Date:      t.Date,
		ActorID:   t.ActorID,
		Supplier:  t.Supplier,
		Version:   t.Version,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
		Items:     items,
	}
}

// FromTransactions converts a list of domain entities.
func FromTransactions(txs []*ledger.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, len(txs))
	for i, t := range txs {
		out[i] = FromTransaction(t)
	}
	return out
}

// EditAuditResponse represents one edit-trail entry.
type EditAuditResponse struct {
	ID        string          `json:"id"`
	ActorID   string          `json:"actorId"`
	Before    json.RawMessage `json:"before"`
	After     json.RawMessage `json:"after"`
	CreatedAt time.Time       `json:"createdAt"`
}

// FromEditAudit converts edit-trail entries.
func FromEditAudit(entries []ledger.EditAuditEntry) []EditAuditResponse {
	out := make([]EditAuditResponse, len(entries))
	for i, e := range entries {
		out[i] = EditAuditResponse{
			ID:        e.ID.String(),
			ActorID:   e.ActorID,
			Before:    e.Before,
			After:     e.After,
			CreatedAt: e.CreatedAt,
		}
	}
	return out
}
