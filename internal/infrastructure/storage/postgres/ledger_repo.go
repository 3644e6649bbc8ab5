package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/domain/ledger"
)

var (
	transactionCols = []string{
		"id", "version", "created_at", "updated_at", "created_by", "updated_by",
		"type", "date", "actor_id", "supplier",
	}
	itemCols = []string{
		"id", "transaction_id", "line_no", "ingredient_id",
		"quantity", "quantity_before", "quantity_after", "expiry_date", "reason",
	}
)

// LedgerRepo implements ledger.Repository on PostgreSQL.
type LedgerRepo struct {
	txm *TxManager
}

// NewLedgerRepo creates the repository.
func NewLedgerRepo(txm *TxManager) *LedgerRepo {
	return &LedgerRepo{txm: txm}
}

var _ ledger.Repository = (*LedgerRepo)(nil)

func (r *LedgerRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *LedgerRepo) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	q := r.builder().
		Insert("stock_transactions").
		Columns(transactionCols...).
		Values(
			t.ID, t.Version, t.CreatedAt, t.UpdatedAt, t.CreatedBy, t.UpdatedBy,
			t.Type, t.Date, t.ActorID, t.Supplier,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("transaction", "id", t.ID.String())
		}
		return fmt.Errorf("insert transaction: %w", err)
	}

	return r.insertItems(ctx, t)
}

func (r *LedgerRepo) insertItems(ctx context.Context, t *ledger.Transaction) error {
	if len(t.Items) == 0 {
		return nil
	}

	q := r.builder().
		Insert("stock_transaction_items").
		Columns(itemCols...)
	for _, item := range t.Items {
		q = q.Values(
			item.ID, item.TransactionID, item.LineNo, item.IngredientID,
			item.Quantity, item.QuantityBefore, item.QuantityAfter,
			item.ExpiryDate, item.Reason,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert items: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NewNotFound("ingredient", "referenced by transaction item")
		}
		return fmt.Errorf("insert transaction items: %w", err)
	}

	return nil
}

func (r *LedgerRepo) GetTransaction(ctx context.Context, txID id.ID) (*ledger.Transaction, error) {
	q := r.builder().
		Select(transactionCols...).
		From("stock_transactions").
		Where(squirrel.Eq{"id": txID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var t ledger.Transaction
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &t, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("transaction", txID.String())
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	items, err := r.itemsForTransactions(ctx, []id.ID{txID})
	if err != nil {
		return nil, err
	}
	t.Items = items[txID]

	return &t, nil
}

func (r *LedgerRepo) UpdateTransaction(ctx context.Context, t *ledger.Transaction) error {
	q := r.builder().
		Update("stock_transactions").
		Set("version", t.Version).
		Set("updated_at", t.UpdatedAt).
		Set("updated_by", t.UpdatedBy).
		Set("supplier", t.Supplier).
		Where(squirrel.Eq{"id": t.ID}).
		Where(squirrel.Eq{"version": t.Version - 1})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConflict("transaction was modified concurrently").
			WithDetail("id", t.ID.String())
	}

	// Items keep their identity across edits, so rewrite in place.
	if err := r.UpdateItemSnapshots(ctx, t.Items); err != nil {
		return err
	}

	return nil
}

func (r *LedgerRepo) UpdateItemSnapshots(ctx context.Context, items []ledger.Item) error {
	querier := r.txm.GetQuerier(ctx)

	for _, item := range items {
		q := r.builder().
			Update("stock_transaction_items").
			Set("quantity", item.Quantity).
			Set("quantity_before", item.QuantityBefore).
			Set("quantity_after", item.QuantityAfter).
			Set("expiry_date", item.ExpiryDate).
			Set("reason", item.Reason).
			Where(squirrel.Eq{"id": item.ID})

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build update item: %w", err)
		}

		result, err := querier.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("update transaction item: %w", err)
		}
		if result.RowsAffected() == 0 {
			return apperror.NewNotFound("transaction item", item.ID.String())
		}
	}

	return nil
}

func (r *LedgerRepo) ItemsByIngredient(ctx context.Context, ingredientID id.ID) ([]ledger.ChainItem, error) {
	q := r.builder().
		Select(
			"i.id", "i.transaction_id", "i.line_no", "i.ingredient_id",
			"i.quantity", "i.quantity_before", "i.quantity_after", "i.expiry_date", "i.reason",
			"t.type AS tx_type", "t.date AS tx_date", "t.created_at AS tx_created_at",
		).
		From("stock_transaction_items i").
		Join("stock_transactions t ON t.id = i.transaction_id").
		Where(squirrel.Eq{"i.ingredient_id": ingredientID}).
		OrderBy("t.date ASC", "t.created_at ASC", "t.id ASC", "i.line_no ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var chain []ledger.ChainItem
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &chain, sql, args...); err != nil {
		return nil, fmt.Errorf("items by ingredient: %w", err)
	}

	return chain, nil
}

func (r *LedgerRepo) List(ctx context.Context, filter ledger.ListFilter) ([]*ledger.Transaction, error) {
	q := r.builder().
		Select(transactionCols...).
		From("stock_transactions").
		OrderBy("date DESC", "created_at DESC")

	if filter.Type != nil {
		q = q.Where(squirrel.Eq{"type": *filter.Type})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"date": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"date": *filter.ToDate})
	}
	if filter.IngredientID != nil {
		q = q.Where(squirrel.Expr(
			`EXISTS (
				SELECT 1 FROM stock_transaction_items i
				WHERE i.transaction_id = stock_transactions.id AND i.ingredient_id = ?
			)`,
			*filter.IngredientID,
		))
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var txs []*ledger.Transaction
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &txs, sql, args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if len(txs) == 0 {
		return txs, nil
	}

	ids := make([]id.ID, len(txs))
	for i, t := range txs {
		ids[i] = t.ID
	}

	items, err := r.itemsForTransactions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, t := range txs {
		t.Items = items[t.ID]
	}

	return txs, nil
}

// itemsForTransactions loads items for a set of transactions, ordered by
// line number, grouped by transaction.
func (r *LedgerRepo) itemsForTransactions(ctx context.Context, ids []id.ID) (map[id.ID][]ledger.Item, error) {
	q := r.builder().
		Select(itemCols...).
		From("stock_transaction_items").
		Where(squirrel.Eq{"transaction_id": ids}).
		OrderBy("transaction_id", "line_no ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build items query: %w", err)
	}

	var items []ledger.Item
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("load transaction items: %w", err)
	}

	byTx := make(map[id.ID][]ledger.Item, len(ids))
	for _, item := range items {
		byTx[item.TransactionID] = append(byTx[item.TransactionID], item)
	}
	return byTx, nil
}
