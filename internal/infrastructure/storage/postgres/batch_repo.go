package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/domain/batch"
)

var batchCols = []string{
	"id", "ingredient_id", "initial_quantity", "remaining",
	"expiry_date", "received_at", "line_no", "origin_item_id",
}

// BatchRepo implements batch.Repository on PostgreSQL.
type BatchRepo struct {
	txm *TxManager
}

// NewBatchRepo creates the repository.
func NewBatchRepo(txm *TxManager) *BatchRepo {
	return &BatchRepo{txm: txm}
}

var _ batch.Repository = (*BatchRepo)(nil)

func (r *BatchRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BatchRepo) Insert(ctx context.Context, b *batch.Batch) error {
	q := r.builder().
		Insert("batches").
		Columns(batchCols...).
		Values(
			b.ID, b.IngredientID, b.InitialQuantity, b.Remaining,
			b.ExpiryDate, b.ReceivedAt, b.LineNo, b.OriginItemID,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	return nil
}

func (r *BatchRepo) UpdateRemaining(ctx context.Context, b *batch.Batch) error {
	q := r.builder().
		Update("batches").
		Set("remaining", b.Remaining).
		Where(squirrel.Eq{"id": b.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update batch remaining: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("batch", b.ID.String())
	}

	return nil
}

func (r *BatchRepo) ListByIngredient(ctx context.Context, ingredientID id.ID) ([]*batch.Batch, error) {
	return r.list(ctx, ingredientID, false)
}

func (r *BatchRepo) ListLive(ctx context.Context, ingredientID id.ID) ([]*batch.Batch, error) {
	return r.list(ctx, ingredientID, true)
}

func (r *BatchRepo) list(ctx context.Context, ingredientID id.ID, liveOnly bool) ([]*batch.Batch, error) {
	q := r.builder().
		Select(batchCols...).
		From("batches").
		Where(squirrel.Eq{"ingredient_id": ingredientID}).
		OrderBy("received_at ASC", "line_no ASC")
	if liveOnly {
		q = q.Where(squirrel.Gt{"remaining": 0})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var batches []*batch.Batch
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &batches, sql, args...); err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}

	return batches, nil
}

func (r *BatchRepo) ReplaceForIngredient(ctx context.Context, ingredientID id.ID, batches []*batch.Batch) error {
	querier := r.txm.GetQuerier(ctx)

	del := r.builder().
		Delete("batches").
		Where(squirrel.Eq{"ingredient_id": ingredientID})

	sql, args, err := del.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete batches: %w", err)
	}

	if len(batches) == 0 {
		return nil
	}

	ins := r.builder().
		Insert("batches").
		Columns(batchCols...)
	for _, b := range batches {
		ins = ins.Values(
			b.ID, b.IngredientID, b.InitialQuantity, b.Remaining,
			b.ExpiryDate, b.ReceivedAt, b.LineNo, b.OriginItemID,
		)
	}

	sql, args, err = ins.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert batches: %w", err)
	}

	return nil
}
