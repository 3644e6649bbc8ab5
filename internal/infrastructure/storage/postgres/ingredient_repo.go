package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/catalogs/ingredient"
)

var ingredientCols = []string{
	"id", "version", "created_at", "updated_at", "created_by", "updated_by",
	"name", "unit", "current_quantity", "hidden",
}

// IngredientRepo implements ingredient.Repository on PostgreSQL.
type IngredientRepo struct {
	txm *TxManager
}

// NewIngredientRepo creates the repository.
func NewIngredientRepo(txm *TxManager) *IngredientRepo {
	return &IngredientRepo{txm: txm}
}

var _ ingredient.Repository = (*IngredientRepo)(nil)

func (r *IngredientRepo) builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *IngredientRepo) baseSelect() squirrel.SelectBuilder {
	return r.builder().Select(ingredientCols...).From("ingredients")
}

func (r *IngredientRepo) Create(ctx context.Context, ing *ingredient.Ingredient) error {
	q := r.builder().
		Insert("ingredients").
		Columns(ingredientCols...).
		Values(
			ing.ID, ing.Version, ing.CreatedAt, ing.UpdatedAt, ing.CreatedBy, ing.UpdatedBy,
			ing.Name, ing.Unit, ing.CurrentQuantity, ing.Hidden,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("ingredient", "id", ing.ID.String())
		}
		return fmt.Errorf("insert ingredient: %w", err)
	}

	return nil
}

func (r *IngredientRepo) GetByID(ctx context.Context, ingredientID id.ID) (*ingredient.Ingredient, error) {
	return r.get(ctx, ingredientID, false)
}

func (r *IngredientRepo) GetForUpdate(ctx context.Context, ingredientID id.ID) (*ingredient.Ingredient, error) {
	return r.get(ctx, ingredientID, true)
}

func (r *IngredientRepo) get(ctx context.Context, ingredientID id.ID, forUpdate bool) (*ingredient.Ingredient, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"id": ingredientID}).
		Limit(1)
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ing ingredient.Ingredient
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &ing, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("ingredient", ingredientID.String())
		}
		return nil, fmt.Errorf("get ingredient: %w", err)
	}

	return &ing, nil
}

func (r *IngredientRepo) Update(ctx context.Context, ing *ingredient.Ingredient) error {
	q := r.builder().
		Update("ingredients").
		Set("version", ing.Version).
		Set("updated_at", ing.UpdatedAt).
		Set("updated_by", ing.UpdatedBy).
		Set("name", ing.Name).
		Set("unit", ing.Unit).
		Set("current_quantity", ing.CurrentQuantity).
		Set("hidden", ing.Hidden).
		Where(squirrel.Eq{"id": ing.ID}).
		// Callers bump the version via Touch before saving; the row must
		// still hold the previous one (optimistic lock).
		Where(squirrel.Eq{"version": ing.Version - 1})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update ingredient: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConflict("ingredient was modified concurrently").
			WithDetail("id", ing.ID.String())
	}

	return nil
}

func (r *IngredientRepo) UpdateQuantity(ctx context.Context, ingredientID id.ID, quantity types.Quantity) error {
	q := r.builder().
		Update("ingredients").
		Set("current_quantity", quantity).
		Where(squirrel.Eq{"id": ingredientID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update ingredient quantity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("ingredient", ingredientID.String())
	}

	return nil
}

func (r *IngredientRepo) List(ctx context.Context, filter ingredient.ListFilter) ([]*ingredient.Ingredient, error) {
	q := r.baseSelect().OrderBy("name ASC")

	if !filter.IncludeHidden {
		q = q.Where(squirrel.Eq{"hidden": false})
	}
	if filter.NameContains != "" {
		q = q.Where(squirrel.ILike{"name": "%" + filter.NameContains + "%"})
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

	var items []*ingredient.Ingredient
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}

	return items, nil
}
