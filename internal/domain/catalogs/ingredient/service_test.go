package ingredient_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/domain/catalogs/ingredient"
	"mise/internal/infrastructure/storage/memory"
)

func newService(t *testing.T) *ingredient.Service {
	t.Helper()
	mem := memory.NewStore()
	return ingredient.NewService(mem.Ingredients(), mem)
}

func TestCreate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	ing, err := svc.Create(ctx, "Olive Oil", ingredient.UnitLiters)
	require.NoError(t, err)
	assert.False(t, id.IsNil(ing.ID))
	assert.True(t, ing.CurrentQuantity.IsZero())
	assert.False(t, ing.Hidden)

	got, err := svc.GetByID(ctx, ing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Olive Oil", got.Name)
	assert.Equal(t, ingredient.UnitLiters, got.Unit)
}

func TestCreate_Validation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "", ingredient.UnitKilograms)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	_, err = svc.Create(ctx, "Sugar", ingredient.Unit("handfuls"))
	require.Error(t, err)
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestRename(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	ing, err := svc.Create(ctx, "Tomatos", ingredient.UnitPieces)
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, ing.ID, "Tomatoes")
	require.NoError(t, err)
	assert.Equal(t, "Tomatoes", renamed.Name)
	assert.Equal(t, ing.Version+1, renamed.Version)

	_, err = svc.Rename(ctx, id.New(), "Anything")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestHide_Idempotent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	ing, err := svc.Create(ctx, "Saffron", ingredient.UnitGrams)
	require.NoError(t, err)

	require.NoError(t, svc.Hide(ctx, ing.ID))
	require.NoError(t, svc.Hide(ctx, ing.ID), "hiding twice is a no-op")

	got, err := svc.GetByID(ctx, ing.ID)
	require.NoError(t, err)
	assert.True(t, got.Hidden)

	visible, err := svc.List(ctx, ingredient.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, visible)

	all, err := svc.List(ctx, ingredient.ListFilter{IncludeHidden: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestList_SearchAndPagination(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	for _, name := range []string{"Basmati Rice", "Brown Rice", "Quinoa"} {
		_, err := svc.Create(ctx, name, ingredient.UnitKilograms)
		require.NoError(t, err)
	}

	rice, err := svc.List(ctx, ingredient.ListFilter{NameContains: "rice"})
	require.NoError(t, err)
	require.Len(t, rice, 2)
	assert.Equal(t, "Basmati Rice", rice[0].Name, "sorted by name")

	page, err := svc.List(ctx, ingredient.ListFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Quinoa", page[0].Name)
}

func TestUnitConvertTo(t *testing.T) {
	tests := []struct {
		name   string
		from   ingredient.Unit
		to     ingredient.Unit
		qty    string
		expect string
	}{
		{"grams to kilograms", ingredient.UnitGrams, ingredient.UnitKilograms, "1500", "1.5"},
		{"kilograms to grams", ingredient.UnitKilograms, ingredient.UnitGrams, "0.25", "250"},
		{"cups to liters", ingredient.UnitCups, ingredient.UnitLiters, "2", "0.5"},
		{"liters to tablespoons", ingredient.UnitLiters, ingredient.UnitTablespoons, "0.3", "20"},
		{"same unit", ingredient.UnitPieces, ingredient.UnitPieces, "7", "7"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.from.ConvertTo(decimal.RequireFromString(tc.qty), tc.to)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tc.expect)),
				"got %s, want %s", got, tc.expect)
		})
	}
}

func TestUnitConvertTo_CrossClass(t *testing.T) {
	_, err := ingredient.UnitKilograms.ConvertTo(decimal.NewFromInt(1), ingredient.UnitLiters)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	_, err = ingredient.UnitPieces.ConvertTo(decimal.NewFromInt(1), ingredient.UnitGrams)
	require.Error(t, err)
}
