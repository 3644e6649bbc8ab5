package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/batch"
	"mise/internal/domain/catalogs/ingredient"
	"mise/internal/domain/inventory"
	"mise/internal/infrastructure/storage/memory"
)

// Fixed clock for every test: midnight UTC, Feb 1 2026.
var now = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *inventory.Service
	store   *memory.Store
	batches *batch.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memory.NewStore()
	batches := batch.NewStore(mem.Batches())
	svc := inventory.NewService(mem.Ingredients(), batches, mem).
		WithNow(func() time.Time { return now })
	return &fixture{svc: svc, store: mem, batches: batches}
}

func (f *fixture) newIngredient(t *testing.T, name string, hidden bool) *ingredient.Ingredient {
	t.Helper()
	ing := ingredient.New(name, ingredient.UnitKilograms)
	ing.Hidden = hidden
	require.NoError(t, f.store.Ingredients().Create(context.Background(), ing))
	return ing
}

func (f *fixture) addBatch(t *testing.T, ingID id.ID, quantity types.Quantity, expiry *time.Time) {
	t.Helper()
	require.NoError(t, f.batches.AddBatch(context.Background(), &batch.Batch{
		IngredientID:    ingID,
		InitialQuantity: quantity,
		ExpiryDate:      expiry,
		ReceivedAt:      now,
		OriginItemID:    id.New(),
	}))
	total, err := f.batches.LiveTotal(context.Background(), ingID)
	require.NoError(t, err)
	require.NoError(t, f.store.Ingredients().UpdateQuantity(context.Background(), ingID, total))
}

func qty(v float64) types.Quantity {
	return types.NewQuantityFromFloat64(v)
}

func daysFromNow(d int) *time.Time {
	t := now.AddDate(0, 0, d)
	return &t
}

func TestGetView_NearestExpiryIsMinimum(t *testing.T) {
	f := newFixture(t)
	ing := f.newIngredient(t, "Butter", false)

	f.addBatch(t, ing.ID, qty(5), daysFromNow(20))
	f.addBatch(t, ing.ID, qty(3), daysFromNow(6))
	f.addBatch(t, ing.ID, qty(2), nil)

	v, err := f.svc.GetView(context.Background(), ing.ID)
	require.NoError(t, err)

	assert.Equal(t, qty(10), v.CurrentQuantity)
	require.NotNil(t, v.NearestExpiry)
	assert.True(t, v.NearestExpiry.Equal(*daysFromNow(6)))
	assert.Equal(t, qty(3), v.ExpiringQuantity)
	require.NotNil(t, v.DaysUntilExpiry)
	assert.Equal(t, 6, *v.DaysUntilExpiry)
	assert.Equal(t, inventory.BucketWarning, v.Bucket)
}

func TestGetView_EqualNearestExpirySums(t *testing.T) {
	f := newFixture(t)
	ing := f.newIngredient(t, "Cream", false)

	f.addBatch(t, ing.ID, qty(4), daysFromNow(2))
	f.addBatch(t, ing.ID, qty(6), daysFromNow(2))
	f.addBatch(t, ing.ID, qty(9), daysFromNow(10))

	v, err := f.svc.GetView(context.Background(), ing.ID)
	require.NoError(t, err)

	assert.Equal(t, qty(10), v.ExpiringQuantity, "batches sharing the nearest date sum up")
	assert.Equal(t, inventory.BucketCritical, v.Bucket)
}

func TestGetView_NoTrackedExpiry(t *testing.T) {
	f := newFixture(t)
	ing := f.newIngredient(t, "Salt", false)

	f.addBatch(t, ing.ID, qty(1), nil)

	v, err := f.svc.GetView(context.Background(), ing.ID)
	require.NoError(t, err)

	assert.Nil(t, v.NearestExpiry)
	assert.Nil(t, v.DaysUntilExpiry)
	assert.Equal(t, types.Quantity(0), v.ExpiringQuantity)
	assert.Equal(t, inventory.BucketNone, v.Bucket)
}

func TestGetView_UnknownIngredient(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetView(context.Background(), id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestBucketBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		days   int
		bucket inventory.ExpiryBucket
	}{
		{"yesterday", -1, inventory.BucketExpired},
		{"today", 0, inventory.BucketCritical},
		{"three days", 3, inventory.BucketCritical},
		{"four days", 4, inventory.BucketWarning},
		{"seven days", 7, inventory.BucketWarning},
		{"eight days", 8, inventory.BucketNotice},
		{"fourteen days", 14, inventory.BucketNotice},
		{"fifteen days", 15, inventory.BucketNormal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ing := f.newIngredient(t, "Yeast", false)
			f.addBatch(t, ing.ID, qty(1), daysFromNow(tc.days))

			v, err := f.svc.GetView(context.Background(), ing.ID)
			require.NoError(t, err)
			require.NotNil(t, v.DaysUntilExpiry)
			assert.Equal(t, tc.days, *v.DaysUntilExpiry)
			assert.Equal(t, tc.bucket, v.Bucket)
		})
	}
}

func TestListViews_BucketFilter(t *testing.T) {
	f := newFixture(t)

	soon := f.newIngredient(t, "Fish", false)
	f.addBatch(t, soon.ID, qty(2), daysFromNow(1))

	far := f.newIngredient(t, "Pasta", false)
	f.addBatch(t, far.ID, qty(8), daysFromNow(90))

	views, err := f.svc.ListViews(context.Background(), inventory.ListFilter{
		Bucket: inventory.BucketCritical,
	})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, soon.ID, views[0].IngredientID)
}

func TestListViews_HiddenExcludedByDefault(t *testing.T) {
	f := newFixture(t)

	f.newIngredient(t, "Visible", false)
	f.newIngredient(t, "Retired", true)

	views, err := f.svc.ListViews(context.Background(), inventory.ListFilter{})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Visible", views[0].Name)

	all, err := f.svc.ListViews(context.Background(), inventory.ListFilter{IncludeHidden: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestView_InUnit(t *testing.T) {
	f := newFixture(t)
	ing := f.newIngredient(t, "Flour", false)

	f.addBatch(t, ing.ID, qty(4), daysFromNow(6))
	f.addBatch(t, ing.ID, qty(2.5), nil)

	v, err := f.svc.GetView(context.Background(), ing.ID)
	require.NoError(t, err)

	grams, err := v.InUnit(ingredient.UnitGrams)
	require.NoError(t, err)
	assert.Equal(t, ingredient.UnitGrams, grams.Unit)
	assert.Equal(t, qty(6500), grams.CurrentQuantity)
	assert.Equal(t, qty(4000), grams.ExpiringQuantity)

	// The source view stays in its own unit.
	assert.Equal(t, ingredient.UnitKilograms, v.Unit)
	assert.Equal(t, qty(6.5), v.CurrentQuantity)

	same, err := v.InUnit(ingredient.UnitKilograms)
	require.NoError(t, err)
	assert.Equal(t, qty(6.5), same.CurrentQuantity)

	_, err = v.InUnit(ingredient.UnitLiters)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}
