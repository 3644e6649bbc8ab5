package inventory

import (
	"context"
	"fmt"
	"time"

	"mise/internal/core/id"
	"mise/internal/core/tx"
	"mise/internal/domain/batch"
	"mise/internal/domain/catalogs/ingredient"
)

// Service computes aggregate inventory views.
type Service struct {
	ingredients ingredient.Repository
	batches     *batch.Store
	txManager   tx.ReadOnlyManager

	// now is swappable for tests.
	now func() time.Time
}

// NewService creates a new inventory view service.
func NewService(ingredients ingredient.Repository, batches *batch.Store, txManager tx.ReadOnlyManager) *Service {
	return &Service{
		ingredients: ingredients,
		batches:     batches,
		txManager:   txManager,
		now:         time.Now,
	}
}

// WithNow overrides the clock. Tests only.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// GetView returns the derived state for one ingredient. The cached
// quantity and the batch list are read in one snapshot so they agree.
func (s *Service) GetView(ctx context.Context, ingredientID id.ID) (*View, error) {
	var v *View
	err := s.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		ing, err := s.ingredients.GetByID(ctx, ingredientID)
		if err != nil {
			return err
		}
		v, err = s.buildView(ctx, ing)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListFilter narrows inventory listings.
type ListFilter struct {
	// Bucket limits results to one expiry bucket.
	Bucket ExpiryBucket

	// IncludeHidden includes ingredients hidden from the catalog.
	IncludeHidden bool
}

// ListViews returns views for all (visible) ingredients, optionally
// filtered by expiry bucket.
func (s *Service) ListViews(ctx context.Context, filter ListFilter) ([]*View, error) {
	var views []*View
	err := s.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		ings, err := s.ingredients.List(ctx, ingredient.ListFilter{
			IncludeHidden: filter.IncludeHidden,
		})
		if err != nil {
			return fmt.Errorf("list ingredients: %w", err)
		}

		views = make([]*View, 0, len(ings))
		for _, ing := range ings {
			v, err := s.buildView(ctx, ing)
			if err != nil {
				return err
			}
			if filter.Bucket != "" && v.Bucket != filter.Bucket {
				continue
			}
			views = append(views, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

func (s *Service) buildView(ctx context.Context, ing *ingredient.Ingredient) (*View, error) {
	live, err := s.batches.ListLive(ctx, ing.ID)
	if err != nil {
		return nil, fmt.Errorf("list live batches: %w", err)
	}

	v := &View{
		IngredientID:    ing.ID,
		Name:            ing.Name,
		Unit:            ing.Unit,
		CurrentQuantity: ing.CurrentQuantity,
	}

	for _, b := range live {
		if b.ExpiryDate == nil {
			continue
		}
		switch {
		case v.NearestExpiry == nil || b.ExpiryDate.Before(*v.NearestExpiry):
			exp := *b.ExpiryDate
			v.NearestExpiry = &exp
			v.ExpiringQuantity = b.Remaining
		case b.ExpiryDate.Equal(*v.NearestExpiry):
			v.ExpiringQuantity += b.Remaining
		}
	}

	if v.NearestExpiry != nil {
		nowDay := s.now().UTC().Truncate(24 * time.Hour)
		expDay := v.NearestExpiry.UTC().Truncate(24 * time.Hour)
		days := int(expDay.Sub(nowDay).Hours() / 24)
		v.DaysUntilExpiry = &days
	}
	v.Bucket = bucketFor(v.DaysUntilExpiry)

	return v, nil
}
