package ingredient

import (
	"context"
	"fmt"

	"mise/internal/core/id"
	"mise/internal/core/tx"
	"mise/pkg/logger"
)

// Service provides business operations for the ingredient catalog.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new ingredient service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// Create registers a new ingredient with zero quantity.
func (s *Service) Create(ctx context.Context, name string, unit Unit) (*Ingredient, error) {
	ing := New(name, unit)

	if err := ing.Validate(ctx); err != nil {
		return nil, err
	}

	if err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, ing)
	}); err != nil {
		return nil, fmt.Errorf("create ingredient: %w", err)
	}

	logger.Info(ctx, "ingredient created",
		"id", ing.ID,
		"name", ing.Name,
		"unit", ing.Unit,
	)

	return ing, nil
}

// GetByID retrieves an ingredient.
func (s *Service) GetByID(ctx context.Context, ingredientID id.ID) (*Ingredient, error) {
	return s.repo.GetByID(ctx, ingredientID)
}

// Rename changes the display name.
func (s *Service) Rename(ctx context.Context, ingredientID id.ID, name string) (*Ingredient, error) {
	ing, err := s.repo.GetByID(ctx, ingredientID)
	if err != nil {
		return nil, err
	}

	ing.Name = name
	if err := ing.Validate(ctx); err != nil {
		return nil, err
	}
	ing.Touch()

	if err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, ing)
	}); err != nil {
		return nil, fmt.Errorf("rename ingredient: %w", err)
	}

	return ing, nil
}

// Hide removes the ingredient from catalog listings.
// The ledger history and batches are untouched.
func (s *Service) Hide(ctx context.Context, ingredientID id.ID) error {
	ing, err := s.repo.GetByID(ctx, ingredientID)
	if err != nil {
		return err
	}

	if ing.Hidden {
		return nil
	}
	ing.Hidden = true
	ing.Touch()

	if err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, ing)
	}); err != nil {
		return fmt.Errorf("hide ingredient: %w", err)
	}

	logger.Info(ctx, "ingredient hidden", "id", ingredientID)
	return nil
}

// List retrieves ingredients with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Ingredient, error) {
	return s.repo.List(ctx, filter)
}
