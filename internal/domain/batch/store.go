package batch

import (
	"context"
	"fmt"
	"sort"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/pkg/logger"
)

// Store provides batch-level stock operations. All mutating methods are
// called by the ledger engine inside its transaction and locking scope;
// the store itself holds no locks.
type Store struct {
	repo Repository
}

// NewStore creates a new batch store.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// AddBatch creates a batch from a stock-in item.
func (s *Store) AddBatch(ctx context.Context, b *Batch) error {
	if !b.InitialQuantity.IsPositive() {
		return apperror.NewValidation("batch quantity must be positive").
			WithDetail("ingredient_id", b.IngredientID.String())
	}
	if id.IsNil(b.OriginItemID) {
		return apperror.NewValidation("origin item is required")
	}

	b.Remaining = b.InitialQuantity
	if id.IsNil(b.ID) {
		b.ID = id.New()
	}

	if err := s.repo.Insert(ctx, b); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// Deplete drains the requested quantity from the ingredient's live batches
// using the earliest-expiry-first policy: expiry-dated batches ascending by
// expiry date, FIFO on ties, batches without expiry last. The availability
// check runs before any batch is touched, so a shortage mutates nothing.
func (s *Store) Deplete(ctx context.Context, ingredientID id.ID, quantity types.Quantity) error {
	if !quantity.IsPositive() {
		return apperror.NewValidation("depletion quantity must be positive").
			WithDetail("ingredient_id", ingredientID.String())
	}

	live, err := s.repo.ListLive(ctx, ingredientID)
	if err != nil {
		return fmt.Errorf("list live batches: %w", err)
	}

	var available types.Quantity
	for _, b := range live {
		available += b.Remaining
	}
	if available < quantity {
		return apperror.NewInsufficientStock(
			ingredientID.String(),
			quantity.Float64(),
			available.Float64(),
		)
	}

	sortForDepletion(live)

	remaining := quantity
	for _, b := range live {
		if remaining.IsZero() {
			break
		}
		take := b.Remaining
		if take > remaining {
			take = remaining
		}
		b.Remaining -= take
		remaining -= take

		if err := s.repo.UpdateRemaining(ctx, b); err != nil {
			return fmt.Errorf("update batch %s: %w", b.ID, err)
		}
	}

	// Unreachable unless the availability check above was wrong.
	if !remaining.IsZero() {
		return apperror.NewLedgerCorruption("depletion did not satisfy requested quantity").
			WithDetail("ingredient_id", ingredientID.String()).
			WithDetail("undelivered", remaining.String())
	}

	return nil
}

// LiveTotal returns the sum of remaining quantities across live batches.
func (s *Store) LiveTotal(ctx context.Context, ingredientID id.ID) (types.Quantity, error) {
	live, err := s.repo.ListLive(ctx, ingredientID)
	if err != nil {
		return 0, fmt.Errorf("list live batches: %w", err)
	}

	var total types.Quantity
	for _, b := range live {
		total += b.Remaining
	}
	return total, nil
}

// ListLive returns the ingredient's batches with remaining stock.
func (s *Store) ListLive(ctx context.Context, ingredientID id.ID) ([]*Batch, error) {
	return s.repo.ListLive(ctx, ingredientID)
}

// Rebuild discards the ingredient's batches and replays the ordered ledger
// items from scratch. Replaying the same item list always yields the same
// batch set: batch identity and the FIFO tie-break both derive from the
// originating items, never from wall-clock time.
//
// A stock-out that cannot be satisfied during replay means the caller
// accepted an edit that violates the snapshot chain; that is reported as
// ledger corruption, not as a user-facing stock error.
func (s *Store) Rebuild(ctx context.Context, ingredientID id.ID, items []ReplayItem) error {
	batches := make([]*Batch, 0, len(items))

	for _, it := range items {
		switch it.Kind {
		case ReplayIn:
			batches = append(batches, &Batch{
				ID:              id.New(),
				IngredientID:    ingredientID,
				InitialQuantity: it.Quantity,
				Remaining:       it.Quantity,
				ExpiryDate:      it.ExpiryDate,
				ReceivedAt:      it.ReceivedAt,
				LineNo:          it.LineNo,
				OriginItemID:    it.ItemID,
			})

		case ReplayOut:
			live := make([]*Batch, 0, len(batches))
			for _, b := range batches {
				if b.IsLive() {
					live = append(live, b)
				}
			}
			sortForDepletion(live)

			remaining := it.Quantity
			for _, b := range live {
				if remaining.IsZero() {
					break
				}
				take := b.Remaining
				if take > remaining {
					take = remaining
				}
				b.Remaining -= take
				remaining -= take
			}
			if !remaining.IsZero() {
				return apperror.NewLedgerCorruption("replayed stock-out exceeds available batches").
					WithDetail("ingredient_id", ingredientID.String()).
					WithDetail("item_id", it.ItemID.String()).
					WithDetail("undelivered", remaining.String())
			}

		default:
			return apperror.NewLedgerCorruption("unknown replay item kind").
				WithDetail("kind", string(it.Kind))
		}
	}

	for _, b := range batches {
		if b.Remaining.IsNegative() || b.Remaining > b.InitialQuantity {
			return apperror.NewLedgerCorruption("rebuilt batch remaining out of range").
				WithDetail("batch_origin_item", b.OriginItemID.String()).
				WithDetail("remaining", b.Remaining.String())
		}
	}

	if err := s.repo.ReplaceForIngredient(ctx, ingredientID, batches); err != nil {
		return fmt.Errorf("replace batches: %w", err)
	}

	logger.Debug(ctx, "rebuilt batches",
		"ingredient_id", ingredientID,
		"batches", len(batches),
	)

	return nil
}

// sortForDepletion orders batches for draining: expiry-dated first by
// ascending expiry, then no-expiry batches; ties broken FIFO by
// (ReceivedAt, LineNo, OriginItemID).
func sortForDepletion(batches []*Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		a, b := batches[i], batches[j]

		switch {
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && b.ExpiryDate != nil:
			if !a.ExpiryDate.Equal(*b.ExpiryDate) {
				return a.ExpiryDate.Before(*b.ExpiryDate)
			}
		}

		if !a.ReceivedAt.Equal(b.ReceivedAt) {
			return a.ReceivedAt.Before(b.ReceivedAt)
		}
		if a.LineNo != b.LineNo {
			return a.LineNo < b.LineNo
		}
		return a.OriginItemID.String() < b.OriginItemID.String()
	})
}
