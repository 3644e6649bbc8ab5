// Package memory provides an in-process implementation of the storage
// interfaces. It backs the domain test suites and the STORE=memory dev
// mode. Transactions are real: state is snapshotted at begin and restored
// when the function returns an error, so all-or-nothing semantics hold
// exactly as with the postgres backend.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/tx"
	"mise/internal/core/types"
	"mise/internal/domain/batch"
	"mise/internal/domain/catalogs/ingredient"
	"mise/internal/domain/ledger"
)

// Store holds all in-memory state.
type Store struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	ingredients  map[id.ID]*ingredient.Ingredient
	transactions map[id.ID]*ledger.Transaction
	batches      map[id.ID][]*batch.Batch // keyed by ingredient id
	audits       map[id.ID][]ledger.EditAuditEntry
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		state: &state{
			ingredients:  make(map[id.ID]*ingredient.Ingredient),
			transactions: make(map[id.ID]*ledger.Transaction),
			batches:      make(map[id.ID][]*batch.Batch),
			audits:       make(map[id.ID][]ledger.EditAuditEntry),
		},
	}
}

// --- tx.Manager implementation ---

type txKey struct{}

var _ tx.ReadOnlyManager = (*Store)(nil)

// RunInTransaction executes fn atomically against the store. The state is
// cloned up front and swapped back in when fn fails, which gives the same
// rollback behavior the postgres transaction manager provides.
// Nested calls reuse the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	err := fn(context.WithValue(ctx, txKey{}, true))
	if err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// ReadOnly holds the store lock for the duration of fn, which is all the
// snapshot consistency an in-process store needs.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// access runs fn with the store lock held, unless a surrounding
// transaction already holds it.
func (s *Store) access(ctx context.Context, fn func(st *state) error) error {
	if inTx(ctx) {
		return fn(s.state)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func (st *state) clone() *state {
	next := &state{
		ingredients:  make(map[id.ID]*ingredient.Ingredient, len(st.ingredients)),
		transactions: make(map[id.ID]*ledger.Transaction, len(st.transactions)),
		batches:      make(map[id.ID][]*batch.Batch, len(st.batches)),
		audits:       make(map[id.ID][]ledger.EditAuditEntry, len(st.audits)),
	}
	for k, v := range st.ingredients {
		next.ingredients[k] = copyIngredient(v)
	}
	for k, v := range st.transactions {
		next.transactions[k] = copyTransaction(v)
	}
	for k, v := range st.batches {
		bs := make([]*batch.Batch, len(v))
		for i, b := range v {
			bs[i] = copyBatch(b)
		}
		next.batches[k] = bs
	}
	for k, v := range st.audits {
		next.audits[k] = append([]ledger.EditAuditEntry(nil), v...)
	}
	return next
}

func copyIngredient(in *ingredient.Ingredient) *ingredient.Ingredient {
	out := *in
	return &out
}

func copyTransaction(in *ledger.Transaction) *ledger.Transaction {
	out := *in
	out.Items = make([]ledger.Item, len(in.Items))
	copy(out.Items, in.Items)
	return &out
}

func copyBatch(in *batch.Batch) *batch.Batch {
	out := *in
	return &out
}

// --- ingredient.Repository implementation ---

// IngredientRepo implements ingredient.Repository.
type IngredientRepo struct {
	store *Store
}

// Ingredients returns the ingredient repository view of the store.
func (s *Store) Ingredients() *IngredientRepo {
	return &IngredientRepo{store: s}
}

var _ ingredient.Repository = (*IngredientRepo)(nil)

func (r *IngredientRepo) Create(ctx context.Context, ing *ingredient.Ingredient) error {
	return r.store.access(ctx, func(st *state) error {
		if _, ok := st.ingredients[ing.ID]; ok {
			return apperror.NewDuplicate("ingredient", "id", ing.ID.String())
		}
		st.ingredients[ing.ID] = copyIngredient(ing)
		return nil
	})
}

func (r *IngredientRepo) GetByID(ctx context.Context, ingredientID id.ID) (*ingredient.Ingredient, error) {
	var out *ingredient.Ingredient
	err := r.store.access(ctx, func(st *state) error {
		ing, ok := st.ingredients[ingredientID]
		if !ok {
			return apperror.NewNotFound("ingredient", ingredientID.String())
		}
		out = copyIngredient(ing)
		return nil
	})
	return out, err
}

// GetForUpdate is identical to GetByID here: callers already serialize per
// ingredient through the keyed mutex, and the store lock covers the rest.
func (r *IngredientRepo) GetForUpdate(ctx context.Context, ingredientID id.ID) (*ingredient.Ingredient, error) {
	return r.GetByID(ctx, ingredientID)
}

func (r *IngredientRepo) Update(ctx context.Context, ing *ingredient.Ingredient) error {
	return r.store.access(ctx, func(st *state) error {
		if _, ok := st.ingredients[ing.ID]; !ok {
			return apperror.NewNotFound("ingredient", ing.ID.String())
		}
		st.ingredients[ing.ID] = copyIngredient(ing)
		return nil
	})
}

func (r *IngredientRepo) UpdateQuantity(ctx context.Context, ingredientID id.ID, quantity types.Quantity) error {
	return r.store.access(ctx, func(st *state) error {
		ing, ok := st.ingredients[ingredientID]
		if !ok {
			return apperror.NewNotFound("ingredient", ingredientID.String())
		}
		ing.CurrentQuantity = quantity
		return nil
	})
}

func (r *IngredientRepo) List(ctx context.Context, filter ingredient.ListFilter) ([]*ingredient.Ingredient, error) {
	var out []*ingredient.Ingredient
	err := r.store.access(ctx, func(st *state) error {
		for _, ing := range st.ingredients {
			if ing.Hidden && !filter.IncludeHidden {
				continue
			}
			if filter.NameContains != "" &&
				!strings.Contains(strings.ToLower(ing.Name), strings.ToLower(filter.NameContains)) {
				continue
			}
			out = append(out, copyIngredient(ing))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})

	out = paginate(out, filter.Offset, filter.Limit)
	return out, nil
}

// --- ledger.Repository implementation ---

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	store *Store
}

// Ledger returns the ledger repository view of the store.
func (s *Store) Ledger() *LedgerRepo {
	return &LedgerRepo{store: s}
}

var _ ledger.Repository = (*LedgerRepo)(nil)

func (r *LedgerRepo) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	return r.store.access(ctx, func(st *state) error {
		if _, ok := st.transactions[t.ID]; ok {
			return apperror.NewDuplicate("transaction", "id", t.ID.String())
		}
		st.transactions[t.ID] = copyTransaction(t)
		return nil
	})
}

func (r *LedgerRepo) GetTransaction(ctx context.Context, txID id.ID) (*ledger.Transaction, error) {
	var out *ledger.Transaction
	err := r.store.access(ctx, func(st *state) error {
		t, ok := st.transactions[txID]
		if !ok {
			return apperror.NewNotFound("transaction", txID.String())
		}
		out = copyTransaction(t)
		return nil
	})
	return out, err
}

func (r *LedgerRepo) UpdateTransaction(ctx context.Context, t *ledger.Transaction) error {
	return r.store.access(ctx, func(st *state) error {
		if _, ok := st.transactions[t.ID]; !ok {
			return apperror.NewNotFound("transaction", t.ID.String())
		}
		st.transactions[t.ID] = copyTransaction(t)
		return nil
	})
}

func (r *LedgerRepo) UpdateItemSnapshots(ctx context.Context, items []ledger.Item) error {
	return r.store.access(ctx, func(st *state) error {
		for _, item := range items {
			t, ok := st.transactions[item.TransactionID]
			if !ok {
				return apperror.NewNotFound("transaction", item.TransactionID.String())
			}
			found := false
			for i := range t.Items {
				if t.Items[i].ID == item.ID {
					t.Items[i] = item
					found = true
					break
				}
			}
			if !found {
				return apperror.NewNotFound("transaction item", item.ID.String())
			}
		}
		return nil
	})
}

func (r *LedgerRepo) ItemsByIngredient(ctx context.Context, ingredientID id.ID) ([]ledger.ChainItem, error) {
	var chain []ledger.ChainItem
	err := r.store.access(ctx, func(st *state) error {
		for _, t := range st.transactions {
			for _, item := range t.Items {
				if item.IngredientID != ingredientID {
					continue
				}
				chain = append(chain, ledger.ChainItem{
					Item:        item,
					TxType:      t.Type,
					TxDate:      t.Date,
					TxCreatedAt: t.CreatedAt,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(chain, func(i, j int) bool {
		a, b := chain[i], chain[j]
		if !a.TxDate.Equal(b.TxDate) {
			return a.TxDate.Before(b.TxDate)
		}
		if !a.TxCreatedAt.Equal(b.TxCreatedAt) {
			return a.TxCreatedAt.Before(b.TxCreatedAt)
		}
		if a.TransactionID != b.TransactionID {
			return a.TransactionID.String() < b.TransactionID.String()
		}
		return a.LineNo < b.LineNo
	})

	return chain, nil
}

func (r *LedgerRepo) List(ctx context.Context, filter ledger.ListFilter) ([]*ledger.Transaction, error) {
	var out []*ledger.Transaction
	err := r.store.access(ctx, func(st *state) error {
		for _, t := range st.transactions {
			if filter.Type != nil && t.Type != *filter.Type {
				continue
			}
			if filter.FromDate != nil && t.Date.Before(*filter.FromDate) {
				continue
			}
			if filter.ToDate != nil && t.Date.After(*filter.ToDate) {
				continue
			}
			if filter.IngredientID != nil && !touchesIngredient(t, *filter.IngredientID) {
				continue
			}
			out = append(out, copyTransaction(t))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Newest first.
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	out = paginate(out, filter.Offset, filter.Limit)
	return out, nil
}

func touchesIngredient(t *ledger.Transaction, ingredientID id.ID) bool {
	for _, item := range t.Items {
		if item.IngredientID == ingredientID {
			return true
		}
	}
	return false
}

// --- batch.Repository implementation ---

// BatchRepo implements batch.Repository.
type BatchRepo struct {
	store *Store
}

// Batches returns the batch repository view of the store.
func (s *Store) Batches() *BatchRepo {
	return &BatchRepo{store: s}
}

var _ batch.Repository = (*BatchRepo)(nil)

func (r *BatchRepo) Insert(ctx context.Context, b *batch.Batch) error {
	return r.store.access(ctx, func(st *state) error {
		st.batches[b.IngredientID] = append(st.batches[b.IngredientID], copyBatch(b))
		return nil
	})
}

func (r *BatchRepo) UpdateRemaining(ctx context.Context, b *batch.Batch) error {
	return r.store.access(ctx, func(st *state) error {
		for i, existing := range st.batches[b.IngredientID] {
			if existing.ID == b.ID {
				st.batches[b.IngredientID][i] = copyBatch(b)
				return nil
			}
		}
		return apperror.NewNotFound("batch", b.ID.String())
	})
}

func (r *BatchRepo) ListByIngredient(ctx context.Context, ingredientID id.ID) ([]*batch.Batch, error) {
	var out []*batch.Batch
	err := r.store.access(ctx, func(st *state) error {
		for _, b := range st.batches[ingredientID] {
			out = append(out, copyBatch(b))
		}
		return nil
	})
	return out, err
}

func (r *BatchRepo) ListLive(ctx context.Context, ingredientID id.ID) ([]*batch.Batch, error) {
	var out []*batch.Batch
	err := r.store.access(ctx, func(st *state) error {
		for _, b := range st.batches[ingredientID] {
			if b.IsLive() {
				out = append(out, copyBatch(b))
			}
		}
		return nil
	})
	return out, err
}

func (r *BatchRepo) ReplaceForIngredient(ctx context.Context, ingredientID id.ID, batches []*batch.Batch) error {
	return r.store.access(ctx, func(st *state) error {
		next := make([]*batch.Batch, len(batches))
		for i, b := range batches {
			next[i] = copyBatch(b)
		}
		st.batches[ingredientID] = next
		return nil
	})
}

// --- ledger.EditAudit implementation ---

// AuditRepo implements ledger.EditAudit without compression; the memory
// backend keeps raw payloads.
type AuditRepo struct {
	store *Store
}

// Audit returns the edit-audit view of the store.
func (s *Store) Audit() *AuditRepo {
	return &AuditRepo{store: s}
}

var _ ledger.EditAudit = (*AuditRepo)(nil)

func (r *AuditRepo) RecordEdit(ctx context.Context, entry ledger.EditAuditEntry) error {
	return r.store.access(ctx, func(st *state) error {
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now().UTC()
		}
		st.audits[entry.TransactionID] = append(st.audits[entry.TransactionID], entry)
		return nil
	})
}

func (r *AuditRepo) History(ctx context.Context, txID id.ID) ([]ledger.EditAuditEntry, error) {
	var out []ledger.EditAuditEntry
	err := r.store.access(ctx, func(st *state) error {
		out = append([]ledger.EditAuditEntry(nil), st.audits[txID]...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// --- helpers ---

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
