// Package tx abstracts transaction boundaries so domain services stay
// independent of the storage backend. Implementations live in
// infrastructure/storage.
package tx

import "context"

// Manager runs a function inside a transaction.
type Manager interface {
	// RunInTransaction executes fn atomically: commit when fn returns
	// nil, roll back otherwise. Nested calls join the transaction
	// already carried by ctx.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager adds read-only transactions for multi-read consistency.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn against a single consistent snapshot.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
