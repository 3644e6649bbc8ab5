package ledger

import (
	"context"
	"encoding/json"
	"time"

	"mise/internal/core/id"
)

// EditAuditEntry records one retroactive transaction edit: who edited,
// when, and the full pre-edit state of the transaction and the affected
// snapshot chain. Payloads may be compressed at rest by the store.
type EditAuditEntry struct {
	ID            id.ID           `db:"id" json:"id"`
	TransactionID id.ID           `db:"transaction_id" json:"transactionId"`
	ActorID       string          `db:"actor_id" json:"actorId"`
	Before        json.RawMessage `db:"before" json:"before"`
	After         json.RawMessage `db:"after" json:"after"`
	CreatedAt     time.Time       `db:"created_at" json:"createdAt"`
}

// EditAudit stores the edit trail for transactions.
type EditAudit interface {
	// RecordEdit appends an entry (called inside the cascade's transaction).
	RecordEdit(ctx context.Context, entry EditAuditEntry) error

	// History returns entries for a transaction, newest first.
	History(ctx context.Context, txID id.ID) ([]EditAuditEntry, error)
}
