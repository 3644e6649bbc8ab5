package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"mise/internal/core/id"
	"mise/internal/domain/ledger"
)

// CompressionAlgo specifies the compression algorithm used at rest.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// EditAuditRepo implements ledger.EditAudit on PostgreSQL. Before and after
// payloads above the threshold are stored zstd-compressed.
type EditAuditRepo struct {
	txm               *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int // bytes
}

// NewEditAuditRepo creates the audit store.
func NewEditAuditRepo(txm *TxManager) (*EditAuditRepo, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &EditAuditRepo{
		txm:               txm,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024, // 10KB
	}, nil
}

var _ ledger.EditAudit = (*EditAuditRepo)(nil)

// RecordEdit persists one edit-trail entry.
func (r *EditAuditRepo) RecordEdit(ctx context.Context, entry ledger.EditAuditEntry) error {
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	algo := CompressionNone
	before := entry.Before
	after := entry.After
	var beforeCompressed, afterCompressed []byte

	if len(before)+len(after) > r.compressThreshold {
		beforeCompressed = r.encoder.EncodeAll(before, nil)
		afterCompressed = r.encoder.EncodeAll(after, nil)
		before, after = nil, nil
		algo = CompressionZstd
	}

	sql := `
		INSERT INTO stock_edit_audit (
			id, transaction_id, actor_id,
			before, before_compressed, after, after_compressed,
			compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.txm.GetQuerier(ctx).Exec(ctx, sql,
		entry.ID, entry.TransactionID, entry.ActorID,
		before, beforeCompressed, after, afterCompressed,
		algo, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert edit audit: %w", err)
	}

	return nil
}

// History returns the edit trail for a transaction, newest first.
func (r *EditAuditRepo) History(ctx context.Context, txID id.ID) ([]ledger.EditAuditEntry, error) {
	sql := `
		SELECT id, transaction_id, actor_id,
			   before, before_compressed, after, after_compressed,
			   compression_algo, created_at
		FROM stock_edit_audit
		WHERE transaction_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.txm.GetQuerier(ctx).Query(ctx, sql, txID)
	if err != nil {
		return nil, fmt.Errorf("query edit history: %w", err)
	}
	defer rows.Close()

	var entries []ledger.EditAuditEntry
	for rows.Next() {
		var (
			e                ledger.EditAuditEntry
			algo             CompressionAlgo
			beforeCompressed []byte
			afterCompressed  []byte
		)
		err := rows.Scan(
			&e.ID, &e.TransactionID, &e.ActorID,
			&e.Before, &beforeCompressed, &e.After, &afterCompressed,
			&algo, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan edit audit entry: %w", err)
		}

		if algo == CompressionZstd {
			if e.Before, err = r.decoder.DecodeAll(beforeCompressed, nil); err != nil {
				return nil, fmt.Errorf("decompress before payload: %w", err)
			}
			if e.After, err = r.decoder.DecodeAll(afterCompressed, nil); err != nil {
				return nil, fmt.Errorf("decompress after payload: %w", err)
			}
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
