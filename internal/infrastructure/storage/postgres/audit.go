package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appcontext "stockledger/internal/core/context"
	"stockledger/internal/core/id"
	"stockledger/internal/domain/guard"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// OverrideEntry is one audited forced commit: an operator confirmed
// negative-resulting lines and the ledger recorded who, what and how
// far negative. Written in the same transaction as the movements.
type OverrideEntry struct {
	ID           id.ID  `db:"id"`
	TenantID     string `db:"tenant_id"`
	RecorderID   id.ID  `db:"recorder_id"`
	RecorderType string `db:"recorder_type"`
	ActorID      string `db:"actor_id"`

	Warnings           json.RawMessage `db:"warnings"`
	WarningsCompressed []byte          `db:"warnings_compressed"`
	CompressionAlgo    CompressionAlgo `db:"compression_algo"`

	CreatedAt time.Time `db:"created_at"`
}

type overridePayload struct {
	Stock []guard.BalanceWarning `json:"stock,omitempty"`
	Cash  []guard.BalanceWarning `json:"cash,omitempty"`
}

// OverrideAudit persists forced-commit audit entries. Large warning
// payloads are zstd-compressed.
type OverrideAudit struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// Compile-time check that OverrideAudit satisfies the guard protocol.
var _ guard.Auditor = (*OverrideAudit)(nil)

// NewOverrideAudit creates the forced-commit audit trail.
func NewOverrideAudit(txManager *TxManager) (*OverrideAudit, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &OverrideAudit{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024,
	}, nil
}

// LogForcedCommit records a forced override. Called by the guard
// protocol inside the commit transaction, so a failed audit write rolls
// the whole commit back: no unaudited overrides.
func (a *OverrideAudit) LogForcedCommit(ctx context.Context, recorderID id.ID, recorderType string, stockWarnings, cashWarnings []guard.BalanceWarning) error {
	payload, err := json.Marshal(overridePayload{Stock: stockWarnings, Cash: cashWarnings})
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	entry := OverrideEntry{
		ID:              id.New(),
		TenantID:        appcontext.GetTenantID(ctx),
		RecorderID:      recorderID,
		RecorderType:    recorderType,
		ActorID:         appcontext.GetActorID(ctx),
		Warnings:        payload,
		CompressionAlgo: CompressionNone,
		CreatedAt:       time.Now().UTC(),
	}

	if len(entry.Warnings) > a.compressThreshold {
		entry.WarningsCompressed = a.encoder.EncodeAll(entry.Warnings, nil)
		entry.Warnings = nil
		entry.CompressionAlgo = CompressionZstd
	}

	sql := `
		INSERT INTO sys_forced_commits (
			id, tenant_id, recorder_id, recorder_type, actor_id,
			warnings, warnings_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	querier := a.txManager.GetQuerier(ctx)
	_, err = querier.Exec(ctx, sql,
		entry.ID, entry.TenantID, entry.RecorderID, entry.RecorderType, entry.ActorID,
		entry.Warnings, entry.WarningsCompressed, entry.CompressionAlgo, entry.CreatedAt,
	)
	return err
}

// History retrieves forced-commit entries for a recorder, newest first.
func (a *OverrideAudit) History(ctx context.Context, recorderID id.ID, limit int) ([]OverrideEntry, error) {
	sql := `
		SELECT id, tenant_id, recorder_id, recorder_type, actor_id,
		       warnings, warnings_compressed, compression_algo, created_at
		FROM sys_forced_commits
		WHERE recorder_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := a.txManager.GetQuerier(ctx).Query(ctx, sql, recorderID, limit)
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	defer rows.Close()

	var entries []OverrideEntry
	for rows.Next() {
		var e OverrideEntry
		err := rows.Scan(
			&e.ID, &e.TenantID, &e.RecorderID, &e.RecorderType, &e.ActorID,
			&e.Warnings, &e.WarningsCompressed, &e.CompressionAlgo, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		if e.CompressionAlgo == CompressionZstd && len(e.WarningsCompressed) > 0 {
			decompressed, err := a.decoder.DecodeAll(e.WarningsCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress warnings: %w", err)
			}
			e.Warnings = decompressed
			e.WarningsCompressed = nil
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}
