// Package pgaudit sinks the operation-history audit log
// (spec.md §3 OperationHistory) into Postgres via jackc/pgx/v5's
// pooled connection, the relational counterpart to the document
// stores used for the hot message/conversation path. Grounded on the
// teacher's pgxdemo.go, generalized from a throwaway main into a
// reusable pool + repository.
package pgaudit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flare152/flare-im-core/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

const createTableSQL = `
CREATE TABLE IF NOT EXISTS message_operation_history (
	id BIGSERIAL PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	operation_type TEXT NOT NULL,
	operator TEXT NOT NULL,
	occurred_at BIGINT NOT NULL,
	payload BYTEA,
	inserted_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_op_history_message ON message_operation_history (tenant_id, message_id, occurred_at);
`

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, createTableSQL)
	return err
}

// Record appends one audit row. Operation-message replays are
// expected: this table is append-only and never deduplicated, since
// the audit trail's job is to show every attempt, not just the
// winning one.
func (s *Store) Record(ctx context.Context, h model.OperationHistory) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO message_operation_history (tenant_id, message_id, operation_type, operator, occurred_at, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		h.TenantID, h.MessageID, string(h.OperationType), h.Operator, h.Timestamp, h.Payload,
	)
	return err
}

func (s *Store) ListForMessage(ctx context.Context, tenantID, messageID string) ([]model.OperationHistory, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tenant_id, message_id, operation_type, operator, occurred_at, payload
		 FROM message_operation_history WHERE tenant_id = $1 AND message_id = $2 ORDER BY occurred_at ASC`,
		tenantID, messageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OperationHistory
	for rows.Next() {
		var h model.OperationHistory
		var opType string
		if err := rows.Scan(&h.TenantID, &h.MessageID, &opType, &h.Operator, &h.Timestamp, &h.Payload); err != nil {
			return nil, err
		}
		h.OperationType = model.OperationType(opType)
		out = append(out, h)
	}
	return out, rows.Err()
}
