package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs. Rows are append-only:
// nothing in the application updates or deletes them.
type AuditLog struct {
	ActorID  int64
	Action   string
	Entity   string
	EntityID string
	Changes  map[string]any
	At       time.Time
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

const auditInsert = `INSERT INTO audit_logs (actor_id, action, entity, entity_id, changes, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// Record persists the log entry on the pool, outside any transaction.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	changes, err := validateAudit(log)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, auditInsert, log.ActorID, log.Action, log.Entity, log.EntityID, changes, auditAt(log))
	return err
}

// AppendAuditTx writes the log entry on an open transaction so the audit row
// commits or rolls back together with the mutation it records.
func AppendAuditTx(ctx context.Context, tx pgx.Tx, log AuditLog) error {
	changes, err := validateAudit(log)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, auditInsert, log.ActorID, log.Action, log.Entity, log.EntityID, changes, auditAt(log))
	return err
}

func auditAt(log AuditLog) time.Time {
	if log.At.IsZero() {
		return time.Now().UTC()
	}
	return log.At
}

func validateAudit(log AuditLog) ([]byte, error) {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return nil, errors.New("audit log requires action/entity/entity_id")
	}
	return json.Marshal(log.Changes)
}
