package kyc

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-dms/atlas-dms/internal/leads"
	"github.com/atlas-dms/atlas-dms/internal/platform/db"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetLead(ctx context.Context, leadID int64) (leads.Lead, error)
	GetSessionByLead(ctx context.Context, leadID int64) (Session, error)
	CreateSession(ctx context.Context, session Session) (Session, error)
	UpdateSession(ctx context.Context, session Session) error
}

// TxRepository exposes the operations KYC completion runs in one transaction.
type TxRepository interface {
	UpdateSession(ctx context.Context, session Session) error
	QualifyLead(ctx context.Context, leadID int64, workflowStep int) error
	InsertLoanFacilitationFile(ctx context.Context, leadID int64) (bool, error)
	AppendAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps fn in a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetLead fetches the parent lead.
func (r *Repository) GetLead(ctx context.Context, leadID int64) (leads.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, interest_level, status, workflow_step FROM leads WHERE id = $1`, leadID)
	var lead leads.Lead
	var interest, status string
	if err := row.Scan(&lead.ID, &interest, &status, &lead.WorkflowStep); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return leads.Lead{}, ErrLeadNotFound
		}
		return leads.Lead{}, err
	}
	lead.InterestLevel = leads.InterestLevel(interest)
	lead.Status = leads.Status(status)
	return lead, nil
}

const sessionColumns = `id, lead_id, COALESCE(payment_method, ''), required_total, documents, verification, consent_status, status, created_at, updated_at`

// GetSessionByLead fetches the session for a lead.
func (r *Repository) GetSessionByLead(ctx context.Context, leadID int64) (Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM kyc_sessions WHERE lead_id = $1`, leadID)
	return scanSession(row)
}

// CreateSession inserts a fresh pending session.
func (r *Repository) CreateSession(ctx context.Context, session Session) (Session, error) {
	documents, verification, err := marshalMaps(session)
	if err != nil {
		return Session{}, err
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO kyc_sessions (lead_id, payment_method, required_total, documents, verification, consent_status, status, created_at, updated_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING `+sessionColumns,
		session.LeadID, string(session.PaymentMethod), session.RequiredTotal, documents, verification, string(session.ConsentStatus), string(session.Status))
	return scanSession(row)
}

// UpdateSession persists session state.
func (r *Repository) UpdateSession(ctx context.Context, session Session) error {
	return updateSession(ctx, r.pool, session)
}

func (t *txRepo) UpdateSession(ctx context.Context, session Session) error {
	return updateSession(ctx, t.tx, session)
}

// QualifyLead advances the parent lead on KYC completion.
func (t *txRepo) QualifyLead(ctx context.Context, leadID int64, workflowStep int) error {
	tag, err := t.tx.Exec(ctx, `UPDATE leads SET status='qualified', workflow_step=$2, updated_at=NOW() WHERE id=$1`, leadID, workflowStep)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}

// InsertLoanFacilitationFile creates the loan file for finance customers.
// The unique index on lead_id makes repeat completion a no-op.
func (t *txRepo) InsertLoanFacilitationFile(ctx context.Context, leadID int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `INSERT INTO loan_facilitation_files (lead_id, status, created_at)
VALUES ($1, 'open', NOW()) ON CONFLICT (lead_id) DO NOTHING`, leadID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *txRepo) AppendAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.AppendAuditTx(ctx, t.tx, log)
}

// execer is satisfied by both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func updateSession(ctx context.Context, db execer, session Session) error {
	documents, verification, err := marshalMaps(session)
	if err != nil {
		return err
	}
	tag, err := db.Exec(ctx, `UPDATE kyc_sessions SET payment_method=NULLIF($2, ''), required_total=$3, documents=$4, verification=$5, consent_status=$6, status=$7, updated_at=$8
WHERE id=$1`, session.ID, string(session.PaymentMethod), session.RequiredTotal, documents, verification, string(session.ConsentStatus), string(session.Status), time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func marshalMaps(session Session) ([]byte, []byte, error) {
	documents, err := json.Marshal(session.Documents)
	if err != nil {
		return nil, nil, err
	}
	verification, err := json.Marshal(session.Verification)
	if err != nil {
		return nil, nil, err
	}
	return documents, verification, nil
}

func scanSession(row pgx.Row) (Session, error) {
	var session Session
	var method, consent, status string
	var documents, verification []byte
	err := row.Scan(&session.ID, &session.LeadID, &method, &session.RequiredTotal, &documents, &verification, &consent, &status, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	session.PaymentMethod = PaymentMethod(method)
	session.ConsentStatus = ConsentStatus(consent)
	session.Status = SessionStatus(status)
	if err := json.Unmarshal(documents, &session.Documents); err != nil {
		return Session{}, err
	}
	if err := json.Unmarshal(verification, &session.Verification); err != nil {
		return Session{}, err
	}
	if session.Documents == nil {
		session.Documents = map[string]Document{}
	}
	if session.Verification == nil {
		session.Verification = map[string]string{}
	}
	return session, nil
}

var _ RepositoryPort = (*Repository)(nil)
