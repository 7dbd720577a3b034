package wizard

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/luminouslogics/parishd/internal/draft"
	"github.com/luminouslogics/parishd/internal/upstream"
)

// PostgresStore persists wizard sessions in PostgreSQL. The draft and
// registration result travel as JSONB columns; everything the janitor
// and queries need is a plain column.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed session store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, s *Session) error {
	draftJSON, err := json.Marshal(s.Draft)
	if err != nil {
		return err
	}
	resultJSON, err := marshalResult(s.Result)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO wizard_sessions (id, step, draft, frozen, payment_state, result, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.Step, draftJSON, s.Frozen, string(s.PaymentState), resultJSON,
		s.CreatedAt, s.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	return p.scanSession(p.db.QueryRowContext(ctx, `
		SELECT id, step, draft, frozen, payment_state, result, created_at, updated_at
		FROM wizard_sessions WHERE id = $1`, id))
}

func (p *PostgresStore) Update(ctx context.Context, s *Session) error {
	draftJSON, err := json.Marshal(s.Draft)
	if err != nil {
		return err
	}
	resultJSON, err := marshalResult(s.Result)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE wizard_sessions SET step = $1, draft = $2, frozen = $3,
			payment_state = $4, result = $5, updated_at = $6
		WHERE id = $7`,
		s.Step, draftJSON, s.Frozen, string(s.PaymentState), resultJSON,
		s.UpdatedAt, s.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM wizard_sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (p *PostgresStore) DeleteIdle(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := p.db.ExecContext(ctx, `
		DELETE FROM wizard_sessions
		WHERE updated_at < $1 AND payment_state != $2`,
		cutoff, string(PaymentSucceeded),
	)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	return int(rows), err
}

func (p *PostgresStore) scanSession(row *sql.Row) (*Session, error) {
	s := &Session{}
	var (
		paymentState string
		draftJSON    []byte
		resultJSON   []byte
	)
	err := row.Scan(&s.ID, &s.Step, &draftJSON, &s.Frozen, &paymentState, &resultJSON,
		&s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	s.PaymentState = PaymentState(paymentState)
	s.Draft = draft.New()
	if len(draftJSON) > 0 {
		_ = json.Unmarshal(draftJSON, &s.Draft)
	}
	if len(resultJSON) > 0 {
		var res upstream.RegistrationResult
		if json.Unmarshal(resultJSON, &res) == nil {
			s.Result = &res
		}
	}
	return s, nil
}

func marshalResult(res *upstream.RegistrationResult) ([]byte, error) {
	if res == nil {
		return nil, nil
	}
	return json.Marshal(res)
}

// Migrate creates the wizard_sessions table (used in dev/test; prod
// uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS wizard_sessions (
			id            TEXT PRIMARY KEY,
			step          INT NOT NULL DEFAULT 1,
			draft         JSONB NOT NULL DEFAULT '{}',
			frozen        BOOLEAN NOT NULL DEFAULT FALSE,
			payment_state TEXT NOT NULL DEFAULT 'idle',
			result        JSONB,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_wizard_sessions_updated_at ON wizard_sessions(updated_at);
		CREATE INDEX IF NOT EXISTS idx_wizard_sessions_payment_state ON wizard_sessions(payment_state);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
