package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/qrtopup/internal/domain"
)

var (
	ErrWalletNotFound  = errors.New("wallet not found")
	ErrIntentNotFound  = errors.New("payment intent not found")
	ErrReferenceTaken  = errors.New("reference code already in use")
	ErrIntentNotActive = errors.New("payment intent is no longer pending")
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS wallets (
	id         BIGSERIAL PRIMARY KEY,
	balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS payment_intents (
	id             UUID PRIMARY KEY,
	wallet_id      BIGINT NOT NULL REFERENCES wallets(id),
	reference_code TEXT NOT NULL UNIQUE,
	amount         BIGINT NOT NULL CHECK (amount > 0),
	method         TEXT NOT NULL,
	bank           TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	confirmed_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS wallet_entries (
	id             BIGSERIAL PRIMARY KEY,
	wallet_id      BIGINT NOT NULL REFERENCES wallets(id),
	intent_id      UUID REFERENCES payment_intents(id),
	delta          BIGINT NOT NULL,
	kind           TEXT NOT NULL,
	reference_code TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS wallet_entries_wallet_created_idx ON wallet_entries (wallet_id, created_at DESC);

CREATE TABLE IF NOT EXISTS bank_events (
	event_id        TEXT PRIMARY KEY,
	request_hash    TEXT NOT NULL,
	status          TEXT NOT NULL,
	intent_id       UUID,
	response_status INT,
	response_body   JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

type Store struct {
	Db *pgxpool.Pool
}

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

// Migrate creates the tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.Db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

// CreateWallet creates a new wallet with 0 balance.
func (s *Store) CreateWallet(ctx context.Context) (int64, error) {
	var id int64
	err := s.Db.QueryRow(ctx, "INSERT INTO wallets (balance) VALUES (0) RETURNING id").Scan(&id)
	return id, err
}

// GetWallet retrieves a single wallet by ID.
func (s *Store) GetWallet(ctx context.Context, id int64) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.Db.QueryRow(ctx, "SELECT id, balance, created_at FROM wallets WHERE id = $1", id).
		Scan(&w.ID, &w.Balance, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet query failed: %w", err)
	}
	return &w, nil
}

// GetWalletEntries retrieves the most recent entries of a wallet, newest first.
func (s *Store) GetWalletEntries(ctx context.Context, walletID int64, limit int) ([]domain.WalletEntry, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT id, wallet_id, intent_id, delta, kind, COALESCE(reference_code, ''), created_at
		 FROM wallet_entries WHERE wallet_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("wallet entries query failed: %w", err)
	}
	defer rows.Close()

	var entries []domain.WalletEntry
	for rows.Next() {
		var e domain.WalletEntry
		if err := rows.Scan(&e.ID, &e.WalletID, &e.IntentID, &e.Delta, &e.Kind, &e.ReferenceCode, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("wallet entry scan failed: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("wallet entries iteration failed: %w", err)
	}
	return entries, nil
}

// CreateIntent inserts a pending intent and fills in its creation time.
func (s *Store) CreateIntent(ctx context.Context, in *domain.PaymentIntent) error {
	err := s.Db.QueryRow(ctx,
		`INSERT INTO payment_intents (id, wallet_id, reference_code, amount, method, bank, status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'pending') RETURNING status, created_at`,
		in.ID, in.WalletID, in.ReferenceCode, in.Amount, in.Method, in.Bank,
	).Scan(&in.Status, &in.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == uniqueViolation:
				return ErrReferenceTaken
			case pgErr.Code == "23503":
				return ErrWalletNotFound
			}
		}
		return fmt.Errorf("intent insert failed: %w", err)
	}
	return nil
}

const intentColumns = "id, wallet_id, reference_code, amount, method, bank, status, created_at, confirmed_at"

func scanIntent(row pgx.Row) (*domain.PaymentIntent, error) {
	var in domain.PaymentIntent
	err := row.Scan(&in.ID, &in.WalletID, &in.ReferenceCode, &in.Amount, &in.Method, &in.Bank, &in.Status, &in.CreatedAt, &in.ConfirmedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("intent query failed: %w", err)
	}
	return &in, nil
}

// GetIntent retrieves an intent by its id.
func (s *Store) GetIntent(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	return scanIntent(s.Db.QueryRow(ctx, "SELECT "+intentColumns+" FROM payment_intents WHERE id = $1", id))
}

// GetIntentByReference retrieves an intent by its reference code.
func (s *Store) GetIntentByReference(ctx context.Context, ref string) (*domain.PaymentIntent, error) {
	return scanIntent(s.Db.QueryRow(ctx, "SELECT "+intentColumns+" FROM payment_intents WHERE reference_code = $1", ref))
}

// CancelIntent moves a pending intent to cancelled.
func (s *Store) CancelIntent(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	in, err := scanIntent(s.Db.QueryRow(ctx,
		"UPDATE payment_intents SET status = 'cancelled' WHERE id = $1 AND status = 'pending' RETURNING "+intentColumns,
		id))
	if errors.Is(err, ErrIntentNotFound) {
		if _, getErr := s.GetIntent(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrIntentNotActive
	}
	return in, err
}
