package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rahul4469/ct-referral-assistant/internal/crypto"
)

// PostgresStore persists one encrypted snapshot per session so results
// survive a restart.
type PostgresStore struct {
	pool      *pgxpool.Pool
	encryptor *crypto.Encryptor
	ttl       time.Duration
	now       func() time.Time
}

func NewPostgresStore(pool *pgxpool.Pool, encryptor *crypto.Encryptor, ttl time.Duration) *PostgresStore {
	return &PostgresStore{
		pool:      pool,
		encryptor: encryptor,
		ttl:       ttl,
		now:       time.Now,
	}
}

func (s *PostgresStore) Latest(ctx context.Context, sessionKey string) (*Snapshot, error) {
	query := `
		SELECT payload
		FROM session_snapshots
		WHERE session_hash = $1 AND updated_at > $2
	`

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var sealed []byte
	err := s.pool.QueryRow(ctx, query, sessionKey, s.cutoff()).Scan(&sealed)
	if err != nil {
		return nil, classifyStoreError("load snapshot", err)
	}

	payload, err := s.encryptor.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *PostgresStore) Save(ctx context.Context, sessionKey string, snapshot *Snapshot) error {
	query := `
		INSERT INTO session_snapshots (session_hash, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (session_hash)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()
	`

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	sealed, err := s.encryptor.Seal(payload)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot: %w", err)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if _, err := s.pool.Exec(ctx, query, sessionKey, sealed); err != nil {
		return classifyStoreError("save snapshot", err)
	}
	return nil
}

// PurgeExpired deletes snapshots past the session TTL.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM session_snapshots WHERE updated_at <= $1`, s.cutoff())
	if err != nil {
		return 0, classifyStoreError("purge snapshots", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) cutoff() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(-s.ttl)
}

// classifyStoreError maps pgx failures onto the store's sentinel errors.
func classifyStoreError(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSnapshotNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgerrcode.IsConnectionException(pgErr.Code) || pgerrcode.IsInsufficientResources(pgErr.Code) {
			return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
