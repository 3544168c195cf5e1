package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists idempotency records in the idempotency_records table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed idempotency store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("idempotency: pool is required")
	}
	return &PostgresStore{pool: pool}, nil
}

// Reserve implements the Store interface.
func (s *PostgresStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	id := recordID(key)
	expires := now.Add(ttl)

	// Fresh inserts and takeovers of expired rows both count as a new reservation.
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_records (key, status, request_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET
			status          = EXCLUDED.status,
			request_hash    = EXCLUDED.request_hash,
			response_status = NULL,
			response_header = NULL,
			response_body   = NULL,
			created_at      = EXCLUDED.created_at,
			expires_at      = EXCLUDED.expires_at
		WHERE idempotency_records.expires_at <= $4`,
		id, string(StatusPending), fingerprint, now, expires)
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: reserve key: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return Reservation{State: ReservationStateNew, Record: Record{
			Key:         key,
			Fingerprint: fingerprint,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   expires,
		}}, nil
	}

	record, err := s.fetch(ctx, id, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Row vanished between the upsert and the read, treat as contended.
			return Reservation{State: ReservationStatePending}, nil
		}
		return Reservation{}, err
	}

	if record.Fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	if record.Status == StatusCompleted {
		return Reservation{State: ReservationStateCompleted, Record: record}, nil
	}
	return Reservation{State: ReservationStatePending, Record: record}, nil
}

// SaveResponse implements the Store interface.
func (s *PostgresStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	id := recordID(key)

	var headerJSON []byte
	if headers := sanitizeHeaders(resp.Headers); len(headers) > 0 {
		encoded, err := json.Marshal(headers)
		if err != nil {
			return fmt.Errorf("idempotency: encode headers: %w", err)
		}
		headerJSON = encoded
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE idempotency_records SET
			status          = $2,
			response_status = $3,
			response_header = $4,
			response_body   = $5,
			expires_at      = $6
		WHERE key = $1 AND request_hash = $7`,
		id, string(StatusCompleted), resp.Status, headerJSON, resp.Body, now.Add(ttl), fingerprint)
	if err != nil {
		return fmt.Errorf("idempotency: save response: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFingerprintMismatch
	}
	return nil
}

// Release deletes the reservation so that subsequent attempts may retry.
func (s *PostgresStore) Release(ctx context.Context, key, fingerprint string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM idempotency_records WHERE key = $1 AND request_hash = $2`,
		recordID(key), fingerprint)
	if err != nil {
		return fmt.Errorf("idempotency: release key: %w", err)
	}
	return nil
}

// CleanupExpired implements the Store interface.
func (s *PostgresStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 200
	}
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM idempotency_records
		WHERE key IN (
			SELECT key FROM idempotency_records
			WHERE expires_at <= $1
			LIMIT $2
		)`, now.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("idempotency: cleanup expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) fetch(ctx context.Context, id, key string) (Record, error) {
	var (
		record     Record
		headerJSON []byte
		status     string
	)
	record.Key = key

	err := s.pool.QueryRow(ctx, `
		SELECT status, request_hash, COALESCE(response_status, 0), response_header, response_body, created_at, expires_at
		FROM idempotency_records
		WHERE key = $1`, id).Scan(
		&status,
		&record.Fingerprint,
		&record.ResponseStatus,
		&headerJSON,
		&record.ResponseBody,
		&record.CreatedAt,
		&record.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("idempotency: load record: %w", err)
	}

	record.Status = Status(status)
	record.UpdatedAt = record.CreatedAt
	if len(headerJSON) > 0 {
		if err := json.Unmarshal(headerJSON, &record.ResponseHeaders); err != nil {
			return Record{}, fmt.Errorf("idempotency: decode headers: %w", err)
		}
	}
	return record, nil
}
