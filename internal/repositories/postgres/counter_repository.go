package postgres

import (
	"context"
	"errors"

	"github.com/deskforge/api/internal/repositories"
)

// counterRepository issues sequence numbers from a single-row-per-key table.
// The upsert takes a row lock, so concurrent callers serialize per key and
// numbers never repeat.
type counterRepository struct {
	db *Registry
}

var _ repositories.CounterRepository = (*counterRepository)(nil)

func (r *counterRepository) Next(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, wrapError("postgres.counters.Next", errors.New("counter key is required"))
	}

	const query = `
		INSERT INTO counters (key, value)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET value = counters.value + 1
		RETURNING value`

	var value int64
	if err := r.db.querier(ctx).QueryRow(ctx, query, key).Scan(&value); err != nil {
		return 0, wrapError("postgres.counters.Next", err)
	}
	return value, nil
}
