package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

func (r *queries) GetCursor(ctx context.Context, name string) (uint64, bool, error) {
	var block int64
	err := r.db.QueryRow(ctx, `SELECT block_number FROM chain_cursors WHERE name = $1`, name).Scan(&block)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SetCursor never moves a cursor backwards.
func (r *queries) SetCursor(ctx context.Context, name string, block uint64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO chain_cursors (name, block_number) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE
		SET block_number = GREATEST(chain_cursors.block_number, EXCLUDED.block_number), updated_at = now()
	`, name, int64(block))
	return err
}
