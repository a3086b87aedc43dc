package repository

import (
	"context"
	"errors"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"

	"github.com/jackc/pgx/v5"
)

func (r *queries) InsertNonce(ctx context.Context, n *domain.LoginNonce) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO login_nonces (nonce, created_at, used) VALUES ($1, $2, false)`,
		n.Nonce, n.CreatedAt)
	if isUniqueViolation(err, "") {
		return domain.ErrConflict
	}
	return err
}

func (r *queries) GetNonce(ctx context.Context, nonce string) (*domain.LoginNonce, error) {
	var n domain.LoginNonce
	err := r.db.QueryRow(ctx,
		`SELECT nonce, created_at, used FROM login_nonces WHERE nonce = $1`, nonce,
	).Scan(&n.Nonce, &n.CreatedAt, &n.Used)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNonceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// ConsumeNonce flips used in a single conditional update so two concurrent
// callers cannot both succeed. The follow-up read only classifies a failure.
func (r *queries) ConsumeNonce(ctx context.Context, nonce string, now time.Time) error {
	var consumed string
	err := r.db.QueryRow(ctx,
		`UPDATE login_nonces SET used = true
		 WHERE nonce = $1 AND NOT used AND created_at >= $2
		 RETURNING nonce`,
		nonce, now.Add(-domain.NonceTTL),
	).Scan(&consumed)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	n, err := r.GetNonce(ctx, nonce)
	if err != nil {
		return err
	}
	if n.Expired(now) {
		return domain.ErrNonceExpired
	}
	return domain.ErrNonceAlreadyUsed
}

func (r *queries) DeleteNoncesBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM login_nonces WHERE created_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
