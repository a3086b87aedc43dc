package repository

import (
	"context"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
)

const userColumns = `id, wallet_address, created_at, last_active_at`

func (r *queries) CreateUser(ctx context.Context, u *domain.User, p *domain.Profile) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (wallet_address)
		 VALUES ($1)
		 RETURNING id, created_at, last_active_at`,
		u.WalletAddress,
	).Scan(&u.ID, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		if isUniqueViolation(err, "users_wallet_lower_idx") {
			return ErrWalletTaken
		}
		return err
	}

	p.UserID = u.ID
	_, err = r.db.Exec(ctx,
		`INSERT INTO profiles (user_id, referral_code, referred_by)
		 VALUES ($1, $2, $3)`,
		p.UserID, p.ReferralCode, p.ReferredBy,
	)
	if isUniqueViolation(err, "profiles_referral_code_key") {
		return ErrReferralCodeTaken
	}
	return err
}

func (r *queries) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.WalletAddress, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *queries) GetUserByWallet(ctx context.Context, wallet string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(wallet_address) = lower($1)`, wallet,
	).Scan(&u.ID, &u.WalletAddress, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *queries) TouchUser(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_active_at = $2 WHERE id = $1`, id, at)
	return err
}
