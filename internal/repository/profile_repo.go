package repository

import (
	"context"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"

	"github.com/jackc/pgx/v5"
)

const profileColumns = `user_id, first_name, last_name, email, scored_points, has_pass,
	current_pass_id, last_login_date, referral_code, referred_by`

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	if err := row.Scan(
		&p.UserID, &p.FirstName, &p.LastName, &p.Email, &p.ScoredPoints, &p.HasPass,
		&p.CurrentPassID, &p.LastLoginDate, &p.ReferralCode, &p.ReferredBy,
	); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *queries) GetProfile(ctx context.Context, userID int64) (*domain.Profile, error) {
	return scanProfile(r.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
}

func (r *queries) LockProfile(ctx context.Context, userID int64) (*domain.Profile, error) {
	return scanProfile(r.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1 FOR UPDATE`, userID))
}

func (r *queries) UpdateProfile(ctx context.Context, userID int64, upd domain.ProfileUpdate) (*domain.Profile, error) {
	return scanProfile(r.db.QueryRow(ctx,
		`UPDATE profiles
		 SET first_name = COALESCE($2, first_name),
		     last_name = COALESCE($3, last_name),
		     email = COALESCE($4, email)
		 WHERE user_id = $1
		 RETURNING `+profileColumns,
		userID, upd.FirstName, upd.LastName, upd.Email))
}

func (r *queries) SetCurrentPass(ctx context.Context, userID int64, passID int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE profiles SET current_pass_id = $2, has_pass = true WHERE user_id = $1`,
		userID, passID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *queries) PassPower(ctx context.Context, userID int64) (int, bool, error) {
	var power *int
	err := r.db.QueryRow(ctx,
		`SELECT t.point_power
		 FROM profiles p
		 LEFT JOIN pass_tiers t ON t.id = p.current_pass_id
		 WHERE p.user_id = $1`, userID,
	).Scan(&power)
	if err != nil {
		return 0, false, notFound(err)
	}
	if power == nil {
		return 0, false, nil
	}
	return *power, true, nil
}

func (r *queries) AddPoints(ctx context.Context, userID int64, delta int64) (int64, error) {
	var total int64
	err := r.db.QueryRow(ctx,
		`UPDATE profiles SET scored_points = scored_points + $2 WHERE user_id = $1 RETURNING scored_points`,
		userID, delta,
	).Scan(&total)
	if err != nil {
		return 0, notFound(err)
	}
	return total, nil
}

func (r *queries) ClaimDailyLogin(ctx context.Context, userID int64, day time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE profiles SET last_login_date = $2::date
		 WHERE user_id = $1 AND last_login_date IS DISTINCT FROM $2::date`,
		userID, day)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
