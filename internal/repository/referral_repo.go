package repository

import (
	"context"
	"strings"
)

// GetUserIDByReferralCode finds the owner of a referral code. Codes are stored upper-case.
func (r *queries) GetUserIDByReferralCode(ctx context.Context, code string) (int64, error) {
	var userID int64
	err := r.db.QueryRow(ctx,
		`SELECT user_id FROM profiles WHERE referral_code = $1`,
		strings.ToUpper(strings.TrimSpace(code)),
	).Scan(&userID)
	if err != nil {
		return 0, notFound(err)
	}
	return userID, nil
}

// CountReferrals returns how many users were referred by userID.
func (r *queries) CountReferrals(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM profiles WHERE referred_by = $1`, userID,
	).Scan(&n)
	return n, err
}
