package domain

import "time"

// User is a wallet-backed identity. WalletAddress is kept in checksum form.
type User struct {
	ID            int64     `db:"id" json:"id"`
	WalletAddress string    `db:"wallet_address" json:"wallet_address"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	LastActiveAt  time.Time `db:"last_active_at" json:"last_active_at"`
}

// Profile is the mutable per-user aggregate the ledger and points engine write to.
type Profile struct {
	UserID        int64      `db:"user_id" json:"user_id"`
	FirstName     string     `db:"first_name" json:"first_name"`
	LastName      string     `db:"last_name" json:"last_name"`
	Email         string     `db:"email" json:"email"`
	ScoredPoints  int64      `db:"scored_points" json:"scored_point"`
	HasPass       bool       `db:"has_pass" json:"has_pass"`
	CurrentPassID *int       `db:"current_pass_id" json:"current_pass_id,omitempty"`
	LastLoginDate *time.Time `db:"last_login_date" json:"last_login_date,omitempty"`
	ReferralCode  string     `db:"referral_code" json:"referral_code"`
	ReferredBy    *int64     `db:"referred_by" json:"referred_by,omitempty"`
}

// IsComplete reports whether the contact fields required by the profile task are set.
func (p *Profile) IsComplete() bool {
	return p.FirstName != "" && p.LastName != "" && p.Email != ""
}

// ProfileUpdate carries the user-editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
}

// ProfileView is the read model returned to the owner of a profile.
type ProfileView struct {
	User        User      `json:"user"`
	Profile     Profile   `json:"profile"`
	CurrentPass *PassTier `json:"current_pass,omitempty"`
}

// ProfileStats is the summary shown on the stats screen.
type ProfileStats struct {
	Points        int64 `json:"point"`
	Rank          int64 `json:"rank"`
	ReferralCount int64 `json:"referral_count"`
}

// LeaderboardEntry is one row of the leaderboard.
type LeaderboardEntry struct {
	Rank          int64  `json:"rank"`
	UserID        int64  `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
	FirstName     string `json:"first_name,omitempty"`
	ScoredPoints  int64  `json:"scored_point"`
	PassName      string `json:"pass_name,omitempty"`
}
