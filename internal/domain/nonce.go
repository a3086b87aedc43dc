package domain

import "time"

// NonceTTL is how long a login challenge stays valid.
const NonceTTL = 5 * time.Minute

type LoginNonce struct {
	Nonce     string    `db:"nonce"`
	CreatedAt time.Time `db:"created_at"`
	Used      bool      `db:"used"`
}

// Expired reports whether the nonce is past its TTL at now.
func (n *LoginNonce) Expired(now time.Time) bool {
	return now.Sub(n.CreatedAt) > NonceTTL
}
