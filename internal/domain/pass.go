package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PassTier is a catalog entry. ID mirrors the on-chain pass identifier.
type PassTier struct {
	ID         int             `db:"id" json:"pass_id"`
	UUID       string          `db:"uuid" json:"id"`
	Name       string          `db:"name" json:"name"`
	USDPrice   decimal.Decimal `db:"usd_price" json:"usd_price"`
	PassType   string          `db:"pass_type" json:"pass_type"`
	PointPower int             `db:"point_power" json:"point_power"`
	CardURL    string          `db:"card_url" json:"card,omitempty"`
}

// Pass transaction sources
const (
	SourcePoller  = "poller"
	SourceWebhook = "webhook"
	SourceClient  = "client"
	SourceReplay  = "replay"
)

// PassTransaction is a ledger entry, unique per TxHash.
type PassTransaction struct {
	ID             string          `db:"id" json:"id"`
	TxHash         string          `db:"tx_hash" json:"tx_hash"`
	UserID         int64           `db:"user_id" json:"user_id"`
	WalletAddress  string          `db:"wallet_address" json:"wallet_address"`
	PassID         int             `db:"pass_id" json:"pass_id"`
	PreviousPassID *int            `db:"previous_pass_id" json:"previous_pass_id,omitempty"`
	Minted         bool            `db:"minted" json:"minted"`
	IsVerified     bool            `db:"is_verified" json:"is_verified"`
	AmountPaid     decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	USDPrice       decimal.Decimal `db:"usd_price" json:"usd_price"`
	IsUpgrade      bool            `db:"is_upgrade" json:"is_upgrade"`
	Source         string          `db:"source" json:"source"`
	BlockNumber    uint64          `db:"block_number" json:"block_number"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// MintEvent is the canonical shape of a first pass purchase, whatever path delivered it.
type MintEvent struct {
	TxHash        string
	WalletAddress string
	PassID        int
	AmountPaid    decimal.Decimal
	BlockNumber   uint64
	Source        string
}

// UpgradeEvent is the canonical shape of a tier upgrade.
type UpgradeEvent struct {
	TxHash        string
	WalletAddress string
	OldPassID     int
	NewPassID     int
	AmountPaid    decimal.Decimal
	BlockNumber   uint64
	Source        string
}

// Submission is a client claim that TxHash bought or upgraded to PassID.
type Submission struct {
	TxHash    string `json:"txHash" binding:"required"`
	PassID    int    `json:"passId" binding:"required"`
	IsUpgrade bool   `json:"isUpgrade"`
}

// LedgerResult describes the outcome of recording a pass transaction.
type LedgerResult struct {
	TxHash           string `json:"tx_hash"`
	UserID           int64  `json:"-"`
	PassID           int    `json:"pass_id"`
	Points           int    `json:"points"`
	Duplicate        bool   `json:"duplicate"`
	ReferrerID       int64  `json:"-"`
	ReferralAwarded  int64  `json:"-"`
	ReferrerNewTotal int64  `json:"-"`
}
