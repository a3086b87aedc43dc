package domain

import "time"

// AuditLog records a ledger or points change next to the write that caused it.
type AuditLog struct {
	ID        int64          `db:"id" json:"id"`
	UserID    int64          `db:"user_id" json:"user_id"`
	Action    string         `db:"action" json:"action"`
	Category  string         `db:"category" json:"category"`
	Details   map[string]any `db:"details" json:"details"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// Audit categories
const (
	AuditCategoryAuth   = "auth"
	AuditCategoryLedger = "ledger"
	AuditCategoryPoints = "points"
	AuditCategoryTask   = "task"
)

// Audit actions
const (
	AuditActionLogin         = "login"
	AuditActionRegister      = "register"
	AuditActionPassMinted    = "pass_minted"
	AuditActionPassUpgraded  = "pass_upgraded"
	AuditActionLoginBonus    = "login_bonus"
	AuditActionReferralBonus = "referral_bonus"
	AuditActionTaskStarted   = "task_started"
	AuditActionTaskCompleted = "task_completed"
)
