package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
)

var (
	ErrWalletTaken       = fmt.Errorf("%w: wallet already registered", domain.ErrConflict)
	ErrReferralCodeTaken = fmt.Errorf("%w: referral code taken", domain.ErrConflict)
)

type UserQueries interface {
	// CreateUser inserts u and its profile p, filling ids and timestamps.
	CreateUser(ctx context.Context, u *domain.User, p *domain.Profile) error
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByWallet(ctx context.Context, wallet string) (*domain.User, error)
	TouchUser(ctx context.Context, id int64, at time.Time) error
}

type ProfileQueries interface {
	GetProfile(ctx context.Context, userID int64) (*domain.Profile, error)
	// LockProfile reads the profile and holds a row lock until the transaction ends.
	LockProfile(ctx context.Context, userID int64) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, userID int64, upd domain.ProfileUpdate) (*domain.Profile, error)
	SetCurrentPass(ctx context.Context, userID int64, passID int) error
	// PassPower returns the point power of the user's current pass, and false when they hold none.
	PassPower(ctx context.Context, userID int64) (int, bool, error)
	AddPoints(ctx context.Context, userID int64, delta int64) (int64, error)
	// ClaimDailyLogin sets last_login_date to day unless it already is, reporting whether it changed.
	ClaimDailyLogin(ctx context.Context, userID int64, day time.Time) (bool, error)
}

type ReferralQueries interface {
	GetUserIDByReferralCode(ctx context.Context, code string) (int64, error)
	CountReferrals(ctx context.Context, userID int64) (int64, error)
}

type PassQueries interface {
	GetPass(ctx context.Context, id int) (*domain.PassTier, error)
	GetPassByUUID(ctx context.Context, uuid string) (*domain.PassTier, error)
	ListPasses(ctx context.Context) ([]domain.PassTier, error)
	UpsertPass(ctx context.Context, p *domain.PassTier) error
}

type LedgerQueries interface {
	// InsertPassTransaction writes t as verified. It returns false when a
	// verified row for t.TxHash already exists.
	InsertPassTransaction(ctx context.Context, t *domain.PassTransaction) (bool, error)
	GetPassTransaction(ctx context.Context, txHash string) (*domain.PassTransaction, error)
	ListPassTransactions(ctx context.Context, userID int64, limit int) ([]domain.PassTransaction, error)
}

type NonceQueries interface {
	InsertNonce(ctx context.Context, n *domain.LoginNonce) error
	// GetNonce reads nonce without changing it, or returns domain.ErrNonceNotFound.
	GetNonce(ctx context.Context, nonce string) (*domain.LoginNonce, error)
	// ConsumeNonce marks nonce used if it is unused and younger than
	// domain.NonceTTL at now. Failures are domain.ErrNonce* values.
	ConsumeNonce(ctx context.Context, nonce string, now time.Time) error
	DeleteNoncesBefore(ctx context.Context, before time.Time) (int64, error)
}

type TaskQueries interface {
	CreateTask(ctx context.Context, t *domain.Task) error
	GetTask(ctx context.Context, id int64) (*domain.Task, error)
	GetTaskByTitle(ctx context.Context, title string) (*domain.Task, error)
	ListAvailableTasks(ctx context.Context, userID int64) ([]domain.AvailableTask, error)
	LockTaskCompletion(ctx context.Context, userID, taskID int64) (*domain.TaskCompletion, error)
	// StartTaskCompletion moves an absent or pending record to started and returns the current record.
	StartTaskCompletion(ctx context.Context, userID, taskID int64, at time.Time) (*domain.TaskCompletion, error)
	FinishTaskCompletion(ctx context.Context, userID, taskID, awarded int64, at time.Time) error
}

type RankQueries interface {
	// RankOf returns 1 + the number of profiles with strictly more points, and the user's points.
	RankOf(ctx context.Context, userID int64) (rank int64, points int64, err error)
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

type CursorQueries interface {
	GetCursor(ctx context.Context, name string) (uint64, bool, error)
	SetCursor(ctx context.Context, name string, block uint64) error
}

type AuditQueries interface {
	InsertAudit(ctx context.Context, a *domain.AuditLog) error
	ListAudit(ctx context.Context, userID int64, limit int) ([]domain.AuditLog, error)
}

// Queries is everything the services read and write, inside or outside a transaction.
type Queries interface {
	UserQueries
	ProfileQueries
	ReferralQueries
	PassQueries
	LedgerQueries
	NonceQueries
	TaskQueries
	RankQueries
	CursorQueries
	AuditQueries
}

// Store is a Queries that can also open a transaction. fn's writes commit
// together when it returns nil and are discarded otherwise.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
}
