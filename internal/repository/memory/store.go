// Package memory is an in-process repository.Store. Every call, and every
// transaction as a whole, runs under one mutex; a failed transaction restores
// the snapshot taken when it began.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository"
)

var (
	_ repository.Store   = (*Store)(nil)
	_ repository.Queries = (*state)(nil)
)

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: newState()}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) WithTx(ctx context.Context, fn func(q repository.Queries) error) (err error) {
	s.mu.Lock()
	snapshot := s.st.clone()
	committed := false
	defer func() {
		if !committed {
			s.st = snapshot
		}
		s.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(s.st); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User, p *domain.Profile) error {
	return s.WithTx(ctx, func(q repository.Queries) error { return q.CreateUser(ctx, u, p) })
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetUserByID(ctx, id)
}

func (s *Store) GetUserByWallet(ctx context.Context, wallet string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetUserByWallet(ctx, wallet)
}

func (s *Store) TouchUser(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.TouchUser(ctx, id, at)
}

func (s *Store) GetProfile(ctx context.Context, userID int64) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetProfile(ctx, userID)
}

func (s *Store) LockProfile(ctx context.Context, userID int64) (*domain.Profile, error) {
	return s.GetProfile(ctx, userID)
}

func (s *Store) UpdateProfile(ctx context.Context, userID int64, upd domain.ProfileUpdate) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpdateProfile(ctx, userID, upd)
}

func (s *Store) SetCurrentPass(ctx context.Context, userID int64, passID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SetCurrentPass(ctx, userID, passID)
}

func (s *Store) PassPower(ctx context.Context, userID int64) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.PassPower(ctx, userID)
}

func (s *Store) AddPoints(ctx context.Context, userID int64, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.AddPoints(ctx, userID, delta)
}

func (s *Store) ClaimDailyLogin(ctx context.Context, userID int64, day time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ClaimDailyLogin(ctx, userID, day)
}

func (s *Store) GetUserIDByReferralCode(ctx context.Context, code string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetUserIDByReferralCode(ctx, code)
}

func (s *Store) CountReferrals(ctx context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CountReferrals(ctx, userID)
}

func (s *Store) GetPass(ctx context.Context, id int) (*domain.PassTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetPass(ctx, id)
}

func (s *Store) GetPassByUUID(ctx context.Context, id string) (*domain.PassTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetPassByUUID(ctx, id)
}

func (s *Store) ListPasses(ctx context.Context) ([]domain.PassTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListPasses(ctx)
}

func (s *Store) UpsertPass(ctx context.Context, p *domain.PassTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.UpsertPass(ctx, p)
}

func (s *Store) InsertPassTransaction(ctx context.Context, t *domain.PassTransaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.InsertPassTransaction(ctx, t)
}

func (s *Store) GetPassTransaction(ctx context.Context, txHash string) (*domain.PassTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetPassTransaction(ctx, txHash)
}

func (s *Store) ListPassTransactions(ctx context.Context, userID int64, limit int) ([]domain.PassTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListPassTransactions(ctx, userID, limit)
}

func (s *Store) InsertNonce(ctx context.Context, n *domain.LoginNonce) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.InsertNonce(ctx, n)
}

func (s *Store) GetNonce(ctx context.Context, nonce string) (*domain.LoginNonce, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetNonce(ctx, nonce)
}

func (s *Store) ConsumeNonce(ctx context.Context, nonce string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ConsumeNonce(ctx, nonce, now)
}

func (s *Store) DeleteNoncesBefore(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.DeleteNoncesBefore(ctx, before)
}

func (s *Store) CreateTask(ctx context.Context, t *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.CreateTask(ctx, t)
}

func (s *Store) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetTask(ctx, id)
}

func (s *Store) GetTaskByTitle(ctx context.Context, title string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetTaskByTitle(ctx, title)
}

func (s *Store) ListAvailableTasks(ctx context.Context, userID int64) ([]domain.AvailableTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListAvailableTasks(ctx, userID)
}

func (s *Store) LockTaskCompletion(ctx context.Context, userID, taskID int64) (*domain.TaskCompletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.LockTaskCompletion(ctx, userID, taskID)
}

func (s *Store) StartTaskCompletion(ctx context.Context, userID, taskID int64, at time.Time) (*domain.TaskCompletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.StartTaskCompletion(ctx, userID, taskID, at)
}

func (s *Store) FinishTaskCompletion(ctx context.Context, userID, taskID, awarded int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.FinishTaskCompletion(ctx, userID, taskID, awarded, at)
}

func (s *Store) RankOf(ctx context.Context, userID int64) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.RankOf(ctx, userID)
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Leaderboard(ctx, limit)
}

func (s *Store) GetCursor(ctx context.Context, name string) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetCursor(ctx, name)
}

func (s *Store) SetCursor(ctx context.Context, name string, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.SetCursor(ctx, name, block)
}

func (s *Store) InsertAudit(ctx context.Context, a *domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.InsertAudit(ctx, a)
}

func (s *Store) ListAudit(ctx context.Context, userID int64, limit int) ([]domain.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListAudit(ctx, userID, limit)
}
