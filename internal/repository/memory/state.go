package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository"

	"github.com/google/uuid"
)

type completionKey struct {
	userID, taskID int64
}

// state holds every table. It implements repository.Queries without locking;
// Store serializes access to it.
type state struct {
	nextUserID  int64
	nextTaskID  int64
	nextAuditID int64

	users         map[int64]domain.User
	wallets       map[string]int64
	profiles      map[int64]domain.Profile
	referralCodes map[string]int64
	passes        map[int]domain.PassTier
	txs           map[string]domain.PassTransaction
	nonces        map[string]domain.LoginNonce
	tasks         map[int64]domain.Task
	completions   map[completionKey]domain.TaskCompletion
	cursors       map[string]uint64
	audit         []domain.AuditLog
}

func newState() *state {
	return &state{
		users:         make(map[int64]domain.User),
		wallets:       make(map[string]int64),
		profiles:      make(map[int64]domain.Profile),
		referralCodes: make(map[string]int64),
		passes:        make(map[int]domain.PassTier),
		txs:           make(map[string]domain.PassTransaction),
		nonces:        make(map[string]domain.LoginNonce),
		tasks:         make(map[int64]domain.Task),
		completions:   make(map[completionKey]domain.TaskCompletion),
		cursors:       make(map[string]uint64),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone copies every table. Stored structs are replaced, never mutated through
// their pointer fields, so a shallow copy of each value is enough.
func (s *state) clone() *state {
	return &state{
		nextUserID:    s.nextUserID,
		nextTaskID:    s.nextTaskID,
		nextAuditID:   s.nextAuditID,
		users:         cloneMap(s.users),
		wallets:       cloneMap(s.wallets),
		profiles:      cloneMap(s.profiles),
		referralCodes: cloneMap(s.referralCodes),
		passes:        cloneMap(s.passes),
		txs:           cloneMap(s.txs),
		nonces:        cloneMap(s.nonces),
		tasks:         cloneMap(s.tasks),
		completions:   cloneMap(s.completions),
		cursors:       cloneMap(s.cursors),
		audit:         append([]domain.AuditLog(nil), s.audit...),
	}
}

// users

func (s *state) CreateUser(_ context.Context, u *domain.User, p *domain.Profile) error {
	key := strings.ToLower(u.WalletAddress)
	if _, ok := s.wallets[key]; ok {
		return repository.ErrWalletTaken
	}
	code := strings.ToUpper(p.ReferralCode)
	if _, ok := s.referralCodes[code]; ok {
		return repository.ErrReferralCodeTaken
	}

	s.nextUserID++
	now := time.Now()
	u.ID = s.nextUserID
	u.CreatedAt = now
	u.LastActiveAt = now
	p.UserID = u.ID
	p.ReferralCode = code

	s.users[u.ID] = *u
	s.wallets[key] = u.ID
	s.profiles[u.ID] = *p
	s.referralCodes[code] = u.ID
	return nil
}

func (s *state) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (s *state) GetUserByWallet(ctx context.Context, wallet string) (*domain.User, error) {
	id, ok := s.wallets[strings.ToLower(wallet)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}

func (s *state) TouchUser(_ context.Context, id int64, at time.Time) error {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	u.LastActiveAt = at
	s.users[id] = u
	return nil
}

// profiles

func (s *state) GetProfile(_ context.Context, userID int64) (*domain.Profile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *state) LockProfile(ctx context.Context, userID int64) (*domain.Profile, error) {
	return s.GetProfile(ctx, userID)
}

func (s *state) UpdateProfile(_ context.Context, userID int64, upd domain.ProfileUpdate) (*domain.Profile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if upd.FirstName != nil {
		p.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		p.LastName = *upd.LastName
	}
	if upd.Email != nil {
		p.Email = *upd.Email
	}
	s.profiles[userID] = p
	return &p, nil
}

func (s *state) SetCurrentPass(_ context.Context, userID int64, passID int) error {
	p, ok := s.profiles[userID]
	if !ok {
		return domain.ErrNotFound
	}
	if _, ok := s.passes[passID]; !ok {
		return domain.ErrUnknownPass
	}
	id := passID
	p.CurrentPassID = &id
	p.HasPass = true
	s.profiles[userID] = p
	return nil
}

func (s *state) PassPower(_ context.Context, userID int64) (int, bool, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return 0, false, domain.ErrNotFound
	}
	if p.CurrentPassID == nil {
		return 0, false, nil
	}
	tier, ok := s.passes[*p.CurrentPassID]
	if !ok {
		return 0, false, nil
	}
	return tier.PointPower, true, nil
}

func (s *state) AddPoints(_ context.Context, userID int64, delta int64) (int64, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	p.ScoredPoints += delta
	s.profiles[userID] = p
	return p.ScoredPoints, nil
}

func (s *state) ClaimDailyLogin(_ context.Context, userID int64, day time.Time) (bool, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return false, domain.ErrNotFound
	}
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	if p.LastLoginDate != nil && p.LastLoginDate.Equal(d) {
		return false, nil
	}
	p.LastLoginDate = &d
	s.profiles[userID] = p
	return true, nil
}

// referrals

func (s *state) GetUserIDByReferralCode(_ context.Context, code string) (int64, error) {
	id, ok := s.referralCodes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

func (s *state) CountReferrals(_ context.Context, userID int64) (int64, error) {
	var n int64
	for _, p := range s.profiles {
		if p.ReferredBy != nil && *p.ReferredBy == userID {
			n++
		}
	}
	return n, nil
}

// passes

func (s *state) GetPass(_ context.Context, id int) (*domain.PassTier, error) {
	p, ok := s.passes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *state) GetPassByUUID(_ context.Context, id string) (*domain.PassTier, error) {
	for _, p := range s.passes {
		if p.UUID == id {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *state) ListPasses(context.Context) ([]domain.PassTier, error) {
	out := make([]domain.PassTier, 0, len(s.passes))
	for _, p := range s.passes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) UpsertPass(_ context.Context, p *domain.PassTier) error {
	if existing, ok := s.passes[p.ID]; ok {
		p.UUID = existing.UUID
	} else if p.UUID == "" {
		p.UUID = uuid.NewString()
	}
	s.passes[p.ID] = *p
	return nil
}

// ledger

func (s *state) InsertPassTransaction(_ context.Context, t *domain.PassTransaction) (bool, error) {
	if existing, ok := s.txs[t.TxHash]; ok {
		if existing.IsVerified {
			return false, nil
		}
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.Minted = true
	t.IsVerified = true
	s.txs[t.TxHash] = *t
	return true, nil
}

func (s *state) GetPassTransaction(_ context.Context, txHash string) (*domain.PassTransaction, error) {
	t, ok := s.txs[txHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (s *state) ListPassTransactions(_ context.Context, userID int64, limit int) ([]domain.PassTransaction, error) {
	var out []domain.PassTransaction
	for _, t := range s.txs {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// nonces

func (s *state) InsertNonce(_ context.Context, n *domain.LoginNonce) error {
	if _, ok := s.nonces[n.Nonce]; ok {
		return domain.ErrConflict
	}
	s.nonces[n.Nonce] = *n
	return nil
}

func (s *state) GetNonce(_ context.Context, nonce string) (*domain.LoginNonce, error) {
	n, ok := s.nonces[nonce]
	if !ok {
		return nil, domain.ErrNonceNotFound
	}
	return &n, nil
}

func (s *state) ConsumeNonce(_ context.Context, nonce string, now time.Time) error {
	n, ok := s.nonces[nonce]
	switch {
	case !ok:
		return domain.ErrNonceNotFound
	case n.Expired(now):
		return domain.ErrNonceExpired
	case n.Used:
		return domain.ErrNonceAlreadyUsed
	}
	n.Used = true
	s.nonces[nonce] = n
	return nil
}

func (s *state) DeleteNoncesBefore(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for k, v := range s.nonces {
		if v.CreatedAt.Before(before) {
			delete(s.nonces, k)
			n++
		}
	}
	return n, nil
}

// tasks

func (s *state) CreateTask(_ context.Context, t *domain.Task) error {
	s.nextTaskID++
	t.ID = s.nextTaskID
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	s.tasks[t.ID] = *t
	return nil
}

func (s *state) GetTask(_ context.Context, id int64) (*domain.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (s *state) GetTaskByTitle(_ context.Context, title string) (*domain.Task, error) {
	var found *domain.Task
	for _, t := range s.tasks {
		if t.Title == title && (found == nil || t.ID < found.ID) {
			t := t
			found = &t
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found, nil
}

func (s *state) ListAvailableTasks(_ context.Context, userID int64) ([]domain.AvailableTask, error) {
	var out []domain.AvailableTask
	for _, t := range s.tasks {
		if !t.IsActive {
			continue
		}
		status := domain.TaskStatusPending
		if c, ok := s.completions[completionKey{userID, t.ID}]; ok {
			status = c.Status
		}
		if status == domain.TaskStatusCompleted {
			continue
		}
		out = append(out, domain.AvailableTask{Task: t, Status: status})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *state) LockTaskCompletion(_ context.Context, userID, taskID int64) (*domain.TaskCompletion, error) {
	c, ok := s.completions[completionKey{userID, taskID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *state) StartTaskCompletion(_ context.Context, userID, taskID int64, at time.Time) (*domain.TaskCompletion, error) {
	key := completionKey{userID, taskID}
	c, ok := s.completions[key]
	if !ok || c.Status == domain.TaskStatusPending {
		started := at
		c = domain.TaskCompletion{UserID: userID, TaskID: taskID, Status: domain.TaskStatusStarted, StartedAt: &started}
		s.completions[key] = c
	}
	return &c, nil
}

func (s *state) FinishTaskCompletion(_ context.Context, userID, taskID, awarded int64, at time.Time) error {
	key := completionKey{userID, taskID}
	c, ok := s.completions[key]
	if !ok || c.Status != domain.TaskStatusStarted {
		return domain.ErrNotStarted
	}
	done := at
	c.Status = domain.TaskStatusCompleted
	c.CompletedAt = &done
	c.AwardedPoints = awarded
	s.completions[key] = c
	return nil
}

// ranking

func (s *state) RankOf(_ context.Context, userID int64) (int64, int64, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return 0, 0, domain.ErrNotFound
	}
	rank := int64(1)
	for _, o := range s.profiles {
		if o.ScoredPoints > p.ScoredPoints {
			rank++
		}
	}
	return rank, p.ScoredPoints, nil
}

func (s *state) Leaderboard(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	var holders []domain.Profile
	for _, p := range s.profiles {
		if p.HasPass {
			holders = append(holders, p)
		}
	}
	sort.Slice(holders, func(i, j int) bool {
		if holders[i].ScoredPoints != holders[j].ScoredPoints {
			return holders[i].ScoredPoints > holders[j].ScoredPoints
		}
		return holders[i].UserID < holders[j].UserID
	})

	out := make([]domain.LeaderboardEntry, 0, min(limit, len(holders)))
	for i, p := range holders {
		if i >= limit {
			break
		}
		e := domain.LeaderboardEntry{
			Rank:          int64(i + 1),
			UserID:        p.UserID,
			WalletAddress: s.users[p.UserID].WalletAddress,
			FirstName:     p.FirstName,
			ScoredPoints:  p.ScoredPoints,
		}
		if p.CurrentPassID != nil {
			e.PassName = s.passes[*p.CurrentPassID].Name
		}
		out = append(out, e)
	}
	return out, nil
}

// cursors

func (s *state) GetCursor(_ context.Context, name string) (uint64, bool, error) {
	b, ok := s.cursors[name]
	return b, ok, nil
}

func (s *state) SetCursor(_ context.Context, name string, block uint64) error {
	if block > s.cursors[name] {
		s.cursors[name] = block
	} else if _, ok := s.cursors[name]; !ok {
		s.cursors[name] = block
	}
	return nil
}

// audit

func (s *state) InsertAudit(_ context.Context, a *domain.AuditLog) error {
	s.nextAuditID++
	a.ID = s.nextAuditID
	a.CreatedAt = time.Now()
	s.audit = append(s.audit, *a)
	return nil
}

func (s *state) ListAudit(_ context.Context, userID int64, limit int) ([]domain.AuditLog, error) {
	var out []domain.AuditLog
	for i := len(s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if s.audit[i].UserID == userID {
			out = append(out, s.audit[i])
		}
	}
	return out, nil
}
