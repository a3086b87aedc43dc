package service

import (
	"context"
	"crypto/ecdsa"
	"sync"
	"testing"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/chain/chaintest"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/logger"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository/memory"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testContract = common.HexToAddress("0x00000000000000000000000000000000000000cc")

type notification struct {
	userID int64
	kind   string
	amount int64
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (r *recordingNotifier) PointsAwarded(userID int64, rule string, awarded, _ int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, notification{userID: userID, kind: "points_" + rule, amount: awarded})
}

func (r *recordingNotifier) PassRecorded(userID int64, res domain.LedgerResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, notification{userID: userID, kind: "pass", amount: int64(res.PassID)})
}

func (r *recordingNotifier) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}

type testEnv struct {
	ctx      context.Context
	store    *memory.Store
	chain    *chaintest.Fake
	notify   *recordingNotifier
	nonces   *NonceService
	tokens   *TokenIssuer
	points   *PointsEngine
	ledger   *Ledger
	tasks    *TaskService
	rank     *RankService
	profiles *ProfileService
	auth     *AuthService
}

// pass tiers keyed by on-chain id, with their point power
var testTiers = map[int]int{1: 1, 2: 5, 3: 3, 4: 2}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := logger.Discard()

	store := memory.New()
	for id, power := range testTiers {
		require.NoError(t, store.UpsertPass(ctx, &domain.PassTier{
			ID:         id,
			Name:       "Tier",
			PointPower: power,
			USDPrice:   decimal.NewFromInt(int64(10 * id)),
		}))
	}

	fake := chaintest.NewFake(testContract)
	fake.Head = 100
	notify := &recordingNotifier{}
	audit := NewAuditService(store, log)
	points := NewPointsEngine(store, audit, notify)
	catalog := NewPassCatalog(store, time.Minute)
	tasks := NewTaskService(store, points, audit, log)
	rank := NewRankService(store)
	nonces := NewNonceService(store)
	tokens := NewTokenIssuer("test-secret", time.Hour, 24*time.Hour)

	return &testEnv{
		ctx:      ctx,
		store:    store,
		chain:    fake,
		notify:   notify,
		nonces:   nonces,
		tokens:   tokens,
		points:   points,
		ledger:   NewLedger(store, fake, catalog, points, audit, notify, log),
		tasks:    tasks,
		rank:     rank,
		profiles: NewProfileService(store, catalog, rank, tasks, log),
		auth:     NewAuthService(store, nonces, tokens, points, audit, log),
	}
}

// newUser registers wallet directly in the store.
func (e *testEnv) newUser(t *testing.T, wallet string, referredBy *int64) *domain.User {
	t.Helper()
	u := &domain.User{WalletAddress: common.HexToAddress(wallet).Hex()}
	require.NoError(t, e.store.CreateUser(e.ctx, u, &domain.Profile{ReferralCode: newReferralCode(), ReferredBy: referredBy}))
	return u
}

func (e *testEnv) givePass(t *testing.T, userID int64, passID int) {
	t.Helper()
	require.NoError(t, e.store.SetCurrentPass(e.ctx, userID, passID))
}

func (e *testEnv) profile(t *testing.T, userID int64) *domain.Profile {
	t.Helper()
	p, err := e.store.GetProfile(e.ctx, userID)
	require.NoError(t, err)
	return p
}

func (e *testEnv) createTask(t *testing.T, title string, points int64) *domain.Task {
	t.Helper()
	task := &domain.Task{Title: title, Points: points, TaskType: domain.TaskTypeOffSite, IsActive: true}
	require.NoError(t, e.store.CreateTask(e.ctx, task))
	return task
}

// personalSign signs message the way wallets do, with V as 27/28.
func personalSign(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func txHash(b byte) common.Hash {
	var h common.Hash
	h[31] = b
	h[0] = 0xde
	return h
}
