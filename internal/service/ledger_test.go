package service

import (
	"fmt"
	"sync"
	"testing"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/chain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const walletA = "0xAAAaaaAAaAAaAAAaAAaAaaaAAAaaAaaAAaAaAAAA"

func TestMintRecordedOnceAcrossPaths(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, walletA, nil)

	ev := domain.MintEvent{
		TxHash:        "0xdef",
		WalletAddress: u.WalletAddress,
		PassID:        2,
		AmountPaid:    decimal.RequireFromString("0.05"),
		BlockNumber:   94,
		Source:        domain.SourcePoller,
	}
	res, err := env.ledger.RecordMint(env.ctx, ev)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 2, res.PassID)
	assert.Equal(t, 5, res.Points)

	p := env.profile(t, u.ID)
	assert.True(t, p.HasPass)
	require.NotNil(t, p.CurrentPassID)
	assert.Equal(t, 2, *p.CurrentPassID)

	tx, err := env.store.GetPassTransaction(env.ctx, "0xdef")
	require.NoError(t, err)
	assert.True(t, tx.IsVerified)
	assert.True(t, tx.Minted)
	assert.False(t, tx.IsUpgrade)
	assert.True(t, decimal.NewFromInt(20).Equal(tx.USDPrice))

	ev.Source = domain.SourceWebhook
	res, err = env.ledger.RecordMint(env.ctx, ev)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)

	txs, err := env.ledger.History(env.ctx, u.ID, 10)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, 1, env.notify.count("pass"))
}

func TestConcurrentDuplicatesApplySideEffectsOnce(t *testing.T) {
	env := newTestEnv(t)
	referrer := env.newUser(t, "0x1000000000000000000000000000000000000001", nil)
	env.givePass(t, referrer.ID, 4)
	buyer := env.newUser(t, "0x2000000000000000000000000000000000000002", &referrer.ID)

	ev := domain.MintEvent{TxHash: txHash(1).Hex(), WalletAddress: buyer.WalletAddress, PassID: 3, Source: domain.SourcePoller}

	const n = 20
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		duplicates int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := env.ledger.RecordMint(env.ctx, ev)
			assert.NoError(t, err)
			if res.Duplicate {
				mu.Lock()
				duplicates++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, n-1, duplicates)
	txs, err := env.ledger.History(env.ctx, buyer.ID, 10)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Equal(t, int64(20), env.profile(t, referrer.ID).ScoredPoints)
}

func TestReferralBonusPerRecordedTransaction(t *testing.T) {
	env := newTestEnv(t)
	x := env.newUser(t, "0x1000000000000000000000000000000000000001", nil)
	env.givePass(t, x.ID, 4)
	y := env.newUser(t, "0x2000000000000000000000000000000000000002", &x.ID)

	res, err := env.ledger.RecordMint(env.ctx, domain.MintEvent{
		TxHash: "0xabc", WalletAddress: y.WalletAddress, PassID: 4, Source: domain.SourcePoller,
	})
	require.NoError(t, err)
	assert.Equal(t, x.ID, res.ReferrerID)
	assert.Equal(t, int64(20), res.ReferralAwarded)
	assert.Equal(t, int64(20), env.profile(t, x.ID).ScoredPoints)

	_, err = env.ledger.RecordUpgrade(env.ctx, domain.UpgradeEvent{
		TxHash: "0xabd", WalletAddress: y.WalletAddress, OldPassID: 4, NewPassID: 2, Source: domain.SourceWebhook,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), env.profile(t, x.ID).ScoredPoints)
	assert.Equal(t, 2, *env.profile(t, y.ID).CurrentPassID)

	up, err := env.store.GetPassTransaction(env.ctx, "0xabd")
	require.NoError(t, err)
	assert.True(t, up.IsUpgrade)
	require.NotNil(t, up.PreviousPassID)
	assert.Equal(t, 4, *up.PreviousPassID)
	assert.Equal(t, 2, env.notify.count("points_referral"))
}

func TestReferralSkippedWhenReferrerHasNoPass(t *testing.T) {
	env := newTestEnv(t)
	x := env.newUser(t, "0x1000000000000000000000000000000000000001", nil)
	y := env.newUser(t, "0x2000000000000000000000000000000000000002", &x.ID)

	res, err := env.ledger.RecordMint(env.ctx, domain.MintEvent{TxHash: "0xabc", WalletAddress: y.WalletAddress, PassID: 2})
	require.NoError(t, err)
	assert.Zero(t, res.ReferralAwarded)
	assert.Zero(t, env.profile(t, x.ID).ScoredPoints)
	assert.True(t, env.profile(t, y.ID).HasPass)
}

func TestRecordRejectsUnknownParties(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, walletA, nil)

	_, err := env.ledger.RecordMint(env.ctx, domain.MintEvent{TxHash: "0x01", WalletAddress: "0x9999999999999999999999999999999999999999", PassID: 1})
	assert.ErrorIs(t, err, domain.ErrUnknownUser)

	_, err = env.ledger.RecordMint(env.ctx, domain.MintEvent{TxHash: "0x02", WalletAddress: u.WalletAddress, PassID: 42})
	assert.ErrorIs(t, err, domain.ErrUnknownPass)

	for _, h := range []string{"0x01", "0x02"} {
		_, err := env.store.GetPassTransaction(env.ctx, h)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
	_, err = env.store.GetUserByWallet(env.ctx, "0x9999999999999999999999999999999999999999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordMatchesWalletCaseInsensitively(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, walletA, nil)

	_, err := env.ledger.RecordMint(env.ctx, domain.MintEvent{TxHash: "0x03", WalletAddress: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", PassID: 1})
	require.NoError(t, err)
	assert.True(t, env.profile(t, u.ID).HasPass)
}

func TestFailedWriteLeavesNoPartialState(t *testing.T) {
	env := newTestEnv(t)
	ghost := int64(9999)
	u := env.newUser(t, walletA, &ghost)

	_, err := env.ledger.RecordMint(env.ctx, domain.MintEvent{TxHash: "0x04", WalletAddress: u.WalletAddress, PassID: 2})
	require.Error(t, err)

	_, err = env.store.GetPassTransaction(env.ctx, "0x04")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	p := env.profile(t, u.ID)
	assert.False(t, p.HasPass)
	assert.Nil(t, p.CurrentPassID)
	assert.Zero(t, env.notify.count("pass"))
}

func TestClientSubmission(t *testing.T) {
	buyer := common.HexToAddress(walletA)

	cases := []struct {
		name    string
		setup   func(env *testEnv, hash common.Hash)
		claim   int
		wantErr error
	}{
		{
			name:  "confirmed",
			setup: func(env *testEnv, h common.Hash) { env.chain.AddPurchase(h, buyer, 90, 3) },
			claim: 3,
		},
		{
			name:    "too shallow",
			setup:   func(env *testEnv, h common.Hash) { env.chain.AddPurchase(h, buyer, 97, 3) },
			claim:   3,
			wantErr: chain.ErrNotConfirmed,
		},
		{
			name:    "claimed pass differs from contract",
			setup:   func(env *testEnv, h common.Hash) { env.chain.AddPurchase(h, buyer, 90, 3) },
			claim:   2,
			wantErr: domain.ErrVerificationFailed,
		},
		{
			name: "sent by another wallet",
			setup: func(env *testEnv, h common.Hash) {
				env.chain.AddPurchase(h, common.HexToAddress("0x5000000000000000000000000000000000000005"), 90, 3)
			},
			claim:   3,
			wantErr: domain.ErrVerificationFailed,
		},
		{
			name: "not a contract call",
			setup: func(env *testEnv, h common.Hash) {
				env.chain.AddPurchase(h, buyer, 90, 3)
				other := common.HexToAddress("0x6000000000000000000000000000000000000006")
				env.chain.Txs[h].To = &other
			},
			claim:   3,
			wantErr: domain.ErrVerificationFailed,
		},
		{
			name: "reverted",
			setup: func(env *testEnv, h common.Hash) {
				env.chain.AddPurchase(h, buyer, 90, 3)
				env.chain.Receipts[h].Status = 0
			},
			claim:   3,
			wantErr: chain.ErrTxFailed,
		},
		{
			name:    "unknown to the node",
			setup:   func(*testEnv, common.Hash) {},
			claim:   3,
			wantErr: chain.ErrTxNotFound,
		},
		{
			name: "node unreachable",
			setup: func(env *testEnv, h common.Hash) {
				env.chain.AddPurchase(h, buyer, 90, 3)
				env.chain.SetErr(fmt.Errorf("%w: dial tcp: timeout", domain.ErrChainUnavailable))
			},
			claim:   3,
			wantErr: domain.ErrChainUnavailable,
		},
	}

	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			u := env.newUser(t, walletA, nil)
			h := txHash(byte(i + 1))
			tc.setup(env, h)

			res, err := env.ledger.VerifyAndRecordClientSubmission(env.ctx, u.ID, domain.Submission{TxHash: h.Hex(), PassID: tc.claim})
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				_, getErr := env.store.GetPassTransaction(env.ctx, normalizeTxHash(h.Hex()))
				assert.ErrorIs(t, getErr, domain.ErrNotFound)
				assert.False(t, env.profile(t, u.ID).HasPass)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 3, res.PassID)
			assert.Equal(t, 3, res.Points)
			assert.Equal(t, 3, *env.profile(t, u.ID).CurrentPassID)

			again, err := env.ledger.VerifyAndRecordClientSubmission(env.ctx, u.ID, domain.Submission{TxHash: h.Hex(), PassID: tc.claim})
			require.NoError(t, err)
			assert.True(t, again.Duplicate)
		})
	}
}

func TestClientSubmissionReportsContractPoints(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, walletA, nil)
	buyer := common.HexToAddress(walletA)
	h := txHash(0x40)
	env.chain.AddPurchase(h, buyer, 90, 3)
	env.chain.Passes[buyer] = chain.UserPass{PassID: 3, Points: 42}

	res, err := env.ledger.VerifyAndRecordClientSubmission(env.ctx, u.ID, domain.Submission{TxHash: h.Hex(), PassID: 3})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 3, res.PassID)
	assert.Equal(t, 42, res.Points)
}

func TestChainUnavailableIsNotVerificationFailure(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, walletA, nil)
	env.chain.SetErr(fmt.Errorf("%w: context deadline exceeded", domain.ErrChainUnavailable))

	_, err := env.ledger.VerifyAndRecordClientSubmission(env.ctx, u.ID, domain.Submission{TxHash: txHash(9).Hex(), PassID: 1})
	require.ErrorIs(t, err, domain.ErrChainUnavailable)
	assert.NotErrorIs(t, err, domain.ErrVerificationFailed)
}

func TestClientSubmissionRejectsMalformedHash(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, walletA, nil)

	_, err := env.ledger.VerifyAndRecordClientSubmission(env.ctx, u.ID, domain.Submission{TxHash: "0x1234", PassID: 1})
	assert.ErrorIs(t, err, ErrMalformedTxHash)
	assert.Zero(t, env.chain.Calls)
}

func TestClientSubmissionWithoutChainClient(t *testing.T) {
	env := newTestEnv(t)
	u := env.newUser(t, walletA, nil)
	env.ledger.chain = nil

	_, err := env.ledger.VerifyAndRecordClientSubmission(env.ctx, u.ID, domain.Submission{TxHash: txHash(1).Hex(), PassID: 1})
	assert.ErrorIs(t, err, domain.ErrChainUnavailable)
}
