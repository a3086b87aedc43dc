package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/chain/chaintest"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/logger"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository/memory"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "relay-secret"

func newTestWebhook() (*Webhook, *chaintest.Fake, *fakeRecorder) {
	fake := chaintest.NewFake(testContract)
	fake.Head = 100
	rec := newFakeRecorder()
	return NewWebhook(testSecret, fake, rec, logger.Discard()), fake, rec
}

func TestWebhookIgnoresUnsignedRequests(t *testing.T) {
	w, _, rec := newTestWebhook()

	report, err := w.Handle(context.Background(), []byte(`{"events":[{"type":"PassMinted"}]}`), "")
	require.NoError(t, err)
	assert.Equal(t, "ignored", report.Status)
	assert.Zero(t, rec.count())
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	w, _, rec := newTestWebhook()
	body := []byte(`{"events":[]}`)

	_, err := w.Handle(context.Background(), body, Sign(body, "wrong"))
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Zero(t, rec.count())
}

func TestWebhookMalformedBody(t *testing.T) {
	w, _, _ := newTestWebhook()
	body := []byte(`{"events":`)

	report, err := w.Handle(context.Background(), body, Sign(body, testSecret))
	require.NoError(t, err)
	assert.Equal(t, "malformed", report.Status)
}

func TestWebhookBatchContinuesPastBadEvents(t *testing.T) {
	w, fake, rec := newTestWebhook()
	mint := hashAt(1)
	shallow := hashAt(2)
	upgrade := hashAt(3)
	fake.AddPurchase(mint, buyer, 90, 2)
	fake.AddPurchase(shallow, buyer, 98, 2)
	fake.AddPurchase(upgrade, buyer, 91, 3)

	body, err := json.Marshal(map[string]any{"events": []any{
		map[string]any{"type": "PassMinted", "txHash": mint.Hex(), "user": buyer.Hex(), "passId": 2, "amountPaid": "50000000000000000"},
		map[string]any{"type": "PassMinted", "txHash": "0xdef", "user": buyer.Hex(), "passId": 2},
		map[string]any{"type": "PassBurned", "txHash": mint.Hex(), "user": buyer.Hex()},
		map[string]any{"type": "PassMinted", "txHash": shallow.Hex(), "user": buyer.Hex(), "passId": "2"},
		"not an object",
		map[string]any{"type": "PassUpgraded", "txHash": upgrade.Hex(), "user": buyer.Hex(), "oldPassId": "2", "newPassId": 3},
		map[string]any{"type": "PassUpgraded", "txHash": upgrade.Hex(), "user": buyer.Hex(), "oldPassId": "2"},
	}})
	require.NoError(t, err)

	report, err := w.Handle(context.Background(), body, "sha256="+Sign(body, testSecret))
	require.NoError(t, err)
	assert.Equal(t, "processed", report.Status)

	var got []string
	for _, r := range report.Results {
		got = append(got, r.Result)
	}
	assert.Equal(t, []string{"recorded", "malformed", "malformed", "pending", "malformed", "recorded", "malformed"}, got)

	require.Len(t, rec.mints, 1)
	assert.Equal(t, domain.SourceWebhook, rec.mints[0].Source)
	assert.Equal(t, uint64(90), rec.mints[0].BlockNumber)
	assert.True(t, decimal.RequireFromString("0.05").Equal(rec.mints[0].AmountPaid))
	require.Len(t, rec.upgrades, 1)
	assert.Equal(t, 2, rec.upgrades[0].OldPassID)
	assert.Equal(t, 3, rec.upgrades[0].NewPassID)
}

func TestWebhookReportsChainOutage(t *testing.T) {
	w, fake, rec := newTestWebhook()
	h := hashAt(1)
	fake.AddPurchase(h, buyer, 90, 2)
	fake.SetErr(fmt.Errorf("%w: 502 from node", domain.ErrChainUnavailable))

	body := []byte(fmt.Sprintf(`{"events":[{"type":"PassMinted","txHash":%q,"user":%q,"passId":2}]}`, h.Hex(), buyer.Hex()))
	report, err := w.Handle(context.Background(), body, Sign(body, testSecret))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "retry", report.Results[0].Result)
	assert.Zero(t, rec.count())
}

// A mint seen by the poller and replayed by the relay is recorded once.
func TestMintReplayedThroughWebhookIsIdempotent(t *testing.T) {
	ctx := context.Background()
	log := logger.Discard()
	store := memory.New()
	require.NoError(t, store.UpsertPass(ctx, &domain.PassTier{ID: 2, Name: "Gold", PointPower: 5}))
	u := &domain.User{WalletAddress: buyer.Hex()}
	require.NoError(t, store.CreateUser(ctx, u, &domain.Profile{ReferralCode: "AAAAAAAAAA"}))

	fake := chaintest.NewFake(testContract)
	h := mintAt(fake, 7, 94, 2)
	fake.AddPurchase(h, buyer, 94, 2)
	fake.Head = 100

	audit := service.NewAuditService(store, log)
	points := service.NewPointsEngine(store, audit, nil)
	ledger := service.NewLedger(store, fake, service.NewPassCatalog(store, time.Minute), points, audit, nil, log)

	poller := NewPoller(fake, store, ledger, PollerConfig{StartBlock: 90}, log)
	require.NoError(t, poller.PollOnce(ctx))

	p, err := store.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, p.HasPass)
	assert.Equal(t, 2, *p.CurrentPassID)

	webhook := NewWebhook(testSecret, fake, ledger, log)
	body := []byte(fmt.Sprintf(`{"events":[{"type":"PassMinted","txHash":%q,"user":%q,"passId":"2","amountPaid":"0"}]}`, h.Hex(), buyer.Hex()))
	report, err := webhook.Handle(ctx, body, Sign(body, testSecret))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "duplicate", report.Results[0].Result)

	txs, err := store.ListPassTransactions(ctx, u.ID, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.SourcePoller, txs[0].Source)
	assert.Equal(t, h.Hex(), txs[0].TxHash)
}
