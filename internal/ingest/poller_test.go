package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/chain/chaintest"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/logger"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPoller(t *testing.T, cfg PollerConfig) (*Poller, *chaintest.Fake, *memory.Store, *fakeRecorder) {
	t.Helper()
	fake := chaintest.NewFake(testContract)
	store := memory.New()
	rec := newFakeRecorder()
	return NewPoller(fake, store, rec, cfg, logger.Discard()), fake, store, rec
}

func cursorOf(t *testing.T, store *memory.Store) uint64 {
	t.Helper()
	c, ok, err := store.GetCursor(context.Background(), DefaultCursor)
	require.NoError(t, err)
	require.True(t, ok)
	return c
}

func TestPollerRecordsOnlyConfirmedEvents(t *testing.T) {
	ctx := context.Background()
	p, fake, store, rec := newTestPoller(t, PollerConfig{StartBlock: 1})
	mintAt(fake, 1, 10, 2)
	upgradeAt(fake, 2, 14, 2, 3)
	mintAt(fake, 3, 16, 1)
	fake.Head = 20

	require.NoError(t, p.PollOnce(ctx))
	require.Len(t, rec.mints, 1)
	require.Len(t, rec.upgrades, 1)
	assert.Equal(t, domain.SourcePoller, rec.mints[0].Source)
	assert.Equal(t, buyer.Hex(), rec.mints[0].WalletAddress)
	assert.Equal(t, "0.1", rec.mints[0].AmountPaid.String())
	assert.Equal(t, 3, rec.upgrades[0].NewPassID)
	assert.Equal(t, uint64(15), cursorOf(t, store))

	fake.Head = 30
	require.NoError(t, p.PollOnce(ctx))
	assert.Equal(t, 3, rec.count())
	assert.Equal(t, uint64(25), cursorOf(t, store))
}

func TestPollerChunksRange(t *testing.T) {
	p, fake, store, rec := newTestPoller(t, PollerConfig{StartBlock: 1, Chunk: 4})
	for i := byte(1); i <= 7; i++ {
		mintAt(fake, i, uint64(i)*2, 1)
	}
	fake.Head = 19

	require.NoError(t, p.PollOnce(context.Background()))
	assert.Equal(t, 7, rec.count())
	assert.Equal(t, uint64(14), cursorOf(t, store))
}

func TestPollerKeepsCursorOnRetryableError(t *testing.T) {
	ctx := context.Background()
	p, fake, store, rec := newTestPoller(t, PollerConfig{StartBlock: 1, Chunk: 4})
	mintAt(fake, 1, 3, 1)
	failing := mintAt(fake, 2, 10, 1)
	fake.Head = 20

	rec.setErr(failing, fmt.Errorf("%w: timeout", domain.ErrChainUnavailable))
	err := p.PollOnce(ctx)
	require.ErrorIs(t, err, domain.ErrChainUnavailable)
	assert.Equal(t, uint64(8), cursorOf(t, store))

	rec.setErr(failing, nil)
	require.NoError(t, p.PollOnce(ctx))
	assert.Equal(t, 2, rec.count())
	assert.Equal(t, uint64(15), cursorOf(t, store))
}

func TestPollerSkipsTerminalErrors(t *testing.T) {
	p, fake, store, rec := newTestPoller(t, PollerConfig{StartBlock: 1})
	stranger := mintAt(fake, 1, 3, 1)
	mintAt(fake, 2, 4, 99)
	fake.Head = 10
	rec.setErr(stranger, fmt.Errorf("%w: nobody", domain.ErrUnknownUser))
	rec.setErr(hashAt(2), fmt.Errorf("%w: 99", domain.ErrUnknownPass))

	require.NoError(t, p.PollOnce(context.Background()))
	assert.Equal(t, uint64(5), cursorOf(t, store))
}

func TestPollerStartsAtHeadWithoutHistory(t *testing.T) {
	p, fake, store, rec := newTestPoller(t, PollerConfig{})
	mintAt(fake, 1, 3, 1)
	fake.Head = 50

	require.NoError(t, p.PollOnce(context.Background()))
	assert.Zero(t, rec.count())
	assert.Equal(t, uint64(45), cursorOf(t, store))
}

func TestPollerBelowConfirmationDepth(t *testing.T) {
	p, fake, store, _ := newTestPoller(t, PollerConfig{StartBlock: 1})
	fake.Head = 3

	require.NoError(t, p.PollOnce(context.Background()))
	_, ok, err := store.GetCursor(context.Background(), DefaultCursor)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPollerRunSurvivesFailedCycles(t *testing.T) {
	p, fake, store, rec := newTestPoller(t, PollerConfig{
		StartBlock: 1,
		Interval:   5 * time.Millisecond,
		Backoff:    10 * time.Millisecond,
	})
	mintAt(fake, 1, 2, 1)
	fake.Head = 10
	fake.SetErr(fmt.Errorf("%w: connection refused", domain.ErrChainUnavailable))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	fake.SetErr(nil)
	require.Eventually(t, func() bool { return rec.count() == 1 }, 500*time.Millisecond, 5*time.Millisecond)
	cancel()

	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, uint64(5), cursorOf(t, store))
}

func TestReplayLeavesCursorAlone(t *testing.T) {
	ctx := context.Background()
	p, fake, store, rec := newTestPoller(t, PollerConfig{StartBlock: 1, Chunk: 3})
	mintAt(fake, 1, 2, 1)
	mintAt(fake, 2, 6, 1)
	mintAt(fake, 3, 9, 1)
	fake.Head = 15

	require.NoError(t, p.PollOnce(ctx))
	require.Equal(t, 3, rec.count())

	require.NoError(t, p.Replay(ctx, 5, 0))
	// every replayed event was already seen
	assert.Equal(t, 3, rec.count())
	assert.Equal(t, uint64(10), cursorOf(t, store))

	rec2 := newFakeRecorder()
	p.ledger = rec2
	require.NoError(t, p.Replay(ctx, 1, 6))
	require.Len(t, rec2.mints, 2)
	assert.Equal(t, domain.SourceReplay, rec2.mints[0].Source)
}
