// Package ingest feeds confirmed pass events into the ledger, by polling the
// chain and by accepting signed batches from an indexing relay.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/chain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/metrics"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository"
)

// DefaultCursor names the poller's row in chain_cursors.
const DefaultCursor = "pass_events"

// Recorder is the ledger surface both ingest paths call.
type Recorder interface {
	RecordMint(ctx context.Context, ev domain.MintEvent) (domain.LedgerResult, error)
	RecordUpgrade(ctx context.Context, ev domain.UpgradeEvent) (domain.LedgerResult, error)
}

type PollerConfig struct {
	Interval   time.Duration
	Backoff    time.Duration
	StartBlock uint64
	Chunk      uint64
	CursorName string
}

// Poller reads PassMinted and PassUpgraded logs that are at least
// chain.Confirmations deep and records them. Its cursor is the last block
// whose events have all been handled.
type Poller struct {
	chain   chain.Client
	cursors repository.CursorQueries
	ledger  Recorder
	cfg     PollerConfig
	log     *slog.Logger
}

func NewPoller(client chain.Client, cursors repository.CursorQueries, ledger Recorder, cfg PollerConfig, log *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 10 * time.Second
	}
	if cfg.Chunk == 0 {
		cfg.Chunk = 2000
	}
	if cfg.CursorName == "" {
		cfg.CursorName = DefaultCursor
	}
	return &Poller{chain: client, cursors: cursors, ledger: ledger, cfg: cfg, log: log.With("component", "poller")}
}

// Run polls until ctx is cancelled. A failed cycle is logged and retried
// after the backoff interval.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("chain poller started", "interval", p.cfg.Interval, "backoff", p.cfg.Backoff)
	for {
		wait := p.cfg.Interval
		if err := p.safePoll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.IngestPollErrors.Inc()
			p.log.Error("poll cycle failed", "error", err, "retry_in", p.cfg.Backoff)
			wait = p.cfg.Backoff
		}

		select {
		case <-ctx.Done():
			p.log.Info("chain poller stopped")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (p *Poller) safePoll(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poll panic: %v", r)
		}
	}()
	return p.PollOnce(ctx)
}

// PollOnce processes every confirmed block after the cursor.
func (p *Poller) PollOnce(ctx context.Context) error {
	head, err := p.chain.BlockNumber(ctx)
	if err != nil {
		return err
	}
	if head < chain.Confirmations {
		return nil
	}
	safe := head - chain.Confirmations

	cursor, ok, err := p.cursors.GetCursor(ctx, p.cfg.CursorName)
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}
	if !ok {
		if p.cfg.StartBlock == 0 {
			// no history requested: start from the current safe head
			return p.advance(ctx, safe)
		}
		cursor = p.cfg.StartBlock - 1
	}

	for from := cursor + 1; from <= safe; from += p.cfg.Chunk {
		to := min(from+p.cfg.Chunk-1, safe)
		if err := p.processRange(ctx, from, to, domain.SourcePoller); err != nil {
			return err
		}
		if err := p.advance(ctx, to); err != nil {
			return err
		}
	}
	return nil
}

func (p *Poller) advance(ctx context.Context, block uint64) error {
	if err := p.cursors.SetCursor(ctx, p.cfg.CursorName, block); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	metrics.IngestCursor.Set(float64(block))
	return nil
}

// Replay re-reads confirmed blocks [from, to] without moving the cursor.
// A zero to means the current safe head. Recorded transactions come back as
// duplicates, so replaying is safe at any time.
func (p *Poller) Replay(ctx context.Context, from, to uint64) error {
	head, err := p.chain.BlockNumber(ctx)
	if err != nil {
		return err
	}
	if head < chain.Confirmations {
		return nil
	}
	safe := head - chain.Confirmations
	if to == 0 || to > safe {
		to = safe
	}

	for start := from; start <= to; start += p.cfg.Chunk {
		end := min(start+p.cfg.Chunk-1, to)
		if err := p.processRange(ctx, start, end, domain.SourceReplay); err != nil {
			return err
		}
		p.log.Info("replayed blocks", "from", start, "to", end)
	}
	return nil
}

func (p *Poller) processRange(ctx context.Context, from, to uint64, source string) error {
	events, err := p.chain.PassEvents(ctx, from, to)
	if err != nil {
		return fmt.Errorf("fetch logs %d-%d: %w", from, to, err)
	}
	for _, ev := range events {
		outcome, err := dispatch(ctx, p.ledger, ev, source)
		metrics.IngestEvents.WithLabelValues(source, outcome).Inc()
		if err == nil {
			continue
		}
		if terminal(err) {
			p.log.Warn("skipping pass event", "tx_hash", ev.TxHash.Hex(), "event", ev.Name, "outcome", outcome, "error", err)
			continue
		}
		return fmt.Errorf("event %s in block %d: %w", ev.TxHash.Hex(), ev.BlockNumber, err)
	}
	if len(events) > 0 {
		p.log.Debug("processed pass events", "from", from, "to", to, "count", len(events))
	}
	return nil
}

func dispatch(ctx context.Context, ledger Recorder, ev chain.PassEvent, source string) (string, error) {
	var (
		res domain.LedgerResult
		err error
	)
	switch ev.Name {
	case chain.EventPassMinted:
		var mint domain.MintEvent
		if mint, err = ev.MintEvent(source); err == nil {
			res, err = ledger.RecordMint(ctx, mint)
		}
	case chain.EventPassUpgraded:
		var up domain.UpgradeEvent
		if up, err = ev.UpgradeEvent(source); err == nil {
			res, err = ledger.RecordUpgrade(ctx, up)
		}
	default:
		err = fmt.Errorf("%w: %q", chain.ErrUnknownEvent, ev.Name)
	}
	if err != nil {
		return outcomeOf(err), err
	}
	if res.Duplicate {
		return "duplicate", nil
	}
	return "recorded", nil
}

// terminal errors will not change on retry, so the event is skipped.
func terminal(err error) bool {
	return errors.Is(err, domain.ErrUnknownUser) ||
		errors.Is(err, domain.ErrUnknownPass) ||
		errors.Is(err, chain.ErrMalformedLog) ||
		errors.Is(err, chain.ErrUnknownEvent)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownUser):
		return "unknown_user"
	case errors.Is(err, domain.ErrUnknownPass):
		return "unknown_pass"
	case errors.Is(err, chain.ErrMalformedLog), errors.Is(err, chain.ErrUnknownEvent), errors.Is(err, errMalformedEvent):
		return "malformed"
	case errors.Is(err, chain.ErrNotConfirmed):
		return "pending"
	case errors.Is(err, domain.ErrChainUnavailable):
		return "retry"
	case errors.Is(err, domain.ErrVerificationFailed):
		return "rejected"
	default:
		return "error"
	}
}
