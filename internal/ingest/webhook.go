package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/chain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/metrics"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var errMalformedEvent = errors.New("malformed event")

// flexString accepts a JSON string or number and keeps its text. Relays send
// uint256 values either way.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = flexString(n.String())
	}
	return nil
}

// WebhookEvent is one decoded contract event as the relay pushes it.
type WebhookEvent struct {
	Type        string     `json:"type"`
	TxHash      string     `json:"txHash"`
	User        string     `json:"user"`
	PassID      flexString `json:"passId"`
	OldPassID   flexString `json:"oldPassId"`
	NewPassID   flexString `json:"newPassId"`
	AmountPaid  flexString `json:"amountPaid"`
	BlockNumber flexString `json:"blockNumber"`
}

type webhookBatch struct {
	Events []json.RawMessage `json:"events"`
}

type EventResult struct {
	Index  int    `json:"index"`
	Type   string `json:"type,omitempty"`
	TxHash string `json:"txHash,omitempty"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Report is the acknowledgement returned to the relay.
type Report struct {
	Status  string        `json:"status"`
	Results []EventResult `json:"results,omitempty"`
}

// Webhook authenticates relay batches and records each event independently.
// Events are checked for confirmation depth on the node before they reach
// the ledger.
type Webhook struct {
	secret string
	chain  chain.Client
	ledger Recorder
	log    *slog.Logger
}

func NewWebhook(secret string, client chain.Client, ledger Recorder, log *slog.Logger) *Webhook {
	return &Webhook{secret: secret, chain: client, ledger: ledger, log: log.With("component", "webhook")}
}

// Unreadable acknowledges a batch whose body could not be read in full. Such
// a batch is never authenticated or dispatched.
func (w *Webhook) Unreadable(reason error) Report {
	w.log.Warn("unreadable webhook body", "error", reason)
	metrics.IngestEvents.WithLabelValues("webhook", "malformed").Inc()
	return Report{Status: "malformed"}
}

// Handle processes a raw request body. It only returns an error, always
// ErrInvalidSignature, when a signature is present but wrong. Unsigned
// requests are acknowledged and ignored.
func (w *Webhook) Handle(ctx context.Context, body []byte, signature string) (Report, error) {
	if err := VerifySignature(body, signature, w.secret); err != nil {
		if errors.Is(err, ErrMissingSignature) {
			metrics.IngestEvents.WithLabelValues("webhook", "unsigned").Inc()
			return Report{Status: "ignored"}, nil
		}
		w.log.Warn("rejected webhook with bad signature")
		return Report{}, err
	}

	var batch webhookBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		w.log.Warn("malformed webhook body", "error", err)
		metrics.IngestEvents.WithLabelValues("webhook", "malformed").Inc()
		return Report{Status: "malformed"}, nil
	}

	report := Report{Status: "processed", Results: make([]EventResult, 0, len(batch.Events))}
	for i, raw := range batch.Events {
		res := w.handleEvent(ctx, raw)
		res.Index = i
		metrics.IngestEvents.WithLabelValues("webhook", res.Result).Inc()
		report.Results = append(report.Results, res)
	}
	return report, nil
}

func (w *Webhook) handleEvent(ctx context.Context, raw json.RawMessage) (res EventResult) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("webhook event panicked", "panic", r)
			res.Result, res.Error = "error", "internal error"
		}
	}()

	var we WebhookEvent
	if err := json.Unmarshal(raw, &we); err != nil {
		return EventResult{Result: "malformed", Error: err.Error()}
	}
	res = EventResult{Type: we.Type, TxHash: we.TxHash}

	ev, err := we.passEvent()
	if err == nil {
		err = w.confirm(ctx, &ev)
	}
	var outcome string
	if err == nil {
		outcome, err = dispatch(ctx, w.ledger, ev, domain.SourceWebhook)
	} else {
		outcome = outcomeOf(err)
	}
	res.Result = outcome
	if err != nil {
		res.Error = err.Error()
		w.log.Warn("webhook event not recorded", "tx_hash", we.TxHash, "type", we.Type, "result", outcome, "error", err)
	}
	return res
}

// confirm requires the event's transaction to be settled on chain and takes
// the block number from its receipt.
func (w *Webhook) confirm(ctx context.Context, ev *chain.PassEvent) error {
	if w.chain == nil {
		return fmt.Errorf("%w: no chain client configured", domain.ErrChainUnavailable)
	}
	r, err := chain.ConfirmedReceipt(ctx, w.chain, ev.TxHash)
	if err != nil {
		return err
	}
	ev.BlockNumber = r.BlockNumber
	return nil
}

func (we WebhookEvent) passEvent() (chain.PassEvent, error) {
	var ev chain.PassEvent

	switch {
	case strings.EqualFold(we.Type, chain.EventPassMinted):
		ev.Name = chain.EventPassMinted
	case strings.EqualFold(we.Type, chain.EventPassUpgraded):
		ev.Name = chain.EventPassUpgraded
	default:
		return ev, fmt.Errorf("%w: %q", chain.ErrUnknownEvent, we.Type)
	}

	raw, err := hexutil.Decode(strings.TrimSpace(we.TxHash))
	if err != nil || len(raw) != common.HashLength {
		return ev, fmt.Errorf("%w: tx hash %q", errMalformedEvent, we.TxHash)
	}
	ev.TxHash = common.BytesToHash(raw)

	if !common.IsHexAddress(strings.TrimSpace(we.User)) {
		return ev, fmt.Errorf("%w: user %q", errMalformedEvent, we.User)
	}
	ev.User = common.HexToAddress(strings.TrimSpace(we.User))

	if ev.Name == chain.EventPassMinted {
		if ev.PassID, err = requiredUint(we.PassID, "passId"); err != nil {
			return ev, err
		}
	} else {
		if ev.OldPassID, err = requiredUint(we.OldPassID, "oldPassId"); err != nil {
			return ev, err
		}
		if ev.NewPassID, err = requiredUint(we.NewPassID, "newPassId"); err != nil {
			return ev, err
		}
	}

	ev.AmountPaid = new(big.Int)
	if we.AmountPaid != "" {
		if ev.AmountPaid, err = chain.ParseWei(string(we.AmountPaid)); err != nil {
			return ev, fmt.Errorf("%w: amountPaid: %v", errMalformedEvent, err)
		}
	}
	if we.BlockNumber != "" {
		if ev.BlockNumber, err = strconv.ParseUint(string(we.BlockNumber), 10, 64); err != nil {
			return ev, fmt.Errorf("%w: blockNumber: %v", errMalformedEvent, err)
		}
	}
	return ev, nil
}

func requiredUint(v flexString, field string) (*big.Int, error) {
	if v == "" {
		return nil, fmt.Errorf("%w: %s is required", errMalformedEvent, field)
	}
	n, err := chain.ParseWei(string(v))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errMalformedEvent, field, err)
	}
	return n, nil
}
