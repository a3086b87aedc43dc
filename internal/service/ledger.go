package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/chain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/metrics"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// ErrMalformedTxHash is returned for submissions whose hash is not 32 hex bytes.
var ErrMalformedTxHash = fmt.Errorf("%w: malformed transaction hash", domain.ErrVerificationFailed)

// Ledger records pass purchases and upgrades exactly once per transaction
// hash, whichever path delivers them.
type Ledger struct {
	store   repository.Store
	chain   chain.Client
	catalog *PassCatalog
	points  *PointsEngine
	audit   *AuditService
	notify  Notifier
	log     *slog.Logger
}

// NewLedger builds a Ledger. client may be nil when no chain node is
// configured; client submissions then fail with ErrChainUnavailable.
func NewLedger(store repository.Store, client chain.Client, catalog *PassCatalog, points *PointsEngine, audit *AuditService, notify Notifier, log *slog.Logger) *Ledger {
	return &Ledger{
		store:   store,
		chain:   client,
		catalog: catalog,
		points:  points,
		audit:   audit,
		notify:  notifierOrNop(notify),
		log:     log,
	}
}

// entry is the canonical shape every path reduces to before writing.
type entry struct {
	txHash      string
	userID      int64
	wallet      string
	passID      int
	oldPassID   *int
	isUpgrade   bool
	amountPaid  decimal.Decimal
	blockNumber uint64
	source      string
	// points reported by the contract, when it was asked
	onChainPoints *int
}

// RecordMint records a PassMinted event.
func (l *Ledger) RecordMint(ctx context.Context, ev domain.MintEvent) (domain.LedgerResult, error) {
	return l.recordEvent(ctx, entry{
		txHash:      ev.TxHash,
		wallet:      ev.WalletAddress,
		passID:      ev.PassID,
		amountPaid:  ev.AmountPaid,
		blockNumber: ev.BlockNumber,
		source:      ev.Source,
	})
}

// RecordUpgrade records a PassUpgraded event.
func (l *Ledger) RecordUpgrade(ctx context.Context, ev domain.UpgradeEvent) (domain.LedgerResult, error) {
	old := ev.OldPassID
	return l.recordEvent(ctx, entry{
		txHash:      ev.TxHash,
		wallet:      ev.WalletAddress,
		passID:      ev.NewPassID,
		oldPassID:   &old,
		isUpgrade:   true,
		amountPaid:  ev.AmountPaid,
		blockNumber: ev.BlockNumber,
		source:      ev.Source,
	})
}

func (l *Ledger) recordEvent(ctx context.Context, e entry) (domain.LedgerResult, error) {
	e.txHash = normalizeTxHash(e.txHash)
	if res, ok, err := l.alreadyRecorded(ctx, e); ok || err != nil {
		return res, err
	}

	u, err := l.store.GetUserByWallet(ctx, e.wallet)
	if errors.Is(err, domain.ErrNotFound) {
		l.observe(e.source, "unknown_user")
		return domain.LedgerResult{}, fmt.Errorf("%w: %s", domain.ErrUnknownUser, e.wallet)
	}
	if err != nil {
		return domain.LedgerResult{}, err
	}
	e.userID = u.ID
	e.wallet = u.WalletAddress

	tier, err := l.catalog.Get(ctx, e.passID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownPass) {
			l.observe(e.source, "unknown_pass")
		}
		return domain.LedgerResult{}, err
	}
	return l.write(ctx, e, tier)
}

// VerifyAndRecordClientSubmission checks a client's claim against the chain
// and records it. Unconfirmed transactions fail with chain.ErrNotConfirmed and
// write nothing.
func (l *Ledger) VerifyAndRecordClientSubmission(ctx context.Context, userID int64, sub domain.Submission) (domain.LedgerResult, error) {
	raw, err := hexutil.Decode(strings.TrimSpace(sub.TxHash))
	if err != nil || len(raw) != common.HashLength {
		return domain.LedgerResult{}, ErrMalformedTxHash
	}
	hash := common.BytesToHash(raw)

	e := entry{
		txHash:    normalizeTxHash(hash.Hex()),
		userID:    userID,
		passID:    sub.PassID,
		isUpgrade: sub.IsUpgrade,
		source:    domain.SourceClient,
	}
	if res, ok, err := l.alreadyRecorded(ctx, e); ok || err != nil {
		return res, err
	}

	u, err := l.store.GetUserByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.LedgerResult{}, fmt.Errorf("%w: %d", domain.ErrUnknownUser, userID)
	}
	if err != nil {
		return domain.LedgerResult{}, err
	}
	e.wallet = u.WalletAddress

	tier, err := l.catalog.Get(ctx, sub.PassID)
	if err != nil {
		return domain.LedgerResult{}, err
	}

	if l.chain == nil {
		return domain.LedgerResult{}, fmt.Errorf("%w: no chain client configured", domain.ErrChainUnavailable)
	}
	receipt, err := chain.ConfirmedReceipt(ctx, l.chain, hash)
	if err != nil {
		l.observe(e.source, outcomeOf(err))
		return domain.LedgerResult{}, err
	}
	tx, err := l.chain.TransactionByHash(ctx, hash)
	if err != nil {
		l.observe(e.source, outcomeOf(err))
		return domain.LedgerResult{}, err
	}
	onChain, err := l.checkClaim(ctx, tx, u.WalletAddress, sub.PassID)
	if err != nil {
		l.observe(e.source, outcomeOf(err))
		return domain.LedgerResult{}, err
	}
	e.onChainPoints = &onChain.Points

	e.blockNumber = receipt.BlockNumber
	if tx.Value != nil {
		e.amountPaid = chain.FromWei(tx.Value)
	}
	return l.write(ctx, e, tier)
}

// checkClaim returns the contract's view of the sender's pass once it matches the claim.
func (l *Ledger) checkClaim(ctx context.Context, tx *chain.Transaction, wallet string, passID int) (chain.UserPass, error) {
	contract := l.chain.ContractAddress()
	if tx.To == nil || *tx.To != contract {
		return chain.UserPass{}, fmt.Errorf("%w: transaction is not a call to %s", domain.ErrVerificationFailed, contract.Hex())
	}
	if !strings.EqualFold(tx.From.Hex(), wallet) {
		return chain.UserPass{}, fmt.Errorf("%w: sent by %s, not %s", domain.ErrVerificationFailed, tx.From.Hex(), wallet)
	}
	onChain, err := l.chain.UserPass(ctx, tx.From)
	if err != nil {
		return chain.UserPass{}, err
	}
	if onChain.PassID != passID {
		return chain.UserPass{}, fmt.Errorf("%w: contract reports pass %d, claimed %d", domain.ErrVerificationFailed, onChain.PassID, passID)
	}
	return onChain, nil
}

// alreadyRecorded reports the idempotent result when a verified row exists.
func (l *Ledger) alreadyRecorded(ctx context.Context, e entry) (domain.LedgerResult, bool, error) {
	existing, err := l.store.GetPassTransaction(ctx, e.txHash)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.LedgerResult{}, false, nil
	}
	if err != nil {
		return domain.LedgerResult{}, false, err
	}
	if !existing.IsVerified {
		return domain.LedgerResult{}, false, nil
	}
	l.observe(e.source, "duplicate")
	return l.duplicate(ctx, existing.TxHash, existing.UserID, existing.PassID), true, nil
}

func (l *Ledger) duplicate(ctx context.Context, txHash string, userID int64, passID int) domain.LedgerResult {
	res := domain.LedgerResult{TxHash: txHash, UserID: userID, PassID: passID, Duplicate: true}
	if tier, err := l.catalog.Get(ctx, passID); err == nil {
		res.Points = tier.PointPower
	}
	return res
}

// write applies every side effect of e in one transaction.
func (l *Ledger) write(ctx context.Context, e entry, tier *domain.PassTier) (domain.LedgerResult, error) {
	res := domain.LedgerResult{TxHash: e.txHash, UserID: e.userID, PassID: tier.ID, Points: tier.PointPower}
	if e.onChainPoints != nil {
		res.Points = *e.onChainPoints
	}
	var referral Award

	err := l.store.WithTx(ctx, func(q repository.Queries) error {
		profile, err := q.LockProfile(ctx, e.userID)
		if err != nil {
			return fmt.Errorf("lock profile %d: %w", e.userID, err)
		}
		previous := profile.CurrentPassID
		if e.oldPassID != nil {
			previous = e.oldPassID
		}

		inserted, err := q.InsertPassTransaction(ctx, &domain.PassTransaction{
			TxHash:         e.txHash,
			UserID:         e.userID,
			WalletAddress:  e.wallet,
			PassID:         tier.ID,
			PreviousPassID: previous,
			AmountPaid:     e.amountPaid,
			USDPrice:       tier.USDPrice,
			IsUpgrade:      e.isUpgrade,
			Source:         e.source,
			BlockNumber:    e.blockNumber,
		})
		if err != nil {
			return err
		}
		if !inserted {
			return domain.ErrDuplicateTransaction
		}

		if err := q.SetCurrentPass(ctx, e.userID, tier.ID); err != nil {
			return fmt.Errorf("set current pass: %w", err)
		}

		if profile.ReferredBy != nil {
			referral, err = l.points.Award(ctx, q, *profile.ReferredBy, ReferralBasePoints, RuleReferral)
			if err != nil {
				return fmt.Errorf("referral bonus: %w", err)
			}
		}

		action := domain.AuditActionPassMinted
		if e.isUpgrade {
			action = domain.AuditActionPassUpgraded
		}
		return l.audit.Record(ctx, q, e.userID, action, domain.AuditCategoryLedger, map[string]any{
			"tx_hash":          e.txHash,
			"pass_id":          tier.ID,
			"previous_pass_id": previous,
			"amount_paid":      e.amountPaid.String(),
			"source":           e.source,
			"referral_points":  referral.Points,
		})
	})
	if errors.Is(err, domain.ErrDuplicateTransaction) {
		l.observe(e.source, "duplicate")
		dup := l.duplicate(ctx, e.txHash, e.userID, tier.ID)
		if e.onChainPoints != nil {
			dup.Points = *e.onChainPoints
		}
		return dup, nil
	}
	if err != nil {
		l.observe(e.source, "error")
		return domain.LedgerResult{}, err
	}

	if referral.Points > 0 {
		res.ReferrerID = referral.UserID
		res.ReferralAwarded = referral.Points
		res.ReferrerNewTotal = referral.Total
	}
	l.observe(e.source, "recorded")
	l.log.Info("pass transaction recorded",
		"tx_hash", e.txHash,
		"user_id", e.userID,
		"pass_id", tier.ID,
		"upgrade", e.isUpgrade,
		"source", e.source,
	)
	l.notify.PassRecorded(e.userID, res)
	l.points.Publish(referral)
	return res, nil
}

// History returns the user's recorded pass transactions, newest first.
func (l *Ledger) History(ctx context.Context, userID int64, limit int) ([]domain.PassTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	txs, err := l.store.ListPassTransactions(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []domain.PassTransaction{}
	}
	return txs, nil
}

func (l *Ledger) observe(source, outcome string) {
	metrics.LedgerRecords.WithLabelValues(source, outcome).Inc()
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, chain.ErrNotConfirmed):
		return "unconfirmed"
	case errors.Is(err, domain.ErrChainUnavailable):
		return "chain_unavailable"
	case errors.Is(err, domain.ErrVerificationFailed):
		return "verification_failed"
	default:
		return "error"
	}
}

func normalizeTxHash(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
