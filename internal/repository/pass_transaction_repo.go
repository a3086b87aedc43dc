package repository

import (
	"context"
	"errors"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const passTxColumns = `id::text, tx_hash, user_id, wallet_address, pass_id, previous_pass_id, minted,
	is_verified, amount_paid::text, usd_price::text, is_upgrade, source, block_number, created_at`

func scanPassTx(row pgx.Row) (*domain.PassTransaction, error) {
	var (
		t           domain.PassTransaction
		amount, usd string
		block       int64
	)
	if err := row.Scan(
		&t.ID, &t.TxHash, &t.UserID, &t.WalletAddress, &t.PassID, &t.PreviousPassID, &t.Minted,
		&t.IsVerified, &amount, &usd, &t.IsUpgrade, &t.Source, &block, &t.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}

	var err error
	if t.AmountPaid, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if t.USDPrice, err = decimal.NewFromString(usd); err != nil {
		return nil, err
	}
	t.BlockNumber = uint64(block)
	return &t, nil
}

// InsertPassTransaction relies on the tx_hash unique constraint: a verified
// row already present makes the upsert a no-op and the call reports false.
// An unverified row left by an earlier attempt is promoted in place.
func (r *queries) InsertPassTransaction(ctx context.Context, t *domain.PassTransaction) (bool, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Minted = true
	t.IsVerified = true

	err := r.db.QueryRow(ctx,
		`INSERT INTO pass_transactions
			(id, tx_hash, user_id, wallet_address, pass_id, previous_pass_id, minted, is_verified,
			 amount_paid, usd_price, is_upgrade, source, block_number)
		 VALUES ($1::uuid, $2, $3, $4, $5, $6, true, true, $7::numeric, $8::numeric, $9, $10, $11)
		 ON CONFLICT (tx_hash) DO UPDATE
		 SET user_id = EXCLUDED.user_id, wallet_address = EXCLUDED.wallet_address,
		     pass_id = EXCLUDED.pass_id, previous_pass_id = EXCLUDED.previous_pass_id,
		     minted = true, is_verified = true, amount_paid = EXCLUDED.amount_paid,
		     usd_price = EXCLUDED.usd_price, is_upgrade = EXCLUDED.is_upgrade,
		     source = EXCLUDED.source, block_number = EXCLUDED.block_number
		 WHERE NOT pass_transactions.is_verified
		 RETURNING id::text, created_at`,
		t.ID, t.TxHash, t.UserID, t.WalletAddress, t.PassID, t.PreviousPassID,
		t.AmountPaid.String(), t.USDPrice.String(), t.IsUpgrade, t.Source, int64(t.BlockNumber),
	).Scan(&t.ID, &t.CreatedAt)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case isUniqueViolation(err, "pass_transactions_tx_hash_key"):
		return false, domain.ErrDuplicateTransaction
	default:
		return false, err
	}
}

func (r *queries) GetPassTransaction(ctx context.Context, txHash string) (*domain.PassTransaction, error) {
	return scanPassTx(r.db.QueryRow(ctx,
		`SELECT `+passTxColumns+` FROM pass_transactions WHERE tx_hash = $1`, txHash))
}

func (r *queries) ListPassTransactions(ctx context.Context, userID int64, limit int) ([]domain.PassTransaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+passTxColumns+`
		 FROM pass_transactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PassTransaction
	for rows.Next() {
		t, err := scanPassTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
