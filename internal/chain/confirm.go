package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Confirmed reports whether r succeeded and is at least Confirmations blocks below head.
func Confirmed(head uint64, r *Receipt) bool {
	if r == nil || r.Status != types.ReceiptStatusSuccessful {
		return false
	}
	return head >= r.BlockNumber && head-r.BlockNumber >= Confirmations
}

// ConfirmedReceipt fetches the receipt for hash and checks it against the
// current head. A transaction the node only knows as pending is reported as
// ErrNotConfirmed rather than ErrTxNotFound.
func ConfirmedReceipt(ctx context.Context, c Client, hash common.Hash) (*Receipt, error) {
	r, err := c.TransactionReceipt(ctx, hash)
	if errors.Is(err, ErrTxNotFound) {
		tx, txErr := c.TransactionByHash(ctx, hash)
		if txErr != nil {
			return nil, txErr
		}
		if tx.Pending {
			return nil, ErrNotConfirmed
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if r.Status != types.ReceiptStatusSuccessful {
		return nil, ErrTxFailed
	}

	head, err := c.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	if !Confirmed(head, r) {
		return nil, fmt.Errorf("%w: %d of %d", ErrNotConfirmed, depth(head, r.BlockNumber), Confirmations)
	}
	return r, nil
}

func depth(head, block uint64) uint64 {
	if head < block {
		return 0
	}
	return head - block
}
