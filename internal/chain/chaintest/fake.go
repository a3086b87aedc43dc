// Package chaintest provides an in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"math/big"
	"sync"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/chain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type Fake struct {
	mu       sync.Mutex
	Head     uint64
	Contract common.Address
	Txs      map[common.Hash]*chain.Transaction
	Receipts map[common.Hash]*chain.Receipt
	Passes   map[common.Address]chain.UserPass
	Events   []chain.PassEvent

	// Err, when set, is returned from every call.
	Err   error
	Calls int
}

func NewFake(contract common.Address) *Fake {
	return &Fake{
		Contract: contract,
		Txs:      make(map[common.Hash]*chain.Transaction),
		Receipts: make(map[common.Hash]*chain.Receipt),
		Passes:   make(map[common.Address]chain.UserPass),
	}
}

// AddPurchase registers a successful contract call by from, mined at block,
// and sets the contract's view of from's pass.
func (f *Fake) AddPurchase(hash common.Hash, from common.Address, block uint64, passID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	to := f.Contract
	f.Txs[hash] = &chain.Transaction{Hash: hash, From: from, To: &to, Value: big.NewInt(0)}
	f.Receipts[hash] = &chain.Receipt{TxHash: hash, Status: types.ReceiptStatusSuccessful, BlockNumber: block}
	f.Passes[from] = chain.UserPass{PassID: passID, Points: passID}
}

func (f *Fake) enter() error {
	f.Calls++
	return f.Err
}

func (f *Fake) TransactionByHash(_ context.Context, hash common.Hash) (*chain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, err
	}
	tx, ok := f.Txs[hash]
	if !ok {
		return nil, chain.ErrTxNotFound
	}
	cp := *tx
	return &cp, nil
}

func (f *Fake) TransactionReceipt(_ context.Context, hash common.Hash) (*chain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, err
	}
	r, ok := f.Receipts[hash]
	if !ok {
		return nil, chain.ErrTxNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *Fake) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return 0, err
	}
	return f.Head, nil
}

func (f *Fake) UserPass(_ context.Context, wallet common.Address) (chain.UserPass, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return chain.UserPass{}, err
	}
	return f.Passes[wallet], nil
}

func (f *Fake) PassEvents(_ context.Context, from, to uint64) ([]chain.PassEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(); err != nil {
		return nil, err
	}
	var out []chain.PassEvent
	for _, ev := range f.Events {
		if ev.BlockNumber >= from && ev.BlockNumber <= to {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *Fake) ContractAddress() common.Address {
	return f.Contract
}

// SetErr makes every subsequent call fail with err, or succeed again when err is nil.
func (f *Fake) SetErr(err error) {
	f.mu.Lock()
	f.Err = err
	f.mu.Unlock()
}
