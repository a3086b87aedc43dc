package ingest

import (
	"context"
	"math/big"
	"sync"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/chain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/chain/chaintest"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000cc")
	buyer        = common.HexToAddress("0xAAAaaaAAaAAaAAAaAAaAaaaAAAaaAaaAAaAaAAAA")
)

// fakeRecorder records events and reports repeats of a tx hash as duplicates.
type fakeRecorder struct {
	mu       sync.Mutex
	mints    []domain.MintEvent
	upgrades []domain.UpgradeEvent
	seen     map[string]bool
	errs     map[string]error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{seen: map[string]bool{}, errs: map[string]error{}}
}

func (f *fakeRecorder) record(hash string) (domain.LedgerResult, bool, error) {
	if err := f.errs[hash]; err != nil {
		return domain.LedgerResult{}, false, err
	}
	if f.seen[hash] {
		return domain.LedgerResult{TxHash: hash, Duplicate: true}, false, nil
	}
	f.seen[hash] = true
	return domain.LedgerResult{TxHash: hash}, true, nil
}

func (f *fakeRecorder) RecordMint(_ context.Context, ev domain.MintEvent) (domain.LedgerResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, fresh, err := f.record(ev.TxHash)
	if fresh {
		f.mints = append(f.mints, ev)
	}
	return res, err
}

func (f *fakeRecorder) RecordUpgrade(_ context.Context, ev domain.UpgradeEvent) (domain.LedgerResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, fresh, err := f.record(ev.TxHash)
	if fresh {
		f.upgrades = append(f.upgrades, ev)
	}
	return res, err
}

func (f *fakeRecorder) setErr(hash common.Hash, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, hash.Hex())
		return
	}
	f.errs[hash.Hex()] = err
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.mints) + len(f.upgrades)
}

func hashAt(b byte) common.Hash {
	var h common.Hash
	h[0] = 0xab
	h[31] = b
	return h
}

func mintAt(fake *chaintest.Fake, b byte, block uint64, passID int64) common.Hash {
	h := hashAt(b)
	fake.Events = append(fake.Events, chain.PassEvent{
		Name:        chain.EventPassMinted,
		TxHash:      h,
		BlockNumber: block,
		User:        buyer,
		PassID:      big.NewInt(passID),
		AmountPaid:  big.NewInt(1e17),
	})
	return h
}

func upgradeAt(fake *chaintest.Fake, b byte, block uint64, from, to int64) common.Hash {
	h := hashAt(b)
	fake.Events = append(fake.Events, chain.PassEvent{
		Name:        chain.EventPassUpgraded,
		TxHash:      h,
		BlockNumber: block,
		User:        buyer,
		OldPassID:   big.NewInt(from),
		NewPassID:   big.NewInt(to),
		AmountPaid:  big.NewInt(2e17),
	})
	return h
}
