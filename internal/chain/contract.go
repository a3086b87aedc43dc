package chain

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrMalformedLog = errors.New("malformed log")
)

var passABI = mustParseABI(passContractABI)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("chain: parse pass contract abi: %v", err))
	}
	return parsed
}

// PassEventTopics returns the topic0 values of the events the poller filters for.
func PassEventTopics() []common.Hash {
	return []common.Hash{
		passABI.Events[EventPassMinted].ID,
		passABI.Events[EventPassUpgraded].ID,
	}
}

// PassEvent is a decoded PassMinted or PassUpgraded log.
type PassEvent struct {
	Name        string
	TxHash      common.Hash
	BlockNumber uint64
	User        common.Address
	PassID      *big.Int
	OldPassID   *big.Int
	NewPassID   *big.Int
	AmountPaid  *big.Int
}

// DecodePassLog decodes a raw contract log.
func DecodePassLog(lg types.Log) (PassEvent, error) {
	if len(lg.Topics) < 2 {
		return PassEvent{}, fmt.Errorf("%w: %d topics", ErrMalformedLog, len(lg.Topics))
	}

	ev := PassEvent{
		TxHash:      lg.TxHash,
		BlockNumber: lg.BlockNumber,
		User:        common.BytesToAddress(lg.Topics[1].Bytes()),
	}

	switch lg.Topics[0] {
	case passABI.Events[EventPassMinted].ID:
		ev.Name = EventPassMinted
		vals, err := passABI.Unpack(EventPassMinted, lg.Data)
		if err != nil || len(vals) != 2 {
			return PassEvent{}, fmt.Errorf("%w: %s data: %v", ErrMalformedLog, EventPassMinted, err)
		}
		ev.PassID, _ = vals[0].(*big.Int)
		ev.AmountPaid, _ = vals[1].(*big.Int)
	case passABI.Events[EventPassUpgraded].ID:
		ev.Name = EventPassUpgraded
		vals, err := passABI.Unpack(EventPassUpgraded, lg.Data)
		if err != nil || len(vals) != 3 {
			return PassEvent{}, fmt.Errorf("%w: %s data: %v", ErrMalformedLog, EventPassUpgraded, err)
		}
		ev.OldPassID, _ = vals[0].(*big.Int)
		ev.NewPassID, _ = vals[1].(*big.Int)
		ev.AmountPaid, _ = vals[2].(*big.Int)
	default:
		return PassEvent{}, fmt.Errorf("%w: topic %s", ErrUnknownEvent, lg.Topics[0].Hex())
	}

	return ev, nil
}

// MintEvent normalizes a PassMinted event.
func (e PassEvent) MintEvent(source string) (domain.MintEvent, error) {
	if e.Name != EventPassMinted {
		return domain.MintEvent{}, fmt.Errorf("%w: %s is not a mint", ErrUnknownEvent, e.Name)
	}
	passID, err := passIDFromBig(e.PassID)
	if err != nil {
		return domain.MintEvent{}, err
	}
	return domain.MintEvent{
		TxHash:        e.TxHash.Hex(),
		WalletAddress: e.User.Hex(),
		PassID:        passID,
		AmountPaid:    FromWei(e.AmountPaid),
		BlockNumber:   e.BlockNumber,
		Source:        source,
	}, nil
}

// UpgradeEvent normalizes a PassUpgraded event.
func (e PassEvent) UpgradeEvent(source string) (domain.UpgradeEvent, error) {
	if e.Name != EventPassUpgraded {
		return domain.UpgradeEvent{}, fmt.Errorf("%w: %s is not an upgrade", ErrUnknownEvent, e.Name)
	}
	oldID, err := passIDFromBig(e.OldPassID)
	if err != nil {
		return domain.UpgradeEvent{}, err
	}
	newID, err := passIDFromBig(e.NewPassID)
	if err != nil {
		return domain.UpgradeEvent{}, err
	}
	return domain.UpgradeEvent{
		TxHash:        e.TxHash.Hex(),
		WalletAddress: e.User.Hex(),
		OldPassID:     oldID,
		NewPassID:     newID,
		AmountPaid:    FromWei(e.AmountPaid),
		BlockNumber:   e.BlockNumber,
		Source:        source,
	}, nil
}

func passIDFromBig(v *big.Int) (int, error) {
	if v == nil || v.Sign() < 0 || !v.IsInt64() || v.Int64() > math.MaxInt32 {
		return 0, fmt.Errorf("%w: pass id %v out of range", ErrMalformedLog, v)
	}
	return int(v.Int64()), nil
}

// UserPass is the result of the contract's getUserPass accessor.
type UserPass struct {
	PassID int
	Points int
}

func packUserPass(wallet common.Address) ([]byte, error) {
	return passABI.Pack("getUserPass", wallet)
}

func unpackUserPass(data []byte) (UserPass, error) {
	vals, err := passABI.Unpack("getUserPass", data)
	if err != nil {
		return UserPass{}, err
	}
	if len(vals) != 2 {
		return UserPass{}, fmt.Errorf("getUserPass: %d outputs", len(vals))
	}
	passID, err := passIDFromBig(vals[0].(*big.Int))
	if err != nil {
		return UserPass{}, err
	}
	points, err := passIDFromBig(vals[1].(*big.Int))
	if err != nil {
		return UserPass{}, err
	}
	return UserPass{PassID: passID, Points: points}, nil
}
