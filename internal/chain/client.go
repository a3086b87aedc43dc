package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/domain"
	"github.com/xstakup-in-house/digi-drop-backend-api/internal/metrics"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

var (
	// ErrTxNotFound means the node knows neither a receipt nor a pending transaction.
	ErrTxNotFound = fmt.Errorf("%w: transaction not found", domain.ErrVerificationFailed)
	// ErrTxFailed means the transaction was mined but reverted.
	ErrTxFailed = fmt.Errorf("%w: transaction reverted", domain.ErrVerificationFailed)
	// ErrNotConfirmed means the transaction exists but is not yet Confirmations deep.
	ErrNotConfirmed = errors.New("transaction not yet confirmed")
)

// Receipt is the subset of a transaction receipt the ledger needs.
type Receipt struct {
	TxHash      common.Hash
	Status      uint64
	BlockNumber uint64
	BlockHash   common.Hash
	TxIndex     uint
}

// Transaction is a mined or pending transaction with its recovered sender.
type Transaction struct {
	Hash    common.Hash
	From    common.Address
	To      *common.Address
	Value   *big.Int
	Pending bool
}

// Client is the read-only view of the chain used by the ledger and ingestors.
type Client interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*Transaction, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	UserPass(ctx context.Context, wallet common.Address) (UserPass, error)
	PassEvents(ctx context.Context, from, to uint64) ([]PassEvent, error)
	ContractAddress() common.Address
}

// EthConfig configures an EthClient.
type EthConfig struct {
	RPCURL          string
	ContractAddress string
	Timeout         time.Duration
	RPS             float64
}

// EthClient implements Client over a JSON-RPC node.
type EthClient struct {
	eth      *ethclient.Client
	contract common.Address
	timeout  time.Duration
	limiter  *rate.Limiter
}

// Dial connects to the node at cfg.RPCURL.
func Dial(ctx context.Context, cfg EthConfig) (*EthClient, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("chain: invalid contract address %q", cfg.ContractAddress)
	}
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = DefaultRPS
	}

	return &EthClient{
		eth:      eth,
		contract: common.HexToAddress(cfg.ContractAddress),
		timeout:  timeout,
		limiter:  rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}, nil
}

// Close releases the underlying RPC connection.
func (c *EthClient) Close() {
	c.eth.Close()
}

func (c *EthClient) ContractAddress() common.Address {
	return c.contract
}

// call bounds fn by the limiter and the per-call timeout and classifies its error.
func (c *EthClient) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		metrics.ChainRPCErrors.WithLabelValues(method).Inc()
		return fmt.Errorf("%w: %s: %v", domain.ErrChainUnavailable, method, err)
	}

	start := time.Now()
	err := fn(ctx)
	metrics.ChainRPCDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}
	if errors.Is(err, ethereum.NotFound) {
		return ethereum.NotFound
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return fmt.Errorf("%w: %s: %v", domain.ErrVerificationFailed, method, err)
	}
	metrics.ChainRPCErrors.WithLabelValues(method).Inc()
	return fmt.Errorf("%w: %s: %v", domain.ErrChainUnavailable, method, err)
}

func (c *EthClient) TransactionByHash(ctx context.Context, hash common.Hash) (*Transaction, error) {
	var (
		tx      *types.Transaction
		pending bool
	)
	err := c.call(ctx, "eth_getTransactionByHash", func(ctx context.Context) error {
		var err error
		tx, pending, err = c.eth.TransactionByHash(ctx, hash)
		return err
	})
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrTxNotFound
	}
	if err != nil {
		return nil, err
	}

	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("%w: recover sender: %v", domain.ErrVerificationFailed, err)
	}

	return &Transaction{
		Hash:    tx.Hash(),
		From:    from,
		To:      tx.To(),
		Value:   tx.Value(),
		Pending: pending,
	}, nil
}

func (c *EthClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var r *types.Receipt
	err := c.call(ctx, "eth_getTransactionReceipt", func(ctx context.Context) error {
		var err error
		r, err = c.eth.TransactionReceipt(ctx, hash)
		return err
	})
	if errors.Is(err, ethereum.NotFound) {
		return nil, ErrTxNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Receipt{
		TxHash:      r.TxHash,
		Status:      r.Status,
		BlockNumber: r.BlockNumber.Uint64(),
		BlockHash:   r.BlockHash,
		TxIndex:     r.TransactionIndex,
	}, nil
}

func (c *EthClient) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.call(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		n, err = c.eth.BlockNumber(ctx)
		return err
	})
	return n, err
}

// UserPass calls the contract's getUserPass accessor at the latest block.
func (c *EthClient) UserPass(ctx context.Context, wallet common.Address) (UserPass, error) {
	data, err := packUserPass(wallet)
	if err != nil {
		return UserPass{}, err
	}

	var out []byte
	err = c.call(ctx, "eth_call", func(ctx context.Context) error {
		var err error
		out, err = c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
		return err
	})
	if err != nil {
		return UserPass{}, err
	}

	up, err := unpackUserPass(out)
	if err != nil {
		return UserPass{}, fmt.Errorf("%w: getUserPass: %v", domain.ErrVerificationFailed, err)
	}
	return up, nil
}

// PassEvents returns decoded pass logs in the inclusive block range. Removed
// and undecodable logs are dropped and counted.
func (c *EthClient) PassEvents(ctx context.Context, from, to uint64) ([]PassEvent, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{PassEventTopics()},
	}

	var logs []types.Log
	err := c.call(ctx, "eth_getLogs", func(ctx context.Context) error {
		var err error
		logs, err = c.eth.FilterLogs(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}

	events := make([]PassEvent, 0, len(logs))
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		ev, err := DecodePassLog(lg)
		if err != nil {
			metrics.IngestEvents.WithLabelValues("poller", "malformed").Inc()
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
