// Package chain wraps the JSON-RPC endpoint the wallet engine talks to.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var _ Client = (*EthClient)(nil)

// Client is the capability set the signer, poller and controller need.
// Implementations are used sequentially and need not be safe for concurrent use.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonce(ctx context.Context, addr common.Address) (uint64, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	Broadcast(ctx context.Context, raw []byte) (common.Hash, error)
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	CallRead(ctx context.Context, contract common.Address, data []byte) ([]byte, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
}

// Options tune the connection to the endpoint.
type Options struct {
	Timeout      time.Duration // per HTTP request
	RequestsPerS float64       // 0 disables throttling
	Burst        int
	ReadAttempts int // retries for read calls on rate-limit errors
	Log          *zap.SugaredLogger
	OnThrottle   func()
}

// EthClient implements Client over go-ethereum's ethclient.
type EthClient struct {
	ec       *ethclient.Client
	rc       *rpc.Client
	limiter  *rate.Limiter
	attempts int
	log      *zap.SugaredLogger
	throttle func()
}

// newHTTPClient dials RPC with keep-alives and sane timeouts.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Dial connects to rpcURL.
func Dial(ctx context.Context, rpcURL string, opts Options) (*EthClient, error) {
	rc, err := rpc.DialOptions(ctx, rpcURL, rpc.WithHTTPClient(newHTTPClient(opts.Timeout)))
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return NewEthClient(rc, opts), nil
}

// NewEthClient wraps an existing rpc client.
func NewEthClient(rc *rpc.Client, opts Options) *EthClient {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerS), burst)
	}
	attempts := opts.ReadAttempts
	if attempts <= 0 {
		attempts = 3
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &EthClient{
		ec:       ethclient.NewClient(rc),
		rc:       rc,
		limiter:  limiter,
		attempts: attempts,
		log:      log,
		throttle: opts.OnThrottle,
	}
}

// Close releases the underlying connection.
func (c *EthClient) Close() {
	c.ec.Close()
}

func (c *EthClient) wait(ctx context.Context, op string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return NewTransportError(op, err)
	}
	return nil
}

// withRetry runs a read call with small exponential backoff on rate limiting.
func withRetry[T any](ctx context.Context, c *EthClient, op string, call func(context.Context) (T, error)) (T, error) {
	var zero T
	backoff := 200 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := c.wait(ctx, op); err != nil {
			return zero, err
		}
		v, err := call(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !IsRateLimit(err) || attempt == c.attempts {
			break
		}
		c.log.Debugw("rpc throttled", "op", op, "attempt", attempt, "backoff", backoff)
		if c.throttle != nil {
			c.throttle()
		}
		select {
		case <-ctx.Done():
			return zero, NewTransportError(op, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return zero, Wrap(op, lastErr)
}

func (c *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	return withRetry(ctx, c, "eth_chainId", c.ec.ChainID)
}

func (c *EthClient) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	return withRetry(ctx, c, "eth_getTransactionCount", func(ctx context.Context) (uint64, error) {
		return c.ec.PendingNonceAt(ctx, addr)
	})
}

func (c *EthClient) GasPrice(ctx context.Context) (*big.Int, error) {
	return withRetry(ctx, c, "eth_gasPrice", c.ec.SuggestGasPrice)
}

func (c *EthClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return withRetry(ctx, c, "eth_estimateGas", func(ctx context.Context) (uint64, error) {
		return c.ec.EstimateGas(ctx, msg)
	})
}

func (c *EthClient) CallRead(ctx context.Context, contract common.Address, data []byte) ([]byte, error) {
	return withRetry(ctx, c, "eth_call", func(ctx context.Context) ([]byte, error) {
		return c.ec.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	})
}

func (c *EthClient) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return withRetry(ctx, c, "eth_getBalance", func(ctx context.Context) (*big.Int, error) {
		return c.ec.BalanceAt(ctx, addr, nil)
	})
}

// Broadcast submits raw signed bytes once; broadcasts are never retried here.
func (c *EthClient) Broadcast(ctx context.Context, raw []byte) (common.Hash, error) {
	const op = "eth_sendRawTransaction"
	if err := c.wait(ctx, op); err != nil {
		return common.Hash{}, err
	}
	var hash common.Hash
	if err := c.rc.CallContext(ctx, &hash, op, hexutil.Encode(raw)); err != nil {
		return common.Hash{}, Wrap(op, err)
	}
	return hash, nil
}

// Receipt returns nil, nil while the node does not know a receipt for hash.
func (c *EthClient) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	const op = "eth_getTransactionReceipt"
	if err := c.wait(ctx, op); err != nil {
		return nil, err
	}
	r, err := c.ec.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, Wrap(op, err)
	}
	return r, nil
}
