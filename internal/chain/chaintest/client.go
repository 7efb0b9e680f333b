// Package chaintest provides a scriptable in-memory chain.Client for tests.
package chaintest

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/batch-wallet/internal/chain"
)

var _ chain.Client = (*Client)(nil)

// Client records every call and answers from its fields. Broadcast decodes
// the raw bytes so tests can assert on what was actually signed.
type Client struct {
	mu sync.Mutex

	ID       *big.Int
	Nonce    uint64
	Price    *big.Int
	Gas      uint64
	Balances map[common.Address]*big.Int

	NonceErr    error
	PriceErr    error
	EstimateErr error

	// OnBroadcast scripts the n-th (1-based) broadcast. Nil accepts everything.
	OnBroadcast func(n int, tx *types.Transaction) (common.Hash, error)
	// OnReceipt scripts receipt lookups. Nil answers from Mined.
	OnReceipt func(n int, hash common.Hash) (*types.Receipt, error)
	// OnCall scripts eth_call.
	OnCall func(contract common.Address, data []byte) ([]byte, error)

	Mined map[common.Hash]*types.Receipt
	Sent  []*types.Transaction
	Calls map[string]int
}

// New returns a client on chain 97 with gas price 5 and estimate 21000.
func New() *Client {
	return &Client{
		ID:       big.NewInt(97),
		Price:    big.NewInt(5),
		Gas:      21000,
		Balances: map[common.Address]*big.Int{},
		Mined:    map[common.Hash]*types.Receipt{},
		Calls:    map[string]int{},
	}
}

// Mine marks hash as included in block.
func (c *Client) Mine(hash common.Hash, block int64) *types.Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := &types.Receipt{
		TxHash:      hash,
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(block),
	}
	c.Mined[hash] = r
	return r
}

// Count reports how many times method was called.
func (c *Client) Count(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls[method]
}

// Transactions returns a copy of every decoded broadcast.
func (c *Client) Transactions() []*types.Transaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.Transaction(nil), c.Sent...)
}

func (c *Client) hit(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls[method]++
	return c.Calls[method]
}

func (c *Client) ChainID(context.Context) (*big.Int, error) {
	c.hit("eth_chainId")
	return new(big.Int).Set(c.ID), nil
}

func (c *Client) PendingNonce(context.Context, common.Address) (uint64, error) {
	c.hit("eth_getTransactionCount")
	if c.NonceErr != nil {
		return 0, c.NonceErr
	}
	return c.Nonce, nil
}

func (c *Client) GasPrice(context.Context) (*big.Int, error) {
	c.hit("eth_gasPrice")
	if c.PriceErr != nil {
		return nil, c.PriceErr
	}
	return new(big.Int).Set(c.Price), nil
}

func (c *Client) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	c.hit("eth_estimateGas")
	if c.EstimateErr != nil {
		return 0, c.EstimateErr
	}
	return c.Gas, nil
}

func (c *Client) Broadcast(_ context.Context, raw []byte) (common.Hash, error) {
	n := c.hit("eth_sendRawTransaction")
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, chain.NewNodeError("eth_sendRawTransaction", "rlp: "+err.Error())
	}
	c.mu.Lock()
	c.Sent = append(c.Sent, tx)
	c.mu.Unlock()
	if c.OnBroadcast != nil {
		return c.OnBroadcast(n, tx)
	}
	return tx.Hash(), nil
}

func (c *Client) Receipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	n := c.hit("eth_getTransactionReceipt")
	if c.OnReceipt != nil {
		return c.OnReceipt(n, hash)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Mined[hash], nil
}

func (c *Client) CallRead(_ context.Context, contract common.Address, data []byte) ([]byte, error) {
	c.hit("eth_call")
	if c.OnCall == nil {
		return nil, errors.New("eth_call not scripted")
	}
	return c.OnCall(contract, data)
}

func (c *Client) Balance(_ context.Context, addr common.Address) (*big.Int, error) {
	c.hit("eth_getBalance")
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.Balances[addr]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}
