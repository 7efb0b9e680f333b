// Package confirm waits for a broadcast transaction to be mined.
package confirm

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/ligun0805/batch-wallet/internal/chain"
)

// Status is the tri-state outcome of waiting on one hash.
type Status int

const (
	Pending Status = iota
	Confirmed
	Rejected
)

func (s Status) String() string {
	switch s {
	case Confirmed:
		return "confirmed"
	case Rejected:
		return "rejected"
	}
	return "pending"
}

// Result is what AwaitConfirmation reports. Kind is ConfirmationTimeout
// for Pending; Err carries the context error when the wait was cancelled.
type Result struct {
	Status  Status
	Receipt *types.Receipt
	Kind    chain.FailureKind
	Err     error
}

// Clock is the time source of the poller.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time                         { return time.Now() }
func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// DefaultInterval is the pause between receipt lookups.
const DefaultInterval = time.Second

// Poller polls eth_getTransactionReceipt until a deadline.
type Poller struct {
	Client   chain.Client
	Interval time.Duration
	Clock    Clock
	Log      *zap.SugaredLogger
}

// New returns a poller on the wall clock.
func New(client chain.Client, interval time.Duration, log *zap.SugaredLogger) *Poller {
	return &Poller{Client: client, Interval: interval, Log: log}
}

// AwaitConfirmation polls immediately and then every Interval. It returns
// Confirmed as soon as a receipt with a block number appears, and Pending
// once deadline has elapsed, at most one Interval late.
func (p *Poller) AwaitConfirmation(ctx context.Context, hash common.Hash, deadline time.Duration) Result {
	clock := p.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	end := clock.Now().Add(deadline)
	for polls := 1; ; polls++ {
		r, err := p.Client.Receipt(ctx, hash)
		switch {
		case err != nil:
			log.Debugw("receipt lookup failed", "tx", hash.Hex(), "poll", polls, "err", err)
		case r != nil && r.BlockNumber != nil:
			log.Debugw("receipt found", "tx", hash.Hex(), "block", r.BlockNumber, "status", r.Status)
			return Result{Status: Confirmed, Receipt: r}
		}

		if !clock.Now().Before(end) {
			return Result{Status: Pending, Kind: chain.ConfirmationTimeout}
		}

		select {
		case <-ctx.Done():
			return Result{Status: Pending, Kind: chain.ConfirmationTimeout, Err: ctx.Err()}
		case <-clock.After(interval):
		}
	}
}
