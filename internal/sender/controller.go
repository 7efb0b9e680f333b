// Package sender drives one logical transaction from intent to receipt,
// escalating fees and resubmitting under the same nonce until it is mined
// or the attempt budget runs out.
package sender

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/ligun0805/batch-wallet/internal/account"
	"github.com/ligun0805/batch-wallet/internal/chain"
	"github.com/ligun0805/batch-wallet/internal/confirm"
	"github.com/ligun0805/batch-wallet/internal/metrics"
	"github.com/ligun0805/batch-wallet/internal/txsign"
)

// Controller runs the sign, broadcast and confirm loop.
type Controller struct {
	Client   chain.Client
	Signer   *txsign.Signer
	Poller   *confirm.Poller
	Policy   Policy
	Log      *zap.SugaredLogger
	Metrics  *metrics.Metrics
	Observer func(Transition)

	// Clock times the already-known delay. Defaults to the poller's clock.
	Clock confirm.Clock
}

// New wires a controller around one client.
func New(client chain.Client, signer *txsign.Signer, poller *confirm.Poller, policy Policy, log *zap.SugaredLogger, m *metrics.Metrics) *Controller {
	return &Controller{
		Client:  client,
		Signer:  signer,
		Poller:  poller,
		Policy:  policy,
		Log:     log,
		Metrics: m,
	}
}

// attempt is the state carried from one loop iteration to the next.
type attempt struct {
	n       int
	state   State
	nonce   *uint64
	prev    *txsign.SignedTransaction
	hashes  []common.Hash
	lastErr error
	last    chain.FailureKind
}

// Send signs intent with keyHex and resubmits until a receipt is seen.
// Only the returned Outcome carries the result; intermediate failures are logged.
func (c *Controller) Send(ctx context.Context, intent txsign.TransactionIntent, keyHex string) Outcome {
	log := c.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	policy := c.Policy.normalized()

	key, err := account.ParseKey(keyHex)
	if err != nil {
		return c.finish(log, Outcome{Err: &Failure{Kind: chain.InvalidKey, Reason: "cannot parse private key", Err: err}})
	}
	from := account.FromKey(key).Address
	log = log.With("from", from.Hex())

	st := &attempt{state: Building, nonce: intent.Nonce}
	for st.n = 1; st.n <= policy.MaxAttempts; st.n++ {
		if err := ctx.Err(); err != nil {
			return c.finish(log, c.fail(st, &Failure{Kind: chain.TransportError, Last: st.last, Reason: "cancelled", Err: err}))
		}

		// Building: the first attempt keeps caller fees, later ones escalate
		// the previous signed fees. The nonce is pinned after the first signing.
		cur := intent
		if st.prev != nil {
			cur = intent.WithFees(
				escalateUint(st.prev.GasLimit, policy.EscalationFactor),
				escalateBig(st.prev.GasPrice, policy.EscalationFactor),
			)
			c.Metrics.Escalated()
		}
		if st.nonce != nil {
			cur = cur.WithNonce(*st.nonce)
		}

		c.move(st, Signing, chain.KindNone, common.Hash{})
		signed, err := c.Signer.Sign(ctx, cur, key)
		if err != nil {
			return c.finish(log, c.fail(st, &Failure{Kind: chain.SigningError, Reason: "cannot build transaction", Err: err}))
		}
		if st.nonce == nil {
			n := signed.Nonce
			st.nonce = &n
		}
		st.prev = &signed
		st.hashes = append(st.hashes, signed.Hash)

		log.Infow("broadcasting",
			"attempt", st.n,
			"max", policy.MaxAttempts,
			"nonce", signed.Nonce,
			"gas", signed.GasLimit,
			"gasPrice", signed.GasPrice,
			"tx", signed.Hash.Hex(),
		)
		c.move(st, Broadcasting, chain.KindNone, signed.Hash)
		hash, err := c.Client.Broadcast(ctx, signed.Raw)
		kind := chain.KindOf(err)
		c.Metrics.Broadcast(broadcastLabel(kind))

		switch kind {
		case chain.KindNone:
			if hash == (common.Hash{}) {
				hash = signed.Hash
			}

		case chain.AlreadySubmitted:
			log.Infow("node already has transaction", "attempt", st.n, "tx", signed.Hash.Hex())
			if err := c.sleep(ctx, policy.AlreadyKnownDelay); err != nil {
				return c.finish(log, c.fail(st, &Failure{Kind: chain.TransportError, Last: kind, Reason: "cancelled", Err: err}))
			}
			hash = signed.Hash

		case chain.NonceConflict:
			log.Warnw("nonce already used", "attempt", st.n, "nonce", signed.Nonce, "err", err)
			if r, h := c.minedEarlier(ctx, st.hashes); r != nil {
				c.move(st, Succeeded, kind, h)
				return c.finish(log, Outcome{TxHash: h, Receipt: r, Attempts: st.n})
			}
			return c.finish(log, c.fail(st, &Failure{Kind: chain.NonceConflict, Last: kind, Reason: "nonce consumed by another transaction", Err: err}))

		default:
			log.Warnw("broadcast failed", "attempt", st.n, "kind", kind, "err", err)
			st.last, st.lastErr = kind, err
			c.move(st, Escalating, kind, signed.Hash)
			continue
		}

		c.move(st, Confirming, chain.KindNone, hash)
		started := c.clock().Now()
		res := c.Poller.AwaitConfirmation(ctx, hash, policy.RetryInterval)
		c.Metrics.Waited(c.clock().Now().Sub(started).Seconds())

		if res.Status == confirm.Confirmed {
			c.move(st, Succeeded, chain.KindNone, hash)
			return c.finish(log, Outcome{TxHash: hash, Receipt: res.Receipt, Attempts: st.n})
		}
		if res.Err != nil {
			return c.finish(log, c.fail(st, &Failure{Kind: chain.TransportError, Last: chain.ConfirmationTimeout, Reason: "cancelled", Err: res.Err}))
		}
		log.Infow("no receipt yet", "attempt", st.n, "tx", hash.Hex(), "waited", policy.RetryInterval)
		st.last, st.lastErr = chain.ConfirmationTimeout, nil
		c.move(st, Escalating, chain.ConfirmationTimeout, hash)
	}

	st.n = policy.MaxAttempts
	return c.finish(log, c.fail(st, &Failure{Kind: chain.AttemptsExhausted, Last: st.last, Reason: "no receipt after all attempts", Err: st.lastErr}))
}

// minedEarlier re-checks every hash this transaction was sent under.
func (c *Controller) minedEarlier(ctx context.Context, hashes []common.Hash) (*types.Receipt, common.Hash) {
	for _, h := range hashes {
		r, err := c.Client.Receipt(ctx, h)
		if err == nil && r != nil && r.BlockNumber != nil {
			return r, h
		}
	}
	return nil, common.Hash{}
}

func (c *Controller) fail(st *attempt, f *Failure) Outcome {
	c.move(st, Failed, f.Kind, common.Hash{})
	var h common.Hash
	if st.prev != nil {
		h = st.prev.Hash
	}
	return Outcome{TxHash: h, Attempts: st.n, Err: f}
}

func (c *Controller) move(st *attempt, to State, kind chain.FailureKind, hash common.Hash) {
	if c.Observer != nil {
		c.Observer(Transition{Attempt: st.n, From: st.state, To: to, Kind: kind, Hash: hash})
	}
	st.state = to
}

func (c *Controller) finish(log *zap.SugaredLogger, out Outcome) Outcome {
	if out.Err != nil {
		log.Errorw("transaction failed", "attempts", out.Attempts, "kind", out.Err.Kind, "last", out.Err.Last, "err", out.Err)
		c.Metrics.Outcome("failed", out.Err.Kind.String(), out.Attempts)
		return out
	}
	log.Infow("transaction mined", "attempts", out.Attempts, "tx", out.TxHash.Hex(), "block", out.Receipt.BlockNumber, "status", out.Receipt.Status)
	c.Metrics.Outcome("succeeded", chain.KindNone.String(), out.Attempts)
	return out
}

func (c *Controller) clock() confirm.Clock {
	switch {
	case c.Clock != nil:
		return c.Clock
	case c.Poller != nil && c.Poller.Clock != nil:
		return c.Poller.Clock
	}
	return confirm.SystemClock{}
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock().After(d):
		return nil
	}
}

func broadcastLabel(k chain.FailureKind) string {
	if k == chain.KindNone {
		return "ok"
	}
	return k.String()
}

var _ error = (*Failure)(nil)

// IsKind reports whether err is a *Failure of kind k.
func IsKind(err error, k chain.FailureKind) bool {
	var f *Failure
	return errors.As(err, &f) && f.Kind == k
}
