package sender

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Policy bounds the retry loop.
type Policy struct {
	EscalationFactor  float64
	MaxAttempts       int
	RetryInterval     time.Duration
	AlreadyKnownDelay time.Duration
}

// DefaultPolicy mirrors the values the tool shipped with.
func DefaultPolicy() Policy {
	return Policy{
		EscalationFactor:  1.1,
		MaxAttempts:       5,
		RetryInterval:     15 * time.Second,
		AlreadyKnownDelay: 3 * time.Second,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.EscalationFactor <= 0 {
		p.EscalationFactor = d.EscalationFactor
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.RetryInterval <= 0 {
		p.RetryInterval = d.RetryInterval
	}
	switch {
	case p.AlreadyKnownDelay == 0:
		p.AlreadyKnownDelay = d.AlreadyKnownDelay
	case p.AlreadyKnownDelay < 0:
		p.AlreadyKnownDelay = 0
	}
	return p
}

// escalateBig returns ceil(v*factor). A factor above 1 always raises v by at
// least one so that small integer fees still climb.
func escalateBig(v *big.Int, factor float64) *big.Int {
	if v == nil {
		return big.NewInt(1)
	}
	if factor <= 1 {
		return new(big.Int).Set(v)
	}
	out := decimal.NewFromBigInt(v, 0).Mul(decimal.NewFromFloat(factor)).Ceil().BigInt()
	if out.Cmp(v) <= 0 {
		out = new(big.Int).Add(v, big.NewInt(1))
	}
	return out
}

func escalateUint(v uint64, factor float64) uint64 {
	out := escalateBig(new(big.Int).SetUint64(v), factor)
	if !out.IsUint64() {
		return ^uint64(0)
	}
	return out.Uint64()
}
