package txsign

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math"
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/ligun0805/batch-wallet/internal/chain"
)

// SigningError reports a failure before anything reached the network.
type SigningError struct {
	Op  string
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("sign: %s: %v", e.Op, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// Jitter bounds the random multiplier applied to auto-detected fees so
// that many accounts driven by the same tool do not bid identical fees.
type Jitter struct {
	Min float64
	Max float64

	// Rand returns a value in [0, 1). Defaults to math/rand/v2.
	Rand func() float64
}

// DefaultJitter is the policy used when none is configured.
var DefaultJitter = Jitter{Min: 1.01, Max: 2.0}

// Factor draws one multiplier within the bounds.
func (j Jitter) Factor() float64 {
	lo, hi := j.Min, j.Max
	if lo <= 0 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	r := rand.Float64
	if j.Rand != nil {
		r = j.Rand
	}
	return lo + (hi-lo)*r()
}

// Signer fills missing fields of an intent and signs it.
type Signer struct {
	Client chain.Client
	Jitter Jitter
}

// New constructs a Signer with the given jitter policy.
func New(client chain.Client, jitter Jitter) *Signer {
	return &Signer{Client: client, Jitter: jitter}
}

// Sign produces EIP-155 signed legacy transaction bytes for intent.
func (s *Signer) Sign(ctx context.Context, intent TransactionIntent, key *ecdsa.PrivateKey) (SignedTransaction, error) {
	if key == nil {
		return SignedTransaction{}, &SigningError{Op: "key", Err: errors.New("no private key")}
	}
	from := gethcrypto.PubkeyToAddress(key.PublicKey)

	chainID := intent.ChainID
	if isZero(chainID) {
		id, err := s.Client.ChainID(ctx)
		if err != nil {
			return SignedTransaction{}, &SigningError{Op: "chain id", Err: err}
		}
		chainID = id
	}

	var nonce uint64
	if intent.Nonce != nil {
		nonce = *intent.Nonce
	} else {
		n, err := s.Client.PendingNonce(ctx, from)
		if err != nil {
			return SignedTransaction{}, &SigningError{Op: "nonce", Err: err}
		}
		nonce = n
	}

	value := intent.Value
	if value == nil {
		value = new(big.Int)
	}

	gasLimit, gasPrice, err := s.fees(ctx, intent, from, value)
	if err != nil {
		return SignedTransaction{}, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       intent.To,
		Value:    new(big.Int).Set(value),
		Data:     intent.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return SignedTransaction{}, &SigningError{Op: "sign", Err: err}
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return SignedTransaction{}, &SigningError{Op: "encode", Err: err}
	}

	return SignedTransaction{
		Raw:      raw,
		Hash:     signed.Hash(),
		Nonce:    nonce,
		GasLimit: gasLimit,
		GasPrice: new(big.Int).Set(gasPrice),
	}, nil
}

// fees resolves gas limit and price. Jitter only applies when both were auto.
func (s *Signer) fees(ctx context.Context, intent TransactionIntent, from common.Address, value *big.Int) (uint64, *big.Int, error) {
	auto := intent.AutoFees()

	gasPrice := copyBig(intent.GasPrice)
	if isZero(gasPrice) {
		p, err := s.Client.GasPrice(ctx)
		if err != nil {
			return 0, nil, &SigningError{Op: "gas price", Err: err}
		}
		gasPrice = new(big.Int).Set(p)
		if auto {
			gasPrice = scaleBig(gasPrice, s.Jitter.Factor())
		}
	}

	gasLimit := intent.GasLimit
	if gasLimit == 0 {
		est, err := s.Client.EstimateGas(ctx, ethereum.CallMsg{
			From:     from,
			To:       intent.To,
			GasPrice: gasPrice,
			Value:    value,
			Data:     intent.Data,
		})
		if err != nil {
			return 0, nil, &SigningError{Op: "estimate gas", Err: err}
		}
		gasLimit = est
		if auto {
			gasLimit = scaleUint(gasLimit, s.Jitter.Factor())
		}
	}

	if gasPrice.Sign() <= 0 {
		gasPrice = big.NewInt(1)
	}
	if gasLimit == 0 {
		gasLimit = 1
	}
	return gasLimit, gasPrice, nil
}

// scaleBig returns floor(v*f), never below 1.
func scaleBig(v *big.Int, f float64) *big.Int {
	if v == nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return floorOne(copyBig(v))
	}
	out, _ := new(big.Float).Mul(new(big.Float).SetInt(v), big.NewFloat(f)).Int(nil)
	return floorOne(out)
}

// scaleUint returns floor(v*f), never below 1 and saturating at MaxUint64.
func scaleUint(v uint64, f float64) uint64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		f = 1
	}
	out := math.Floor(float64(v) * f)
	switch {
	case out < 1:
		return 1
	case out >= math.MaxUint64:
		return math.MaxUint64
	}
	return uint64(out)
}

func floorOne(v *big.Int) *big.Int {
	if v == nil || v.Sign() <= 0 {
		return big.NewInt(1)
	}
	return v
}
