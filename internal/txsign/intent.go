// Package txsign turns transaction intents into signed, broadcast-ready bytes.
package txsign

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TransactionIntent describes what to send. Zero GasLimit and nil/zero
// GasPrice mean "auto"; a nil Nonce means "use the pending nonce".
// Treat it as immutable: the With helpers return modified copies.
type TransactionIntent struct {
	To       *common.Address
	Value    *big.Int
	Data     []byte
	ChainID  *big.Int
	GasLimit uint64
	GasPrice *big.Int
	Nonce    *uint64
}

// AutoFees reports whether both fee fields are left to the signer.
func (in TransactionIntent) AutoFees() bool {
	return in.GasLimit == 0 && isZero(in.GasPrice)
}

// WithFees returns a copy with explicit fee fields.
func (in TransactionIntent) WithFees(gasLimit uint64, gasPrice *big.Int) TransactionIntent {
	out := in.clone()
	out.GasLimit = gasLimit
	out.GasPrice = copyBig(gasPrice)
	return out
}

// WithNonce returns a copy pinned to nonce.
func (in TransactionIntent) WithNonce(nonce uint64) TransactionIntent {
	out := in.clone()
	n := nonce
	out.Nonce = &n
	return out
}

func (in TransactionIntent) clone() TransactionIntent {
	out := in
	if in.To != nil {
		to := *in.To
		out.To = &to
	}
	out.Value = copyBig(in.Value)
	out.GasPrice = copyBig(in.GasPrice)
	out.ChainID = copyBig(in.ChainID)
	if in.Data != nil {
		out.Data = append([]byte(nil), in.Data...)
	}
	if in.Nonce != nil {
		n := *in.Nonce
		out.Nonce = &n
	}
	return out
}

// SignedTransaction is the output of one signing attempt.
type SignedTransaction struct {
	Raw      []byte
	Hash     common.Hash
	Nonce    uint64
	GasLimit uint64
	GasPrice *big.Int
}

// RawHex is the 0x-prefixed encoding sent to eth_sendRawTransaction.
func (s SignedTransaction) RawHex() string {
	return hexutil.Encode(s.Raw)
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
