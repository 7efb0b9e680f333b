package sender

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ligun0805/batch-wallet/internal/chain"
)

// State names a step of the submission loop.
type State int

const (
	Building State = iota
	Signing
	Broadcasting
	Confirming
	Escalating
	Succeeded
	Failed
)

var stateNames = [...]string{"building", "signing", "broadcasting", "confirming", "escalating", "succeeded", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Transition is reported to the Observer on every state change.
type Transition struct {
	Attempt  int
	From, To State
	Kind     chain.FailureKind
	Hash     common.Hash
}

// Failure is the terminal error of a logical transaction. Kind is why the
// loop stopped; Last is the kind of the final intermediate failure.
type Failure struct {
	Kind   chain.FailureKind
	Last   chain.FailureKind
	Reason string
	Err    error
}

// Sentinels for errors.Is.
var (
	ErrInvalidKey        = &Failure{Kind: chain.InvalidKey}
	ErrSigning           = &Failure{Kind: chain.SigningError}
	ErrNonceConflict     = &Failure{Kind: chain.NonceConflict}
	ErrAttemptsExhausted = &Failure{Kind: chain.AttemptsExhausted}
)

func (f *Failure) Error() string {
	msg := f.Kind.String()
	if f.Reason != "" {
		msg += ": " + f.Reason
	}
	if f.Last != chain.KindNone && f.Last != f.Kind {
		msg += " (last: " + f.Last.String() + ")"
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// Is matches any *Failure of the same Kind.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Kind == f.Kind
}

// Outcome is the only thing Send reports.
type Outcome struct {
	TxHash   common.Hash
	Receipt  *types.Receipt
	Attempts int
	Err      *Failure
}

// Succeeded reports whether a receipt was observed.
func (o Outcome) Succeeded() bool { return o.Err == nil }

// Result returns the mined hash or the failure as a plain error.
func (o Outcome) Result() (common.Hash, error) {
	if o.Err != nil {
		return o.TxHash, o.Err
	}
	return o.TxHash, nil
}

// Reverted reports a mined transaction whose execution failed.
func (o Outcome) Reverted() bool {
	return o.Receipt != nil && o.Receipt.Status == types.ReceiptStatusFailed
}
