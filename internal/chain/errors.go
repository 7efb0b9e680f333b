package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// FailureKind is the closed set of reasons a submission step can fail.
type FailureKind int

const (
	KindNone FailureKind = iota
	InvalidKey
	SigningError
	TransportError
	AlreadySubmitted
	Underpriced
	NonceConflict
	NodeRejected
	ConfirmationTimeout
	AttemptsExhausted
)

var kindNames = map[FailureKind]string{
	KindNone:            "none",
	InvalidKey:          "invalid_key",
	SigningError:        "signing_error",
	TransportError:      "transport_error",
	AlreadySubmitted:    "already_submitted",
	Underpriced:         "underpriced",
	NonceConflict:       "nonce_conflict",
	NodeRejected:        "node_rejected",
	ConfirmationTimeout: "confirmation_timeout",
	AttemptsExhausted:   "attempts_exhausted",
}

func (k FailureKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Retryable reports whether the escalation path may absorb this kind.
func (k FailureKind) Retryable() bool {
	switch k {
	case TransportError, Underpriced, NodeRejected, ConfirmationTimeout:
		return true
	}
	return false
}

// Error is what every Client method returns on failure.
type Error struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewNodeError builds an error for a node that answered with msg.
func NewNodeError(op, msg string) *Error {
	return &Error{Kind: Classify(msg), Op: op, Err: errors.New(msg)}
}

// NewTransportError builds an error for a call that never got a JSON-RPC answer.
func NewTransportError(op string, err error) *Error {
	return &Error{Kind: TransportError, Op: op, Err: err}
}

// KindOf extracts the FailureKind carried by err.
func KindOf(err error) FailureKind {
	if err == nil {
		return KindNone
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return TransportError
}

// Wrap converts an error from go-ethereum into an *Error.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return &Error{Kind: TransportError, Op: op, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: TransportError, Op: op, Err: err}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		if rpcErr.ErrorCode() == codeLimitExceeded {
			return &Error{Kind: TransportError, Op: op, Err: err}
		}
		return &Error{Kind: Classify(err.Error()), Op: op, Err: err}
	}

	// No JSON-RPC envelope: only trust the text when it names a known node condition.
	kind := Classify(err.Error())
	if kind == NodeRejected {
		kind = TransportError
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Node error phrasings, matched case-insensitively. This is a heuristic:
// clients word these differently and new phrasings only need adding here.
var (
	alreadyKnownPhrases = []string{"already known", "known transaction", "already imported", "alreadyknown"}
	noncePhrases        = []string{"nonce too low", "nonce has already been used", "already been used"}
	underpricedPhrases  = []string{"underpriced", "fee too low", "gas price too low", "max fee per gas less than", "gasprice too low"}
	rateLimitPhrases    = []string{"429 too many requests", "status 429", "status code 429", "too many requests", "rate limit", "-32005"}
)

// Classify maps node error text onto a FailureKind.
func Classify(msg string) FailureKind {
	m := strings.ToLower(msg)
	switch {
	case containsAny(m, alreadyKnownPhrases):
		return AlreadySubmitted
	case containsAny(m, noncePhrases):
		return NonceConflict
	case containsAny(m, underpricedPhrases):
		return Underpriced
	case containsAny(m, rateLimitPhrases):
		return TransportError
	}
	return NodeRejected
}

// codeLimitExceeded is the JSON-RPC code providers use for throttling.
const codeLimitExceeded = -32005

// IsRateLimit reports whether err looks like provider throttling.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeLimitExceeded {
		return true
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == 429 {
		return true
	}
	return containsAny(strings.ToLower(err.Error()), rateLimitPhrases)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
