package chain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/batch-wallet/internal/chain"
)

func TestClassify(t *testing.T) {
	tt := []struct {
		msg  string
		kind chain.FailureKind
	}{
		{"already known", chain.AlreadySubmitted},
		{"ALREADY KNOWN", chain.AlreadySubmitted},
		{"known transaction: 0xabc", chain.AlreadySubmitted},
		{"transaction underpriced", chain.Underpriced},
		{"replacement transaction underpriced", chain.Underpriced},
		{"max fee per gas less than block base fee", chain.Underpriced},
		{"nonce too low: next nonce 7, tx nonce 6", chain.NonceConflict},
		{"nonce has already been used", chain.NonceConflict},
		{"429 Too Many Requests", chain.TransportError},
		{"rate limit exceeded", chain.TransportError},
		{"execution reverted: 0x08c379a0000000000000000000000000000000000000000000000000000000000429", chain.NodeRejected},
		{"invalid nonce; got 9, expected 7", chain.NodeRejected},
		{"insufficient funds for gas * price + value", chain.NodeRejected},
		{"execution reverted", chain.NodeRejected},
		{"", chain.NodeRejected},
	}

	for i, tc := range tt {
		assert.Equal(t, tc.kind, chain.Classify(tc.msg), "[case:%d] %q", i, tc.msg)
	}
}

type codedErr struct {
	msg  string
	code int
}

func (e codedErr) Error() string  { return e.msg }
func (e codedErr) ErrorCode() int { return e.code }

func TestWrap(t *testing.T) {
	assert.NoError(t, chain.Wrap("op", nil))

	tt := []struct {
		name string
		err  error
		kind chain.FailureKind
	}{
		{"rpc already known", codedErr{"already known", -32000}, chain.AlreadySubmitted},
		{"rpc insufficient funds", codedErr{"insufficient funds for gas", -32000}, chain.NodeRejected},
		{"rpc throttled", codedErr{"limit exceeded -32005", -32005}, chain.TransportError},
		{"plain net error", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), chain.TransportError},
		{"deadline", fmt.Errorf("post: %w", context.DeadlineExceeded), chain.TransportError},
		{"plain underpriced text", errors.New("transaction underpriced"), chain.Underpriced},
	}

	for i, tc := range tt {
		err := chain.Wrap("eth_sendRawTransaction", tc.err)
		require.Error(t, err, "[case:%d] %s", i, tc.name)
		assert.Equal(t, tc.kind, chain.KindOf(err), "[case:%d] %s", i, tc.name)
		assert.ErrorIs(t, err, tc.err, "[case:%d] %s", i, tc.name)
	}
}

func TestWrapKeepsExistingKind(t *testing.T) {
	orig := chain.NewNodeError("op", "nonce too low")
	wrapped := chain.Wrap("other", fmt.Errorf("ctx: %w", orig))
	assert.Equal(t, chain.NonceConflict, chain.KindOf(wrapped))
}

func TestRetryable(t *testing.T) {
	for _, k := range []chain.FailureKind{chain.TransportError, chain.Underpriced, chain.NodeRejected, chain.ConfirmationTimeout} {
		assert.True(t, k.Retryable(), k.String())
	}
	for _, k := range []chain.FailureKind{chain.InvalidKey, chain.SigningError, chain.NonceConflict, chain.AttemptsExhausted, chain.AlreadySubmitted} {
		assert.False(t, k.Retryable(), k.String())
	}
}

func TestIsRateLimitIgnoresNumbersInPayload(t *testing.T) {
	assert.True(t, chain.IsRateLimit(errors.New("429 Too Many Requests: slow down")))
	assert.True(t, chain.IsRateLimit(codedErr{"limit exceeded", -32005}))
	assert.False(t, chain.IsRateLimit(errors.New("execution reverted: 0x4290ab")))
	assert.False(t, chain.IsRateLimit(errors.New("known transaction: 0xab429cd")))
}
