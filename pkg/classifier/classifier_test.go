package classifier

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// codedError mimics a JSON-RPC error carrying an explicit code.
type codedError struct {
	code int
	msg  string
}

func (e codedError) Error() string  { return e.msg }
func (e codedError) ErrorCode() int { return e.code }

func TestClassifyBySubstring(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"connection refused", errors.New("dial tcp: connection refused"), KindNetwork},
		{"eof", errors.New("unexpected EOF"), KindNetwork},
		{"deadline", errors.New("context deadline exceeded"), KindTimeout},
		{"timed out", errors.New("request timed out"), KindTimeout},
		{"rate limit", errors.New("rate limit exceeded, slow down"), KindRateLimited},
		{"server", errors.New("502 Bad Gateway"), KindServer},
		{"gas estimation", errors.New("gas required exceeds allowance (21000)"), KindGasEstimation},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), KindInsufficientFunds},
		{"reverted", errors.New("execution reverted: LP locked"), KindReverted},
		{"nonce too low", errors.New("nonce too low: next nonce 42"), KindNonceTooLow},
		{"underpriced", errors.New("replacement transaction underpriced"), KindGasPriceTooLow},
		{"contract", errors.New("invalid opcode: INVALID"), KindContract},
		{"validation", errors.New("invalid params: missing field"), KindValidation},
		{"unknown", errors.New("some exotic failure"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.err.Error(), got.Message)
		})
	}
}

func TestClassifyCodeBeforeSubstring(t *testing.T) {
	// The message alone would match the network rule, but the explicit code
	// must win and select rate_limited.
	err := codedError{code: 429, msg: "connection refused by upstream"}
	got := Classify(err)
	assert.Equal(t, KindRateLimited, got.Kind)

	// A revert error code selects reverted even with an unhelpful message.
	err = codedError{code: 3, msg: "something happened"}
	assert.Equal(t, KindReverted, Classify(err).Kind)
}

func TestClassifyUnrecognizedCodeFallsBackToMessage(t *testing.T) {
	err := codedError{code: -99999, msg: "nonce too low"}
	assert.Equal(t, KindNonceTooLow, Classify(err).Kind)
}

func TestClassifyPriorityOrder(t *testing.T) {
	// A message matching both the gas-estimation and insufficient-funds rules
	// must resolve to the earlier category.
	err := errors.New("gas required exceeds allowance: insufficient funds")
	assert.Equal(t, KindGasEstimation, Classify(err).Kind)

	// timeout is checked before rate-limited.
	err = errors.New("timeout waiting for rate limit slot")
	assert.Equal(t, KindTimeout, Classify(err).Kind)
}

func TestClassifyDeterminism(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", context.DeadlineExceeded)
	first := Classify(err)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first.Kind, Classify(err).Kind)
	}
}

func TestClassifyWrappedRPCError(t *testing.T) {
	err := fmt.Errorf("relay call failed: %w", codedError{code: -32005, msg: "slow down"})
	assert.Equal(t, KindRateLimited, Classify(err).Kind)
}

func TestIsRetryable(t *testing.T) {
	retryable := []Kind{
		KindNetwork, KindTimeout, KindRateLimited, KindServer,
		KindGasEstimation, KindNonceTooLow, KindGasPriceTooLow,
	}
	terminal := []Kind{
		KindInsufficientFunds, KindReverted, KindContract,
		KindValidation, KindConfiguration, KindUnknown, KindCircuitOpen,
	}

	for _, k := range retryable {
		assert.True(t, IsRetryable(k), "kind %s should be retryable", k)
	}
	for _, k := range terminal {
		assert.False(t, IsRetryable(k), "kind %s should be terminal", k)
	}
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	base := errors.New("execution reverted")
	classified := Classify(base)
	require.ErrorIs(t, classified, base)
	assert.False(t, classified.Retryable)
	assert.False(t, classified.Timestamp.IsZero())
}
