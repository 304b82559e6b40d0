package classifier

import (
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

// Kind is the closed set of failure categories produced by classification.
type Kind string

const (
	// KindNetwork indicates a transport level failure reaching the remote endpoint
	KindNetwork Kind = "network"
	// KindTimeout indicates the call exceeded its deadline
	KindTimeout Kind = "timeout"
	// KindRateLimited indicates the remote endpoint rejected the call for throttling
	KindRateLimited Kind = "rate_limited"
	// KindServer indicates a remote internal error (5xx-style)
	KindServer Kind = "server"
	// KindGasEstimation indicates gas estimation failed for the operation
	KindGasEstimation Kind = "gas_estimation"
	// KindInsufficientFunds indicates the sending identity cannot cover value + fees
	KindInsufficientFunds Kind = "insufficient_funds"
	// KindReverted indicates the operation executed and reverted
	KindReverted Kind = "reverted"
	// KindNonceTooLow indicates the submitted nonce is behind the chain state
	KindNonceTooLow Kind = "nonce_too_low"
	// KindGasPriceTooLow indicates the offered price is below the current floor
	KindGasPriceTooLow Kind = "gas_price_too_low"
	// KindContract indicates a contract level execution failure
	KindContract Kind = "contract"
	// KindValidation indicates the request itself was malformed or rejected
	KindValidation Kind = "validation"
	// KindConfiguration indicates a local misconfiguration detected before submission
	KindConfiguration Kind = "configuration"
	// KindUnknown is the catch-all when no rule matches
	KindUnknown Kind = "unknown"

	// KindCircuitOpen is never produced by classification. It is the synthetic
	// condition raised by the retry executor when the breaker gate refuses a call.
	KindCircuitOpen Kind = "circuit_open"
)

// ClassifiedError is one failure occurrence mapped onto the taxonomy.
type ClassifiedError struct {
	Kind      Kind
	Retryable bool
	Message   string
	Context   map[string]string
	Timestamp time.Time
	Err       error
}

func (c ClassifiedError) Error() string {
	return c.Message
}

// Unwrap exposes the original failure so errors.Is/As keep working.
func (c ClassifiedError) Unwrap() error {
	return c.Err
}

// retryableKinds is the fixed set of kinds worth another attempt. Everything
// else is terminal.
var retryableKinds = map[Kind]bool{
	KindNetwork:        true,
	KindTimeout:        true,
	KindRateLimited:    true,
	KindServer:         true,
	KindGasEstimation:  true,
	KindNonceTooLow:    true,
	KindGasPriceTooLow: true,
}

// IsRetryable reports whether a kind is in the retryable set.
func IsRetryable(kind Kind) bool {
	return retryableKinds[kind]
}

// rule pairs a kind with the error codes and message substrings that select it.
// Rules are evaluated top to bottom; the order of the slice is the priority
// order of the taxonomy.
type rule struct {
	kind       Kind
	codes      []int
	substrings []string
}

var rules = []rule{
	{
		kind: KindNetwork,
		substrings: []string{
			"connection refused",
			"connection reset",
			"no such host",
			"network is unreachable",
			"broken pipe",
			"eof",
		},
	},
	{
		kind: KindTimeout,
		substrings: []string{
			"context deadline exceeded",
			"deadline exceeded",
			"context canceled",
			"timed out",
			"timeout",
		},
	},
	{
		kind:  KindRateLimited,
		codes: []int{429, -32005},
		substrings: []string{
			"rate limit",
			"too many requests",
		},
	},
	{
		kind:  KindServer,
		codes: []int{500, 502, 503, -32603},
		substrings: []string{
			"internal server error",
			"bad gateway",
			"service unavailable",
		},
	},
	{
		kind: KindGasEstimation,
		substrings: []string{
			"gas required exceeds allowance",
			"failed to estimate gas",
			"always failing transaction",
		},
	},
	{
		kind: KindInsufficientFunds,
		substrings: []string{
			"insufficient funds",
			"insufficient balance",
		},
	},
	{
		kind:  KindReverted,
		codes: []int{3},
		substrings: []string{
			"execution reverted",
			"reverted",
		},
	},
	{
		kind: KindNonceTooLow,
		substrings: []string{
			"nonce too low",
			"nonce is too low",
		},
	},
	{
		kind: KindGasPriceTooLow,
		substrings: []string{
			"transaction underpriced",
			"gas price too low",
			"fee cap less than block base fee",
			"max fee per gas less than block base fee",
		},
	},
	{
		kind: KindContract,
		substrings: []string{
			"invalid opcode",
			"out of gas",
			"stack underflow",
		},
	},
	{
		kind:  KindValidation,
		codes: []int{-32600, -32602},
		substrings: []string{
			"invalid argument",
			"invalid params",
			"malformed",
			"already known",
		},
	},
}

// Classify maps any failure onto the taxonomy. It is a pure function of the
// error's code and message: explicit error codes are matched first across all
// rules, then message substrings in rule order, and anything left over is
// KindUnknown.
func Classify(err error) ClassifiedError {
	kind := classifyKind(err)
	return ClassifiedError{
		Kind:      kind,
		Retryable: IsRetryable(kind),
		Message:   err.Error(),
		Context:   map[string]string{},
		Timestamp: time.Now(),
		Err:       err,
	}
}

func classifyKind(err error) Kind {
	if code, ok := errorCode(err); ok {
		for _, r := range rules {
			for _, c := range r.codes {
				if code == c {
					return r.kind
				}
			}
		}
	}

	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, s := range r.substrings {
			if strings.Contains(msg, s) {
				return r.kind
			}
		}
	}

	return KindUnknown
}

// errorCode extracts a JSON-RPC style error code when the failure carries one.
func errorCode(err error) (int, bool) {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode(), true
	}
	return 0, false
}
