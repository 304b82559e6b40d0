package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atomiclaunch/bundler/pkg/circuitbreaker"
	"github.com/atomiclaunch/bundler/pkg/classifier"
	"github.com/atomiclaunch/bundler/pkg/logger"
	"github.com/atomiclaunch/bundler/pkg/metrics"
)

// ErrCircuitOpen is returned when the breaker gate refuses a call. It is a
// synthetic executor-level condition, never produced by classification.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Operation is one asynchronous unit of work. Results are captured by the
// closure; the executor only cares about success or failure.
type Operation func(ctx context.Context) error

// AttemptError carries the last raw error out of an exhausted or terminal
// execution, enriched with the attempt count and classified kind. It unwraps
// to the original error so callers can still inspect the root cause.
type AttemptError struct {
	Err       error
	Kind      classifier.Kind
	Retryable bool
	Attempts  int
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("operation failed (kind=%s, attempts=%d): %v", e.Kind, e.Attempts, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// Executor runs one operation with bounded retries. It consults the circuit
// breaker before each attempt, classifies every failure, and backs off
// between retryable attempts according to its policy. The executor never
// fabricates a "max retries" error: exhaustion propagates the error from the
// final attempt.
type Executor struct {
	policy  Policy
	breaker *circuitbreaker.CircuitBreaker
	logger  logger.Logger

	// sleep suspends only the calling goroutine and honors the context.
	// Injectable so tests can observe backoff waits without real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor from an explicit policy and breaker.
func NewExecutor(policy Policy, breaker *circuitbreaker.CircuitBreaker, log logger.Logger) *Executor {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Executor{
		policy:  policy,
		breaker: breaker,
		logger:  log,
		sleep:   sleepContext,
	}
}

// NewTransactionExecutor creates an executor preconfigured with the chain
// submission defaults.
func NewTransactionExecutor(breaker *circuitbreaker.CircuitBreaker, log logger.Logger) *Executor {
	return NewExecutor(TransactionDefaults(), breaker, log)
}

// Execute runs op until it succeeds, turns out to be terminal, or the attempt
// ceiling is reached. Only two outcomes ever leave: nil, or the last observed
// error wrapped in an AttemptError.
func (e *Executor) Execute(ctx context.Context, operation string, op Operation) error {
	var lastErr error
	var lastKind classifier.Kind
	var lastRetryable bool
	attempts := 0

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if !e.breaker.CanExecute() {
			e.logger.ErrorWith(logger.Exec, "%s rejected: circuit breaker is open", operation)
			metrics.CircuitOpenRejections.WithLabelValues(operation).Inc()
			return &AttemptError{
				Err:       ErrCircuitOpen,
				Kind:      classifier.KindCircuitOpen,
				Retryable: false,
				Attempts:  attempts,
			}
		}

		err := op(ctx)
		attempts++
		if err == nil {
			e.breaker.OnSuccess()
			metrics.OperationAttempts.WithLabelValues(operation, "success").Inc()
			if attempt > 1 {
				e.logger.InfoWith(logger.Exec, "%s succeeded on attempt %d", operation, attempt)
			}
			return nil
		}

		classified := classifier.Classify(err)
		e.breaker.OnFailure(err)
		metrics.OperationAttempts.WithLabelValues(operation, "failure").Inc()
		metrics.OperationErrors.WithLabelValues(operation, string(classified.Kind)).Inc()

		lastErr, lastKind, lastRetryable = err, classified.Kind, classified.Retryable

		if !classified.Retryable {
			e.logger.ErrorWith(logger.Exec, "%s failed with terminal %s error: %v", operation, classified.Kind, err)
			break
		}
		if attempt == e.policy.MaxAttempts {
			e.logger.ErrorWith(logger.Exec, "%s exhausted %d attempts, last %s error: %v",
				operation, attempt, classified.Kind, err)
			break
		}

		delay := e.policy.Delay(attempt)
		e.logger.DebugWith(logger.Exec, "%s attempt %d failed (%s), retrying in %v: %v",
			operation, attempt, classified.Kind, delay, err)

		if serr := e.sleep(ctx, delay); serr != nil {
			// Deadline expiry while suspended goes through the same failure
			// path as any other error.
			classified = classifier.Classify(serr)
			e.breaker.OnFailure(serr)
			metrics.OperationErrors.WithLabelValues(operation, string(classified.Kind)).Inc()
			lastErr, lastKind, lastRetryable = serr, classified.Kind, classified.Retryable
			break
		}
		metrics.RetriesExecuted.WithLabelValues(operation).Inc()
	}

	return &AttemptError{
		Err:       lastErr,
		Kind:      lastKind,
		Retryable: lastRetryable,
		Attempts:  attempts,
	}
}

// sleepContext waits for d or until the context expires, whichever is first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
