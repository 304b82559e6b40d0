// Package bundle assembles launch-sequence transactions into an atomic bundle
// and drives it through simulation and relay submission.
package bundle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/atomiclaunch/bundler/pkg/alert"
	"github.com/atomiclaunch/bundler/pkg/gas"
	"github.com/atomiclaunch/bundler/pkg/logger"
	"github.com/atomiclaunch/bundler/pkg/metrics"
	"github.com/atomiclaunch/bundler/pkg/relay"
	"github.com/atomiclaunch/bundler/pkg/retry"
	"github.com/atomiclaunch/bundler/pkg/tracker"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
)

// DefaultBlockOffset is how far past the current head the bundle targets.
const DefaultBlockOffset = 5

// PriceSource produces the bundle-wide gas price.
type PriceSource interface {
	Estimate(ctx context.Context) (gas.Quote, error)
}

// NonceSource reads account and chain state needed for assembly.
type NonceSource interface {
	PendingNonceAt(ctx context.Context, address common.Address) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Relay is the bundle submission surface.
type Relay interface {
	Simulate(ctx context.Context, txs []hexutil.Bytes, targetBlock uint64) (*relay.SimulationResult, error)
	Submit(ctx context.Context, txs []hexutil.Bytes, targetBlock uint64, builders []string) (*relay.SubmitResult, error)
}

// Executor runs operations under retry and circuit breaker protection.
type Executor interface {
	Execute(ctx context.Context, operation string, op retry.Operation) error
}

// Result summarizes a successfully submitted bundle.
type Result struct {
	BundleID    string
	BundleHash  string
	TargetBlock uint64
	GasPrice    *big.Int
	GasUsed     uint64
	Steps       []StepKind
}

// Orchestrator owns the bundle lifecycle: nonce assignment, payload building,
// simulation and submission. One orchestrator serves one account.
type Orchestrator struct {
	address     common.Address
	prices      PriceSource
	chain       NonceSource
	relay       Relay
	executor    Executor
	tracker     *tracker.Tracker
	alerts      *alert.Dispatcher
	logger      logger.Logger
	blockOffset uint64
	builders    []string
}

// NewOrchestrator wires the orchestrator's collaborators together.
func NewOrchestrator(
	address common.Address,
	prices PriceSource,
	chain NonceSource,
	rly Relay,
	executor Executor,
	trk *tracker.Tracker,
	alerts *alert.Dispatcher,
	log logger.Logger,
	blockOffset uint64,
	builders []string,
) *Orchestrator {
	if blockOffset == 0 {
		blockOffset = DefaultBlockOffset
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Orchestrator{
		address:     address,
		prices:      prices,
		chain:       chain,
		relay:       rly,
		executor:    executor,
		tracker:     trk,
		alerts:      alerts,
		logger:      log,
		blockOffset: blockOffset,
		builders:    builders,
	}
}

// Run assembles the steps into a bundle, simulates it against pending state
// and submits it. Every payload is built before the first relay interaction,
// and a simulation failure is terminal: the bundle is never submitted as
// assembled.
func (o *Orchestrator) Run(ctx context.Context, steps []Step) (*Result, error) {
	started := time.Now()

	ordered, err := orderSteps(steps)
	if err != nil {
		return nil, err
	}

	bundleID := uuid.NewString()
	if trackErr := o.tracker.Start(bundleID, map[string]string{
		"steps":   fmt.Sprintf("%d", len(ordered)),
		"account": o.address.Hex(),
	}); trackErr != nil {
		return nil, trackErr
	}

	o.logger.InfoWith(logger.Bundle, "assembling bundle %s with %d steps", bundleID, len(ordered))

	var quote gas.Quote
	if err := o.executor.Execute(ctx, "gas_price", func(ctx context.Context) error {
		var opErr error
		quote, opErr = o.prices.Estimate(ctx)
		return opErr
	}); err != nil {
		return nil, o.fail(ctx, bundleID, started, fmt.Errorf("failed to price bundle: %w", err))
	}

	var baseNonce uint64
	if err := o.executor.Execute(ctx, "fetch_nonce", func(ctx context.Context) error {
		var opErr error
		baseNonce, opErr = o.chain.PendingNonceAt(ctx, o.address)
		return opErr
	}); err != nil {
		return nil, o.fail(ctx, bundleID, started, fmt.Errorf("failed to fetch account nonce: %w", err))
	}

	var head uint64
	if err := o.executor.Execute(ctx, "fetch_block", func(ctx context.Context) error {
		var opErr error
		head, opErr = o.chain.BlockNumber(ctx)
		return opErr
	}); err != nil {
		return nil, o.fail(ctx, bundleID, started, fmt.Errorf("failed to fetch chain head: %w", err))
	}
	targetBlock := head + o.blockOffset

	// Contiguous nonces starting at the account's pending nonce. A build
	// failure aborts the bundle before any relay traffic.
	txs := make([]hexutil.Bytes, 0, len(ordered))
	kinds := make([]StepKind, 0, len(ordered))
	for i, step := range ordered {
		input := BuildInput{
			Nonce:    baseNonce + uint64(i),
			GasPrice: new(big.Int).Set(quote.Price),
		}
		raw, buildErr := step.Build(ctx, input)
		if buildErr != nil {
			return nil, o.fail(ctx, bundleID, started,
				fmt.Errorf("failed to build %s transaction: %w", step.Kind, buildErr))
		}
		txs = append(txs, raw)
		kinds = append(kinds, step.Kind)
	}

	o.logger.InfoWith(logger.Bundle, "bundle %s targets block %d (head %d, nonces %d..%d)",
		bundleID, targetBlock, head, baseNonce, baseNonce+uint64(len(txs))-1)

	var sim *relay.SimulationResult
	if err := o.executor.Execute(ctx, "simulate_bundle", func(ctx context.Context) error {
		var opErr error
		sim, opErr = o.relay.Simulate(ctx, txs, targetBlock)
		return opErr
	}); err != nil {
		return nil, o.fail(ctx, bundleID, started, fmt.Errorf("bundle rejected by simulation: %w", err))
	}

	var submitted *relay.SubmitResult
	if err := o.executor.Execute(ctx, "submit_bundle", func(ctx context.Context) error {
		var opErr error
		submitted, opErr = o.relay.Submit(ctx, txs, targetBlock, o.builders)
		return opErr
	}); err != nil {
		return nil, o.fail(ctx, bundleID, started, fmt.Errorf("bundle submission failed: %w", err))
	}

	if finishErr := o.tracker.Finish(bundleID, tracker.Outcome{
		Success:        true,
		GasUsed:        sim.TotalGasUsed,
		EffectivePrice: quote.Price,
	}); finishErr != nil {
		o.logger.ErrorWith(logger.Bundle, "failed to record bundle outcome: %v", finishErr)
	}
	metrics.BundlesSubmitted.WithLabelValues("success").Inc()
	metrics.BundleProcessingTime.Observe(time.Since(started).Seconds())

	o.logger.NoticeWith(logger.Bundle, "bundle %s submitted as %s for block %d",
		bundleID, submitted.BundleHash, targetBlock)

	return &Result{
		BundleID:    bundleID,
		BundleHash:  submitted.BundleHash,
		TargetBlock: targetBlock,
		GasPrice:    quote.Price,
		GasUsed:     sim.TotalGasUsed,
		Steps:       kinds,
	}, nil
}

// fail records the failed bundle, raises an alert and returns the error.
func (o *Orchestrator) fail(ctx context.Context, bundleID string, started time.Time, err error) error {
	if finishErr := o.tracker.Finish(bundleID, tracker.Outcome{Err: err}); finishErr != nil {
		o.logger.ErrorWith(logger.Bundle, "failed to record bundle outcome: %v", finishErr)
	}
	metrics.BundlesSubmitted.WithLabelValues("failure").Inc()
	metrics.BundleProcessingTime.Observe(time.Since(started).Seconds())

	o.logger.ErrorWith(logger.Bundle, "bundle %s failed: %v", bundleID, err)
	o.alerts.Dispatch(ctx, fmt.Sprintf("bundle %s failed", bundleID), map[string]string{
		"bundle": bundleID,
		"error":  err.Error(),
	})
	return err
}
