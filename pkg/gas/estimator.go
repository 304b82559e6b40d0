package gas

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/atomiclaunch/bundler/pkg/logger"
	"github.com/atomiclaunch/bundler/pkg/metrics"
	"github.com/ethereum/go-ethereum"
)

// DefaultHistorySize bounds the rolling quote history kept for diagnostics.
const DefaultHistorySize = 100

// Quote is one price observation after multiplier and clamping.
type Quote struct {
	// Price is the final price to use for the bundle.
	Price *big.Int
	// ObservedBaseFee is the raw provider quote before adjustment. It is an
	// opaque diagnostic value; callers must not rely on its exact semantics.
	ObservedBaseFee *big.Int
	Timestamp       time.Time
}

// FeeProvider is the slice of the chain collaborator the estimator needs.
type FeeProvider interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// Config holds the estimator bounds and adjustment parameters.
type Config struct {
	// MultiplierPercent is a fixed-point multiplier, e.g. 120 meaning 1.20x.
	// Integer arithmetic avoids floating-point drift on large magnitudes.
	MultiplierPercent int64
	MinPrice          *big.Int
	MaxPrice          *big.Int
	// LimitBuffer is the fixed safety margin added to provider gas estimates.
	LimitBuffer uint64
	HistorySize int
}

// Validate checks the estimator configuration.
func (c Config) Validate() error {
	if c.MultiplierPercent <= 0 {
		return fmt.Errorf("gas multiplier must be greater than 0, got %d", c.MultiplierPercent)
	}
	if c.MinPrice == nil || c.MaxPrice == nil {
		return fmt.Errorf("min and max gas price bounds are required")
	}
	if c.MinPrice.Sign() < 0 {
		return fmt.Errorf("min gas price must not be negative, got %s", c.MinPrice)
	}
	if c.MinPrice.Cmp(c.MaxPrice) > 0 {
		return fmt.Errorf("min gas price %s exceeds max gas price %s", c.MinPrice, c.MaxPrice)
	}
	return nil
}

// Estimator fetches network price quotes, applies the configured multiplier
// and bounds, and keeps a bounded rolling history of observations. Failures
// of the underlying provider propagate unclassified; classification happens
// at the retry executor wrapping these calls.
type Estimator struct {
	provider FeeProvider
	cfg      Config
	logger   logger.Logger

	mu      sync.Mutex
	history []Quote
}

// NewEstimator validates the configuration and returns an estimator.
func NewEstimator(provider FeeProvider, cfg Config, log logger.Logger) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Estimator{
		provider: provider,
		cfg:      cfg,
		logger:   log,
	}, nil
}

// Estimate fetches the current network quote, adjusts and clamps it, records
// the observation, and returns it.
func (e *Estimator) Estimate(ctx context.Context) (Quote, error) {
	raw, err := e.provider.SuggestGasPrice(ctx)
	if err != nil {
		return Quote{}, fmt.Errorf("failed to fetch gas price: %w", err)
	}

	price := new(big.Int).Mul(raw, big.NewInt(e.cfg.MultiplierPercent))
	price.Div(price, big.NewInt(100))

	if price.Cmp(e.cfg.MinPrice) < 0 {
		price.Set(e.cfg.MinPrice)
	}
	if price.Cmp(e.cfg.MaxPrice) > 0 {
		e.logger.NoticeWith(logger.Gas, "gas price %s clamped to configured maximum %s", price, e.cfg.MaxPrice)
		price.Set(e.cfg.MaxPrice)
	}

	quote := Quote{
		Price:           price,
		ObservedBaseFee: new(big.Int).Set(raw),
		Timestamp:       time.Now(),
	}
	e.record(quote)

	gwei, _ := new(big.Float).Quo(new(big.Float).SetInt(price), big.NewFloat(1e9)).Float64()
	metrics.GasPrice.Set(gwei)
	metrics.GasQuotes.Inc()
	e.logger.DebugWith(logger.Gas, "gas price estimated: %s wei (raw %s, multiplier %d%%)",
		price, raw, e.cfg.MultiplierPercent)

	return quote, nil
}

// EstimateLimit fetches a provider gas estimate for the described call and
// adds the fixed safety buffer.
func (e *Estimator) EstimateLimit(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	limit, err := e.provider.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return limit + e.cfg.LimitBuffer, nil
}

// record appends a quote to the history, evicting the oldest entry once the
// configured capacity is reached.
func (e *Estimator) record(quote Quote) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.history = append(e.history, quote)
	if len(e.history) > e.cfg.HistorySize {
		e.history = e.history[len(e.history)-e.cfg.HistorySize:]
	}
}

// History returns a copy of the recorded quotes, oldest first.
func (e *Estimator) History() []Quote {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Quote, len(e.history))
	copy(out, e.history)
	return out
}
