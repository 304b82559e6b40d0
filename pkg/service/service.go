// Package service wires the bundler's components together and runs them.
package service

import (
	"context"
	"fmt"

	"github.com/atomiclaunch/bundler/pkg/alert"
	"github.com/atomiclaunch/bundler/pkg/bundle"
	"github.com/atomiclaunch/bundler/pkg/chainclient"
	"github.com/atomiclaunch/bundler/pkg/circuitbreaker"
	"github.com/atomiclaunch/bundler/pkg/config"
	"github.com/atomiclaunch/bundler/pkg/gas"
	"github.com/atomiclaunch/bundler/pkg/health"
	"github.com/atomiclaunch/bundler/pkg/logger"
	"github.com/atomiclaunch/bundler/pkg/relay"
	"github.com/atomiclaunch/bundler/pkg/retry"
	"github.com/atomiclaunch/bundler/pkg/tracker"
	"github.com/atomiclaunch/bundler/pkg/wallet"
)

// Service owns the bundler's collaborators for one account on one chain.
type Service struct {
	config       *config.Config
	logger       logger.Logger
	sink         *logger.FileSink
	chain        *chainclient.Client
	wallet       *wallet.Wallet
	estimator    *gas.Estimator
	breaker      *circuitbreaker.CircuitBreaker
	executor     *retry.Executor
	tracker      *tracker.Tracker
	relay        *relay.Client
	alerts       *alert.Dispatcher
	orchestrator *bundle.Orchestrator
	health       *health.Server
}

// NewService builds the full component graph from the configuration.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	stdLogger := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	var sink *logger.FileSink
	if cfg.LogDir != "" {
		var err error
		sink, err = logger.NewFileSink(cfg.LogDir, "bundler")
		if err != nil {
			return nil, fmt.Errorf("failed to open execution journal: %v", err)
		}
	}

	chain, err := chainclient.New(cfg.RPCURL, cfg.ProviderTimeout)
	if err != nil {
		return nil, err
	}

	chainID, err := chain.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id: %v", err)
	}
	stdLogger.Info("connected to %s (chain id %s)", cfg.RPCURL, chainID)

	w, err := wallet.New(cfg.PrivateKey, chainID)
	if err != nil {
		return nil, err
	}
	stdLogger.Info("bundle account: %s", w.Address().Hex())

	estimator, err := gas.NewEstimator(chain, gas.Config{
		MultiplierPercent: cfg.Gas.MultiplierPercent,
		MinPrice:          cfg.Gas.MinPrice,
		MaxPrice:          cfg.Gas.MaxPrice,
		LimitBuffer:       cfg.Gas.LimitBuffer,
		HistorySize:       cfg.Gas.HistorySize,
	}, stdLogger)
	if err != nil {
		return nil, err
	}

	breaker := circuitbreaker.NewCircuitBreaker(
		cfg.CircuitBreaker.Threshold,
		cfg.CircuitBreaker.ResetTimeout,
		cfg.CircuitBreaker.WindowDuration,
	)

	policy := retry.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		BaseDelay:       cfg.Retry.BaseDelay,
		MaxDelay:        cfg.Retry.MaxDelay,
		ExponentialBase: cfg.Retry.ExponentialBase,
		JitterFraction:  cfg.Retry.Jitter,
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %v", err)
	}
	executor := retry.NewExecutor(policy, breaker, stdLogger)

	trk := tracker.NewTracker(cfg.TrackerRetention, stdLogger)

	relayClient := relay.New(cfg.Relay.URL, cfg.Relay.AuthToken, cfg.Network, cfg.Relay.Timeout, stdLogger)

	var notifiers []alert.Notifier
	if cfg.Alerts.Enabled && cfg.Alerts.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewWebhookNotifier(cfg.Alerts.WebhookURL, cfg.Relay.Timeout))
	}
	if sink != nil {
		notifiers = append(notifiers, alert.NewLogNotifier(sink))
	}
	var alerts *alert.Dispatcher
	if len(notifiers) > 0 {
		alerts = alert.NewDispatcher(stdLogger, notifiers...)
	}

	orchestrator := bundle.NewOrchestrator(
		w.Address(),
		estimator,
		chain,
		relayClient,
		executor,
		trk,
		alerts,
		stdLogger,
		cfg.Relay.TargetBlockOffset,
		cfg.Relay.Builders,
	)

	return &Service{
		config:       cfg,
		logger:       stdLogger,
		sink:         sink,
		chain:        chain,
		wallet:       w,
		estimator:    estimator,
		breaker:      breaker,
		executor:     executor,
		tracker:      trk,
		relay:        relayClient,
		alerts:       alerts,
		orchestrator: orchestrator,
		health:       health.NewServer(cfg.MetricsPort, cfg.Network, chain, breaker, estimator, trk),
	}, nil
}

// Start runs the service. With a launch plan configured it submits the bundle
// once and returns its outcome; otherwise it serves health and metrics until
// the context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	go s.health.Start()

	if s.config.BundlePlan != "" {
		return s.runPlan(ctx)
	}

	s.logger.Info("no launch plan configured, serving health and metrics")
	<-ctx.Done()
	return nil
}

// runPlan loads the configured launch plan and drives it through the
// orchestrator.
func (s *Service) runPlan(ctx context.Context) error {
	plan, err := bundle.LoadPlan(s.config.BundlePlan)
	if err != nil {
		return err
	}

	steps, err := bundle.StepsFromPlan(plan, s.wallet, s.estimator)
	if err != nil {
		return err
	}

	result, err := s.orchestrator.Run(ctx, steps)
	if err != nil {
		return err
	}

	s.logger.Notice("bundle %s accepted as %s for block %d",
		result.BundleID, result.BundleHash, result.TargetBlock)
	return nil
}

// Close releases the service's connections.
func (s *Service) Close() {
	if s.chain != nil {
		s.chain.Close()
	}
	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			s.logger.Error("failed to close execution journal: %v", err)
		}
	}
}
