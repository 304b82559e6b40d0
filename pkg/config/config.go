// Package config loads the service configuration from environment variables.
package config

import (
	"log"
	"math/big"
	"time"

	"github.com/atomiclaunch/bundler/pkg/logger"
	"github.com/joho/godotenv"
)

// Config holds the configuration for the bundler service
type Config struct {
	RPCURL           string
	Network          string
	PrivateKey       string
	ProviderTimeout  time.Duration
	Relay            RelayConfig
	Gas              GasConfig
	Retry            RetryConfig
	CircuitBreaker   CircuitBreakerConfig
	MetricsPort      string
	LoggerConfig     LoggerConfig
	LogDir           string
	Alerts           AlertConfig
	BundlePlan       string
	TrackerRetention int
}

// RelayConfig holds the bundle relay configuration
type RelayConfig struct {
	URL               string
	AuthToken         string
	Timeout           time.Duration
	TargetBlockOffset uint64
	Builders          []string
}

// GasConfig holds the gas price estimation configuration
type GasConfig struct {
	MultiplierPercent int64
	MinPrice          *big.Int
	MaxPrice          *big.Int
	LimitBuffer       uint64
	HistorySize       int
}

// RetryConfig holds the retry policy configuration
type RetryConfig struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          float64
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Threshold      int
	ResetTimeout   time.Duration
	WindowDuration time.Duration
}

// AlertConfig holds failure alerting configuration
type AlertConfig struct {
	Enabled    bool
	WebhookURL string
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	rpcURL, err := GetEnvRPCURL()
	if err != nil {
		return nil, err
	}

	network, err := GetEnvNetwork()
	if err != nil {
		return nil, err
	}

	privateKey, err := GetEnvPrivateKey()
	if err != nil {
		return nil, err
	}

	providerTimeout, err := GetEnvProviderTimeout()
	if err != nil {
		return nil, err
	}

	relayURL, err := GetEnvRelayURL()
	if err != nil {
		return nil, err
	}

	relayTimeout, err := GetEnvRelayTimeout()
	if err != nil {
		return nil, err
	}

	blockOffset, err := GetEnvTargetBlockOffset()
	if err != nil {
		return nil, err
	}

	gasMultiplier, err := GetEnvGasMultiplier()
	if err != nil {
		return nil, err
	}

	minGasPrice, err := GetEnvMinGasPrice()
	if err != nil {
		return nil, err
	}

	maxGasPrice, err := GetEnvMaxGasPrice()
	if err != nil {
		return nil, err
	}

	gasLimitBuffer, err := GetEnvGasLimitBuffer()
	if err != nil {
		return nil, err
	}

	gasHistorySize, err := GetEnvGasHistorySize()
	if err != nil {
		return nil, err
	}

	retryMaxAttempts, err := GetEnvRetryMaxAttempts()
	if err != nil {
		return nil, err
	}

	retryBaseDelay, err := GetEnvRetryBaseDelay()
	if err != nil {
		return nil, err
	}

	retryMaxDelay, err := GetEnvRetryMaxDelay()
	if err != nil {
		return nil, err
	}

	retryExponentialBase, err := GetEnvRetryExponentialBase()
	if err != nil {
		return nil, err
	}

	retryJitter, err := GetEnvRetryJitter()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	alertsEnabled, err := GetEnvAlertsEnabled()
	if err != nil {
		return nil, err
	}

	alertWebhookURL, err := GetEnvAlertWebhookURL()
	if err != nil {
		return nil, err
	}

	trackerRetention, err := GetEnvTrackerRetention()
	if err != nil {
		return nil, err
	}

	return &Config{
		RPCURL:          rpcURL,
		Network:         network,
		PrivateKey:      privateKey,
		ProviderTimeout: providerTimeout,
		Relay: RelayConfig{
			URL:               relayURL,
			AuthToken:         GetEnvRelayAuthToken(),
			Timeout:           relayTimeout,
			TargetBlockOffset: blockOffset,
			Builders:          GetEnvBuilders(),
		},
		Gas: GasConfig{
			MultiplierPercent: gasMultiplier,
			MinPrice:          minGasPrice,
			MaxPrice:          maxGasPrice,
			LimitBuffer:       gasLimitBuffer,
			HistorySize:       gasHistorySize,
		},
		Retry: RetryConfig{
			MaxAttempts:     retryMaxAttempts,
			BaseDelay:       retryBaseDelay,
			MaxDelay:        retryMaxDelay,
			ExponentialBase: retryExponentialBase,
			Jitter:          retryJitter,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Threshold:      cbThreshold,
			ResetTimeout:   cbReset,
			WindowDuration: cbWindow,
		},
		MetricsPort: metricsPort,
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
		LogDir: GetEnvLogDir(),
		Alerts: AlertConfig{
			Enabled:    alertsEnabled,
			WebhookURL: alertWebhookURL,
		},
		BundlePlan:       GetEnvBundlePlan(),
		TrackerRetention: trackerRetention,
	}, nil
}
