package config

import (
	"fmt"
	"math/big"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atomiclaunch/bundler/pkg/logger"
)

const (
	mainnet = "mainnet"
	testnet = "testnet"

	// DefaultNetwork is the default network to submit bundles on
	DefaultNetwork = mainnet

	// DefaultProviderTimeout bounds a single chain node call in seconds
	DefaultProviderTimeout = 10

	// DefaultRelayTimeout bounds a single relay round trip in seconds
	DefaultRelayTimeout = 10

	// DefaultTargetBlockOffset is how many blocks past the head a bundle targets
	DefaultTargetBlockOffset = 5

	// DefaultGasMultiplierPercent is the fixed-point price multiplier (120 = 1.20x)
	DefaultGasMultiplierPercent = 120

	// DefaultMinGasPrice is the gas price floor in wei
	DefaultMinGasPrice = "1000000000" // 1 gwei

	// DefaultMaxGasPrice is the gas price ceiling in wei
	DefaultMaxGasPrice = "500000000000" // 500 gwei

	// DefaultGasLimitBuffer is the safety margin added to gas estimates
	DefaultGasLimitBuffer = 20000

	// DefaultGasHistorySize bounds the rolling gas quote history
	DefaultGasHistorySize = 100

	// DefaultRetryMaxAttempts is the attempt budget per operation
	DefaultRetryMaxAttempts = 3

	// DefaultRetryBaseDelay is the first backoff delay in milliseconds
	DefaultRetryBaseDelay = 1000

	// DefaultRetryMaxDelay caps the backoff delay in milliseconds
	DefaultRetryMaxDelay = 30000

	// DefaultRetryExponentialBase is the backoff growth factor
	DefaultRetryExponentialBase = 2.0

	// DefaultRetryJitter is the jitter fraction applied to backoff delays
	DefaultRetryJitter = 0.25

	// DefaultCircuitBreakerThreshold is the failures-in-window trip count
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerReset is the open-state recovery timeout in seconds
	DefaultCircuitBreakerReset = 60

	// DefaultCircuitBreakerWindow is the failure monitoring window in seconds
	DefaultCircuitBreakerWindow = 300

	// DefaultMetricsPort is the port for the metrics and health server
	DefaultMetricsPort = "8080"

	// DefaultTrackerRetention bounds the recent operation windows kept in memory
	DefaultTrackerRetention = 50
)

// GetEnvRPCURL returns the chain node RPC URL, which has no default.
func GetEnvRPCURL() (string, error) {
	rpcURL := os.Getenv("RPC_URL")
	if rpcURL == "" {
		return "", fmt.Errorf("RPC_URL is required")
	}
	if _, err := url.Parse(rpcURL); err != nil {
		return "", fmt.Errorf("invalid RPC_URL value: %s", rpcURL)
	}
	return rpcURL, nil
}

// GetEnvNetwork returns the configured network or defaults to mainnet.
func GetEnvNetwork() (string, error) {
	network := os.Getenv("NETWORK")
	if network == "" {
		network = DefaultNetwork
	}
	if network != mainnet && network != testnet {
		return "", fmt.Errorf("invalid NETWORK value: %s, must be 'mainnet' or 'testnet'", network)
	}
	return network, nil
}

// GetEnvPrivateKey returns the signing key. The service cannot run without it.
func GetEnvPrivateKey() (string, error) {
	key := os.Getenv("PRIVATE_KEY")
	if key == "" {
		return "", fmt.Errorf("PRIVATE_KEY is required")
	}
	return key, nil
}

// GetEnvProviderTimeout returns the chain node call timeout.
func GetEnvProviderTimeout() (time.Duration, error) {
	return getEnvSeconds("PROVIDER_TIMEOUT", DefaultProviderTimeout)
}

// GetEnvRelayURL returns the relay endpoint, which has no default.
func GetEnvRelayURL() (string, error) {
	relayURL := os.Getenv("RELAY_URL")
	if relayURL == "" {
		return "", fmt.Errorf("RELAY_URL is required")
	}
	if _, err := url.Parse(relayURL); err != nil {
		return "", fmt.Errorf("invalid RELAY_URL value: %s", relayURL)
	}
	return relayURL, nil
}

// GetEnvRelayAuthToken returns the optional relay bearer token.
func GetEnvRelayAuthToken() string {
	return os.Getenv("RELAY_AUTH_TOKEN")
}

// GetEnvRelayTimeout returns the relay round trip timeout.
func GetEnvRelayTimeout() (time.Duration, error) {
	return getEnvSeconds("RELAY_TIMEOUT", DefaultRelayTimeout)
}

// GetEnvTargetBlockOffset returns how far ahead of the head bundles target.
func GetEnvTargetBlockOffset() (uint64, error) {
	offset, err := getEnvInt("TARGET_BLOCK_OFFSET", DefaultTargetBlockOffset)
	if err != nil {
		return 0, err
	}
	if offset <= 0 {
		return 0, fmt.Errorf("TARGET_BLOCK_OFFSET must be greater than 0")
	}
	return uint64(offset), nil
}

// GetEnvBuilders returns the comma-separated builder list for submissions.
func GetEnvBuilders() []string {
	raw := os.Getenv("BUILDERS")
	if raw == "" {
		return nil
	}
	var builders []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			builders = append(builders, b)
		}
	}
	return builders
}

// GetEnvGasMultiplier returns the fixed-point gas price multiplier.
func GetEnvGasMultiplier() (int64, error) {
	multiplier, err := getEnvInt("GAS_MULTIPLIER", DefaultGasMultiplierPercent)
	if err != nil {
		return 0, err
	}
	if multiplier <= 0 {
		return 0, fmt.Errorf("GAS_MULTIPLIER must be greater than 0")
	}
	return int64(multiplier), nil
}

// GetEnvMinGasPrice returns the gas price floor in wei.
func GetEnvMinGasPrice() (*big.Int, error) {
	return getEnvBigInt("MIN_GAS_PRICE", DefaultMinGasPrice)
}

// GetEnvMaxGasPrice returns the gas price ceiling in wei.
func GetEnvMaxGasPrice() (*big.Int, error) {
	return getEnvBigInt("MAX_GAS_PRICE", DefaultMaxGasPrice)
}

// GetEnvGasLimitBuffer returns the gas estimate safety margin.
func GetEnvGasLimitBuffer() (uint64, error) {
	buffer, err := getEnvInt("GAS_LIMIT_BUFFER", DefaultGasLimitBuffer)
	if err != nil {
		return 0, err
	}
	if buffer < 0 {
		return 0, fmt.Errorf("GAS_LIMIT_BUFFER must not be negative")
	}
	return uint64(buffer), nil
}

// GetEnvGasHistorySize returns the rolling quote history capacity.
func GetEnvGasHistorySize() (int, error) {
	size, err := getEnvInt("GAS_HISTORY_SIZE", DefaultGasHistorySize)
	if err != nil {
		return 0, err
	}
	if size <= 0 {
		return 0, fmt.Errorf("GAS_HISTORY_SIZE must be greater than 0")
	}
	return size, nil
}

// GetEnvRetryMaxAttempts returns the attempt budget per operation.
func GetEnvRetryMaxAttempts() (int, error) {
	attempts, err := getEnvInt("RETRY_MAX_ATTEMPTS", DefaultRetryMaxAttempts)
	if err != nil {
		return 0, err
	}
	if attempts < 1 {
		return 0, fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	return attempts, nil
}

// GetEnvRetryBaseDelay returns the first backoff delay.
func GetEnvRetryBaseDelay() (time.Duration, error) {
	return getEnvMillis("RETRY_BASE_DELAY", DefaultRetryBaseDelay)
}

// GetEnvRetryMaxDelay returns the backoff delay cap.
func GetEnvRetryMaxDelay() (time.Duration, error) {
	return getEnvMillis("RETRY_MAX_DELAY", DefaultRetryMaxDelay)
}

// GetEnvRetryExponentialBase returns the backoff growth factor.
func GetEnvRetryExponentialBase() (float64, error) {
	raw := os.Getenv("RETRY_EXPONENTIAL_BASE")
	if raw == "" {
		return DefaultRetryExponentialBase, nil
	}
	base, err := strconv.ParseFloat(raw, 64)
	if err != nil || base <= 1 {
		return 0, fmt.Errorf("invalid RETRY_EXPONENTIAL_BASE value: %s, must be a number greater than 1", raw)
	}
	return base, nil
}

// GetEnvRetryJitter returns the jitter fraction for backoff delays.
func GetEnvRetryJitter() (float64, error) {
	raw := os.Getenv("RETRY_JITTER")
	if raw == "" {
		return DefaultRetryJitter, nil
	}
	jitter, err := strconv.ParseFloat(raw, 64)
	if err != nil || jitter < 0 || jitter >= 1 {
		return 0, fmt.Errorf("invalid RETRY_JITTER value: %s, must be in [0, 1)", raw)
	}
	return jitter, nil
}

// GetEnvCircuitBreakerThreshold returns the failure trip count.
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold, err := getEnvInt("CIRCUIT_BREAKER_THRESHOLD", DefaultCircuitBreakerThreshold)
	if err != nil {
		return 0, err
	}
	if threshold <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return threshold, nil
}

// GetEnvCircuitBreakerReset returns the open-state recovery timeout.
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	return getEnvSeconds("CIRCUIT_BREAKER_RESET", DefaultCircuitBreakerReset)
}

// GetEnvCircuitBreakerWindow returns the failure monitoring window.
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	return getEnvSeconds("CIRCUIT_BREAKER_WINDOW", DefaultCircuitBreakerWindow)
}

// GetEnvMetricsPort returns the metrics server port.
func GetEnvMetricsPort() (string, error) {
	port := os.Getenv("METRICS_PORT")
	if port == "" {
		return DefaultMetricsPort, nil
	}
	parsed, err := strconv.Atoi(port)
	if err != nil || parsed < 1 || parsed > 65535 {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid port number", port)
	}
	return port, nil
}

// GetEnvLogLevel returns the configured logging level.
func GetEnvLogLevel() (logger.Level, error) {
	raw := os.Getenv("LOG_LEVEL")
	switch strings.ToLower(raw) {
	case "":
		return logger.InfoLevel, nil
	case "debug":
		return logger.DebugLevel, nil
	case "info":
		return logger.InfoLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be debug, info, notice or error", raw)
	}
}

// GetEnvLogColoring returns whether console log coloring is enabled.
func GetEnvLogColoring() (bool, error) {
	return getEnvBool("LOG_COLORING", true)
}

// GetEnvLogDir returns the execution journal directory; empty disables it.
func GetEnvLogDir() string {
	return os.Getenv("LOG_DIR")
}

// GetEnvAlertsEnabled returns whether failure alerting is enabled.
func GetEnvAlertsEnabled() (bool, error) {
	return getEnvBool("ALERTS_ENABLED", false)
}

// GetEnvAlertWebhookURL returns the failure alert webhook endpoint.
func GetEnvAlertWebhookURL() (string, error) {
	webhookURL := os.Getenv("ALERT_WEBHOOK_URL")
	if webhookURL == "" {
		return "", nil
	}
	if _, err := url.Parse(webhookURL); err != nil {
		return "", fmt.Errorf("invalid ALERT_WEBHOOK_URL value: %s", webhookURL)
	}
	return webhookURL, nil
}

// GetEnvBundlePlan returns the launch plan file path; empty disables one-shot mode.
func GetEnvBundlePlan() string {
	return os.Getenv("BUNDLE_PLAN")
}

// GetEnvTrackerRetention returns the recent operation window size.
func GetEnvTrackerRetention() (int, error) {
	retention, err := getEnvInt("TRACKER_RETENTION", DefaultTrackerRetention)
	if err != nil {
		return 0, err
	}
	if retention <= 0 {
		return 0, fmt.Errorf("TRACKER_RETENTION must be greater than 0")
	}
	return retention, nil
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be an integer", key, raw)
	}
	return value, nil
}

func getEnvSeconds(key string, fallback int) (time.Duration, error) {
	value, err := getEnvInt(key, fallback)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return time.Duration(value) * time.Second, nil
}

func getEnvMillis(key string, fallback int) (time.Duration, error) {
	value, err := getEnvInt(key, fallback)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}
	return time.Duration(value) * time.Millisecond, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value: %s, must be a boolean", key, raw)
	}
	return value, nil
}

func getEnvBigInt(key, fallback string) (*big.Int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		raw = fallback
	}
	value, ok := new(big.Int).SetString(raw, 10)
	if !ok || value.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s value: %s, must be a non-negative integer in wei", key, raw)
	}
	return value, nil
}
