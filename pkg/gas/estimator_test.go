package gas

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider is a scripted FeeProvider.
type mockProvider struct {
	price    *big.Int
	priceErr error
	limit    uint64
	limitErr error
	calls    int
}

func (m *mockProvider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	m.calls++
	if m.priceErr != nil {
		return nil, m.priceErr
	}
	return new(big.Int).Set(m.price), nil
}

func (m *mockProvider) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if m.limitErr != nil {
		return 0, m.limitErr
	}
	return m.limit, nil
}

func testConfig() Config {
	return Config{
		MultiplierPercent: 120,
		MinPrice:          big.NewInt(1_000_000_000),   // 1 gwei
		MaxPrice:          big.NewInt(500_000_000_000), // 500 gwei
		LimitBuffer:       20_000,
		HistorySize:       5,
	}
}

func TestEstimateAppliesMultiplier(t *testing.T) {
	provider := &mockProvider{price: big.NewInt(10_000_000_000)} // 10 gwei
	e, err := NewEstimator(provider, testConfig(), nil)
	require.NoError(t, err)

	quote, err := e.Estimate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(12_000_000_000), quote.Price, "10 gwei * 1.20 = 12 gwei")
	assert.Equal(t, big.NewInt(10_000_000_000), quote.ObservedBaseFee)
	assert.False(t, quote.Timestamp.IsZero())
}

func TestEstimateIntegerArithmetic(t *testing.T) {
	// A multiplier that does not divide evenly must truncate, not round.
	provider := &mockProvider{price: big.NewInt(333)}
	cfg := testConfig()
	cfg.MinPrice = big.NewInt(0)
	e, err := NewEstimator(provider, cfg, nil)
	require.NoError(t, err)

	quote, err := e.Estimate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(399), quote.Price, "333 * 120 / 100 = 399")
}

func TestEstimateClampsToBounds(t *testing.T) {
	cfg := testConfig()

	low := &mockProvider{price: big.NewInt(100)}
	e, err := NewEstimator(low, cfg, nil)
	require.NoError(t, err)
	quote, err := e.Estimate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg.MinPrice, quote.Price, "raw quote below the floor clamps up")

	high := &mockProvider{price: new(big.Int).Mul(big.NewInt(1_000_000_000_000), big.NewInt(1000))}
	e, err = NewEstimator(high, cfg, nil)
	require.NoError(t, err)
	quote, err = e.Estimate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cfg.MaxPrice, quote.Price, "raw quote above the ceiling clamps down")
}

func TestEstimatePropagatesProviderError(t *testing.T) {
	wantErr := errors.New("connection refused")
	provider := &mockProvider{priceErr: wantErr}
	e, err := NewEstimator(provider, testConfig(), nil)
	require.NoError(t, err)

	_, err = e.Estimate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, wantErr)
	assert.Empty(t, e.History(), "failed fetches leave no history entry")
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	provider := &mockProvider{price: big.NewInt(10_000_000_000)}
	cfg := testConfig()
	cfg.HistorySize = 3
	e, err := NewEstimator(provider, cfg, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		provider.price = big.NewInt(int64(10_000_000_000 + i))
		_, err := e.Estimate(context.Background())
		require.NoError(t, err)
	}

	history := e.History()
	require.Len(t, history, 3, "history never exceeds its capacity")

	// The two oldest observations were evicted.
	for i, quote := range history {
		assert.Equal(t, big.NewInt(int64(10_000_000_000+i+2)), quote.ObservedBaseFee)
	}
}

func TestEstimateLimitAddsBuffer(t *testing.T) {
	provider := &mockProvider{limit: 21_000}
	e, err := NewEstimator(provider, testConfig(), nil)
	require.NoError(t, err)

	limit, err := e.EstimateLimit(context.Background(), ethereum.CallMsg{})
	require.NoError(t, err)
	assert.Equal(t, uint64(41_000), limit)
}

func TestEstimateLimitPropagatesError(t *testing.T) {
	wantErr := errors.New("execution reverted")
	provider := &mockProvider{limitErr: wantErr}
	e, err := NewEstimator(provider, testConfig(), nil)
	require.NoError(t, err)

	_, err = e.EstimateLimit(context.Background(), ethereum.CallMsg{})
	assert.ErrorIs(t, err, wantErr)
}

func TestNewEstimatorValidation(t *testing.T) {
	provider := &mockProvider{price: big.NewInt(1)}

	cfg := testConfig()
	cfg.MultiplierPercent = 0
	_, err := NewEstimator(provider, cfg, nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.MinPrice = nil
	_, err = NewEstimator(provider, cfg, nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.MinPrice, cfg.MaxPrice = cfg.MaxPrice, cfg.MinPrice
	_, err = NewEstimator(provider, cfg, nil)
	assert.Error(t, err)
}
