package tracker

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartDuplicateID(t *testing.T) {
	tr := NewTracker(10, nil)

	require.NoError(t, tr.Start("op-1", nil))
	err := tr.Start("op-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already being tracked")

	report := tr.Report()
	assert.Equal(t, 1, report.Metrics.PendingCount, "the original record survives the duplicate")
}

func TestFinishUnknownID(t *testing.T) {
	tr := NewTracker(10, nil)

	err := tr.Finish("missing", Outcome{Success: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pending operation")
}

func TestFinishSuccessAccumulatesGasAndFees(t *testing.T) {
	tr := NewTracker(10, nil)

	require.NoError(t, tr.Start("op-1", map[string]string{"step": "swap"}))
	require.NoError(t, tr.Finish("op-1", Outcome{
		Success:        true,
		GasUsed:        21_000,
		EffectivePrice: big.NewInt(2_000_000_000),
	}))

	report := tr.Report()
	m := report.Metrics
	assert.Equal(t, 1, m.SuccessCount)
	assert.Equal(t, 0, m.FailedCount)
	assert.Equal(t, 0, m.PendingCount)
	assert.Equal(t, uint64(21_000), m.TotalGasUsed)
	assert.Equal(t, new(big.Int).Mul(big.NewInt(21_000), big.NewInt(2_000_000_000)), m.TotalFeePaid)
	assert.Equal(t, big.NewInt(2_000_000_000), m.AveragePrice)
	assert.Equal(t, 1.0, m.SuccessRate)

	require.Len(t, report.RecentCompleted, 1)
	rec := report.RecentCompleted[0]
	assert.Equal(t, StatusSuccess, rec.Status)
	assert.Equal(t, "swap", rec.Metadata["step"])
	assert.False(t, rec.EndTime.Before(rec.StartTime))
}

func TestFinishFailureExcludedFromGasTotals(t *testing.T) {
	tr := NewTracker(10, nil)

	require.NoError(t, tr.Start("op-1", nil))
	require.NoError(t, tr.Finish("op-1", Outcome{
		Success:        false,
		GasUsed:        50_000,
		EffectivePrice: big.NewInt(1_000_000_000),
		Err:            errors.New("execution reverted"),
	}))

	report := tr.Report()
	m := report.Metrics
	assert.Equal(t, 0, m.SuccessCount)
	assert.Equal(t, 1, m.FailedCount)
	assert.Equal(t, uint64(0), m.TotalGasUsed, "failed operations contribute no gas")
	assert.Equal(t, 0, m.TotalFeePaid.Sign())
	assert.Equal(t, 0.0, m.SuccessRate)

	require.Len(t, report.RecentFailed, 1)
	assert.Equal(t, "execution reverted", report.RecentFailed[0].Error)
}

func TestReportAveragePriceGuardsZeroGas(t *testing.T) {
	tr := NewTracker(10, nil)

	// A success with zero gas used must not divide by zero.
	require.NoError(t, tr.Start("op-1", nil))
	require.NoError(t, tr.Finish("op-1", Outcome{Success: true}))

	m := tr.Report().Metrics
	assert.Equal(t, 0, m.AveragePrice.Sign())
	assert.Equal(t, 1.0, m.SuccessRate)
}

func TestSuccessRateMixedOutcomes(t *testing.T) {
	tr := NewTracker(10, nil)

	for i, ok := range []bool{true, true, false, true} {
		id := string(rune('a' + i))
		require.NoError(t, tr.Start(id, nil))
		require.NoError(t, tr.Finish(id, Outcome{Success: ok}))
	}

	m := tr.Report().Metrics
	assert.Equal(t, 3, m.SuccessCount)
	assert.Equal(t, 1, m.FailedCount)
	assert.InDelta(t, 0.75, m.SuccessRate, 1e-9)
}

func TestRecentWindowsAreBounded(t *testing.T) {
	tr := NewTracker(3, nil)

	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		require.NoError(t, tr.Start(id, nil))
		require.NoError(t, tr.Finish(id, Outcome{Success: true, GasUsed: 1}))
	}

	report := tr.Report()
	require.Len(t, report.RecentCompleted, 3, "window keeps only the newest records")
	assert.Equal(t, "c", report.RecentCompleted[0].ID)
	assert.Equal(t, "e", report.RecentCompleted[2].ID)

	// Aggregates still cover everything that ever finished.
	assert.Equal(t, 5, report.Metrics.SuccessCount)
	assert.Equal(t, uint64(5), report.Metrics.TotalGasUsed)
}

func TestReportSnapshotIsIsolated(t *testing.T) {
	tr := NewTracker(10, nil)

	require.NoError(t, tr.Start("op-1", nil))
	require.NoError(t, tr.Finish("op-1", Outcome{Success: true, GasUsed: 100, EffectivePrice: big.NewInt(10)}))

	report := tr.Report()
	report.Metrics.TotalFeePaid.SetInt64(0)
	report.RecentCompleted[0].ID = "mutated"

	fresh := tr.Report()
	assert.Equal(t, big.NewInt(1000), fresh.Metrics.TotalFeePaid)
	assert.Equal(t, "op-1", fresh.RecentCompleted[0].ID)
}
