package tracker

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/atomiclaunch/bundler/pkg/logger"
	"github.com/atomiclaunch/bundler/pkg/metrics"
)

// DefaultRetention bounds the most-recent windows kept for reporting.
const DefaultRetention = 50

// Status represents the lifecycle position of a tracked operation
type Status string

const (
	// StatusPending indicates the operation has started but not finished
	StatusPending Status = "pending"
	// StatusSuccess indicates the operation finished successfully
	StatusSuccess Status = "success"
	// StatusFailed indicates the operation finished with an error
	StatusFailed Status = "failed"
)

// Record tracks timing and outcome details about one operation. A record is
// in exactly one of the pending/success/failed collections at any time.
type Record struct {
	ID             string
	Status         Status
	Metadata       map[string]string
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	GasUsed        uint64
	EffectivePrice *big.Int
	Error          string
}

// Outcome describes how a tracked operation finished.
type Outcome struct {
	Success        bool
	GasUsed        uint64
	EffectivePrice *big.Int
	Err            error
}

// Metrics is the aggregate view over all finished records.
type Metrics struct {
	TotalCount      int
	SuccessCount    int
	FailedCount     int
	PendingCount    int
	TotalGasUsed    uint64
	TotalFeePaid    *big.Int
	AveragePrice    *big.Int
	AverageDuration time.Duration
	SuccessRate     float64
}

// Report is a point-in-time snapshot of aggregates plus the bounded
// most-recent windows of completed and failed records.
type Report struct {
	Metrics         Metrics
	RecentCompleted []Record
	RecentFailed    []Record
}

// Tracker records per-operation timing and outcome and derives aggregate
// metrics on demand. All mutations go through Start/Finish behind one mutex.
type Tracker struct {
	retention int
	logger    logger.Logger

	mu            sync.Mutex
	pending       map[string]*Record
	completed     []Record
	failed        []Record
	successCount  int
	failedCount   int
	totalGasUsed  uint64
	totalFeePaid  *big.Int
	totalDuration time.Duration
}

// NewTracker creates a tracker keeping up to retention finished records per
// outcome for recent views.
func NewTracker(retention int, log logger.Logger) *Tracker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Tracker{
		retention:    retention,
		logger:       log,
		pending:      make(map[string]*Record),
		totalFeePaid: new(big.Int),
	}
}

// Start creates a pending record for the operation. Starting an id that is
// already pending is an error and leaves the existing record untouched.
func (t *Tracker) Start(id string, metadata map[string]string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.pending[id]; exists {
		return fmt.Errorf("operation %s is already being tracked", id)
	}

	t.pending[id] = &Record{
		ID:        id,
		Status:    StatusPending,
		Metadata:  metadata,
		StartTime: time.Now(),
	}
	metrics.TrackedOperations.WithLabelValues(string(StatusPending)).Set(float64(len(t.pending)))
	t.logger.DebugWith(logger.Track, "tracking operation %s", id)
	return nil
}

// Finish moves a pending record to success or failed and updates the running
// aggregates. Gas and fee totals accumulate only on success.
func (t *Tracker) Finish(id string, outcome Outcome) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, exists := t.pending[id]
	if !exists {
		return fmt.Errorf("no pending operation with id %s", id)
	}
	delete(t.pending, id)

	rec.EndTime = time.Now()
	rec.Duration = rec.EndTime.Sub(rec.StartTime)
	rec.GasUsed = outcome.GasUsed
	if outcome.EffectivePrice != nil {
		rec.EffectivePrice = new(big.Int).Set(outcome.EffectivePrice)
	}
	t.totalDuration += rec.Duration

	if outcome.Success {
		rec.Status = StatusSuccess
		t.successCount++
		t.totalGasUsed += outcome.GasUsed
		if outcome.EffectivePrice != nil && outcome.GasUsed > 0 {
			fee := new(big.Int).Mul(outcome.EffectivePrice, new(big.Int).SetUint64(outcome.GasUsed))
			t.totalFeePaid.Add(t.totalFeePaid, fee)
		}
		t.completed = appendBounded(t.completed, *rec, t.retention)
		t.logger.InfoWith(logger.Track, "operation %s succeeded in %v (gas used: %d)",
			id, rec.Duration, rec.GasUsed)
	} else {
		rec.Status = StatusFailed
		if outcome.Err != nil {
			rec.Error = outcome.Err.Error()
		}
		t.failedCount++
		t.failed = appendBounded(t.failed, *rec, t.retention)
		t.logger.InfoWith(logger.Track, "operation %s failed in %v: %s", id, rec.Duration, rec.Error)
	}

	metrics.TrackedOperations.WithLabelValues(string(StatusPending)).Set(float64(len(t.pending)))
	metrics.TrackedOperations.WithLabelValues(string(StatusSuccess)).Set(float64(t.successCount))
	metrics.TrackedOperations.WithLabelValues(string(StatusFailed)).Set(float64(t.failedCount))
	return nil
}

// Report returns a snapshot of the aggregate metrics and the recent windows.
func (t *Tracker) Report() Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	finished := t.successCount + t.failedCount
	m := Metrics{
		TotalCount:   finished + len(t.pending),
		SuccessCount: t.successCount,
		FailedCount:  t.failedCount,
		PendingCount: len(t.pending),
		TotalGasUsed: t.totalGasUsed,
		TotalFeePaid: new(big.Int).Set(t.totalFeePaid),
		AveragePrice: new(big.Int),
	}
	if t.totalGasUsed > 0 {
		m.AveragePrice.Div(t.totalFeePaid, new(big.Int).SetUint64(t.totalGasUsed))
	}
	if finished > 0 {
		m.AverageDuration = t.totalDuration / time.Duration(finished)
		m.SuccessRate = float64(t.successCount) / float64(finished)
	}

	return Report{
		Metrics:         m,
		RecentCompleted: copyRecords(t.completed),
		RecentFailed:    copyRecords(t.failed),
	}
}

// appendBounded appends a record evicting the oldest entry past the cap.
func appendBounded(records []Record, rec Record, cap int) []Record {
	records = append(records, rec)
	if len(records) > cap {
		records = records[len(records)-cap:]
	}
	return records
}

func copyRecords(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	return out
}
