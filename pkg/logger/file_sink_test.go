package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSinkAppendsJSONRecords(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir, "bundler")
	require.NoError(t, err)
	defer sink.Close()

	day := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	sink.nowFunc = func() time.Time { return day }

	sink.Append(Record{Level: "info", Component: "bundle", Message: "assembled", Fields: map[string]string{"steps": "8"}})
	sink.Append(Record{Level: "error", Message: "relay rejected"})

	path := filepath.Join(dir, "bundler-2026-03-14.log")
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}

	require.Len(t, records, 2)
	assert.Equal(t, "assembled", records[0].Message)
	assert.Equal(t, "8", records[0].Fields["steps"])
	assert.Equal(t, "error", records[1].Level)
}

func TestFileSinkRotatesByCalendarDay(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir, "bundler")
	require.NoError(t, err)
	defer sink.Close()

	now := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	sink.nowFunc = func() time.Time { return now }
	sink.Append(Record{Level: "info", Message: "before midnight"})

	now = now.Add(2 * time.Minute)
	sink.Append(Record{Level: "info", Message: "after midnight"})

	_, err = os.Stat(filepath.Join(dir, "bundler-2026-03-14.log"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "bundler-2026-03-15.log"))
	assert.NoError(t, err)
}

func TestFileSinkRequiresDirectory(t *testing.T) {
	_, err := NewFileSink("", "bundler")
	assert.Error(t, err)
}

func TestNilFileSinkIsSafe(t *testing.T) {
	var sink *FileSink
	assert.NotPanics(t, func() {
		sink.Append(Record{Message: "ignored"})
	})
}
