package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one structured execution journal entry.
type Record struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     string            `json:"level"`
	Component string            `json:"component,omitempty"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// FileSink appends one JSON record per line to a log file rotated by calendar
// day. A write failure is reported to the console and otherwise swallowed so
// journaling can never fail the calling operation.
type FileSink struct {
	dir    string
	prefix string

	mu      sync.Mutex
	file    *os.File
	curDay  string
	nowFunc func() time.Time
}

// NewFileSink creates a sink writing files named <prefix>-YYYY-MM-DD.log under dir.
func NewFileSink(dir, prefix string) (*FileSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("log directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}
	return &FileSink{
		dir:     dir,
		prefix:  prefix,
		nowFunc: time.Now,
	}, nil
}

// Append writes one record. Errors never propagate; they go to stderr only.
func (s *FileSink) Append(rec Record) {
	if s == nil {
		return
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.nowFunc()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureFile(rec.Timestamp); err != nil {
		fmt.Fprintf(os.Stderr, "log sink: %v\n", err)
		return
	}

	line, err := json.Marshal(rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log sink: failed to encode record: %v\n", err)
		return
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "log sink: failed to write record: %v\n", err)
	}
}

// ensureFile opens the file for the record's calendar day, rotating away from
// the previous day's file when the date changes. Caller must hold the mutex.
func (s *FileSink) ensureFile(ts time.Time) error {
	day := ts.Format("2006-01-02")
	if s.file != nil && day == s.curDay {
		return nil
	}

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s-%s.log", s.prefix, day))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", path, err)
	}
	s.file = file
	s.curDay = day
	return nil
}

// Close releases the current log file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
