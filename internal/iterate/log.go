package iterate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"epd-tuner/internal/fix"
	"epd-tuner/internal/layout"
)

// Status values recorded per iteration.
const (
	StatusStarted      = "started"
	StatusPerfect      = "complete_perfect"
	StatusImproved     = "complete_improved"
	StatusManualNeeded = "complete_manual_needed"
	StatusFailedFlash  = "failed_flash"
)

// Record is one iteration of the feedback loop. Appended records are never
// mutated.
type Record struct {
	Iteration int              `json:"iteration"`
	Timestamp time.Time        `json:"timestamp"`
	Status    string           `json:"status"`
	Analysis  *layout.Analysis `json:"analysis,omitempty"`
	Fixes     []fix.Directive  `json:"fixes"`
	Outcomes  []fix.Outcome    `json:"outcomes,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Log is the ordered iteration history. The controller owns its lifecycle:
// load at startup, append per iteration, persist after each append.
type Log struct {
	path    string
	entries []Record
}

// LoadLog reads the iteration history at path. A missing file is an empty
// log, not an error.
func LoadLog(path string) (*Log, error) {
	l := &Log{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read iteration log: %w", err)
	}
	if err := json.Unmarshal(data, &l.entries); err != nil {
		return nil, fmt.Errorf("failed to parse iteration log: %w", err)
	}
	return l, nil
}

// Len returns the number of recorded iterations.
func (l *Log) Len() int { return len(l.entries) }

// Entries returns the recorded iterations, oldest first.
func (l *Log) Entries() []Record { return l.entries }

// Path returns the backing file path.
func (l *Log) Path() string { return l.path }

// NextIteration returns the 1-based number of the iteration about to run.
// Numbers stay strictly monotonic across process restarts.
func (l *Log) NextIteration() int { return len(l.entries) + 1 }

// Append adds one record and rewrites the whole file before returning, so
// a crash never loses more than the in-flight iteration.
func (l *Log) Append(r Record) error {
	l.entries = append(l.entries, r)
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal iteration log: %w", err)
	}
	return os.WriteFile(l.path, data, 0644)
}
