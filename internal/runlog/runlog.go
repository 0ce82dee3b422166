// Package runlog provides a durable append-only journal of run outcomes:
// one JSON line per series failure plus the run summary. The journal is the
// audit trail operations reads after a partially failed run.
package runlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pricepally/demandcast/internal/api"
)

// Journal writes fsynced JSONL entries to a daily file.
type Journal struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// Entry is one journal line.
type Entry struct {
	Timestamp time.Time          `json:"ts"`
	RunID     string             `json:"run_id"`
	Kind      string             `json:"kind"` // "failure" or "summary"
	Failure   *api.FailureRecord `json:"failure,omitempty"`
	Summary   *api.RunSummary    `json:"summary,omitempty"`
}

// Open creates or appends to the journal file for today in dirPath.
func Open(dirPath string) (*Journal, error) {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	path := filepath.Join(dirPath, fmt.Sprintf("run-%s.jsonl", time.Now().Format("20060102")))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}

	return &Journal{file: file, path: path}, nil
}

// Failure records one series failure.
func (j *Journal) Failure(runID string, rec api.FailureRecord) error {
	return j.append(Entry{
		Timestamp: time.Now(),
		RunID:     runID,
		Kind:      "failure",
		Failure:   &rec,
	})
}

// Summary records the run-level summary.
func (j *Journal) Summary(summary *api.RunSummary) error {
	return j.append(Entry{
		Timestamp: time.Now(),
		RunID:     summary.RunID,
		Kind:      "summary",
		Summary:   summary,
	})
}

func (j *Journal) append(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	// fsync so failures survive a crash mid-run
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}
	return nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

// Close flushes and closes the journal.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.file.Sync(); err != nil {
		return err
	}
	return j.file.Close()
}

// Replay reads all entries from a journal file. Malformed lines are
// skipped.
func Replay(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}
