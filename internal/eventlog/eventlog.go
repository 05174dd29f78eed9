// Package eventlog implements the on-disk contract of spec.md §4.5/§6:
// a per-task JSON snapshot (tasks/<task_id>.json) and an append-only
// newline-delimited event log (events/<task_id>.jsonl), with a Replay
// helper that reproduces a Task from nothing but the log.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/riverglen/coursecraft/internal/domain"
	"github.com/riverglen/coursecraft/internal/reducer"
)

// Log owns the on-disk layout under root: root/tasks/*.json and
// root/events/*.jsonl.
type Log struct {
	root string
	mu   sync.Mutex
}

func New(root string) (*Log, error) {
	if root == "" {
		root = "."
	}
	if err := os.MkdirAll(filepath.Join(root, "tasks"), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(root, "events"), 0o755); err != nil {
		return nil, err
	}
	return &Log{root: root}, nil
}

func (l *Log) snapshotPath(taskID string) string {
	return filepath.Join(l.root, "tasks", taskID+".json")
}

func (l *Log) eventsPath(taskID string) string {
	return filepath.Join(l.root, "events", taskID+".jsonl")
}

// Append writes event to the task's event log and overwrites its snapshot
// with task. Both operations happen synchronously inside the caller's
// mutation path (spec.md §5: "disk append is synchronous... ordering
// guarantee").
func (l *Log) Append(task *domain.Task, event domain.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.eventsPath(task.TaskID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("eventlog: open events file: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("eventlog: marshal event: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("eventlog: append event: %w", err)
	}

	snapshot, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return fmt.Errorf("eventlog: marshal snapshot: %w", err)
	}
	if err := os.WriteFile(l.snapshotPath(task.TaskID), snapshot, 0o644); err != nil {
		return fmt.Errorf("eventlog: write snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the latest persisted snapshot for taskID, or
// (nil, nil) if none exists.
func (l *Log) LoadSnapshot(taskID string) (*domain.Task, error) {
	b, err := os.ReadFile(l.snapshotPath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var task domain.Task
	if err := json.Unmarshal(b, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// LoadEvents returns every event appended for taskID, in log order.
func (l *Log) LoadEvents(taskID string) ([]domain.Event, error) {
	f, err := os.Open(l.eventsPath(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var events []domain.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e domain.Event
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("eventlog: decode event line: %w", err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Replay rebuilds a Task by feeding every event for taskID through the
// reducer in order, starting from nil (spec.md §8.6).
func (l *Log) Replay(taskID string) (*domain.Task, error) {
	events, err := l.LoadEvents(taskID)
	if err != nil {
		return nil, err
	}
	var task *domain.Task
	for _, e := range events {
		task = reducer.Reduce(task, e)
	}
	return task, nil
}
