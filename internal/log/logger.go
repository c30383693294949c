// Package log provides the build event journal.
// This file appends JSON events to events.jsonl.
package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event type constants.
const (
	EventBuildStarted          = "build_started"
	EventBuildRunning          = "build_running"
	EventBuildFinished         = "build_finished"
	EventPublishFinished       = "publish_finished"
	EventPublishFailed         = "publish_failed"
	EventConversationStarted   = "conversation_started"
	EventConversationFinalized = "conversation_finalized"
	EventConversationCancelled = "conversation_cancelled"
	EventConversationExpired   = "conversation_expired"
	EventShutdownKillAll       = "shutdown_kill_all"
)

// LogEvent represents a single structured event written to the journal.
type LogEvent struct {
	Time       time.Time      `json:"time"`
	Event      string         `json:"event"`
	SessionID  string         `json:"session,omitempty"`
	User       string         `json:"user,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	WorkDir    string         `json:"work_dir,omitempty"`
	Model      string         `json:"model,omitempty"`
	State      string         `json:"state,omitempty"`
	ExitCode   int            `json:"exit_code,omitempty"`
	Pid        int            `json:"pid,omitempty"`
	Repo       string         `json:"repo,omitempty"`
	URL        string         `json:"url,omitempty"`
	Turns      int            `json:"turns,omitempty"`
	Count      int            `json:"count,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Logger writes append-only JSONL events to a journal file.
type Logger struct {
	path string
	mu   sync.Mutex
}

// NewLogger creates a Logger that writes to .slipway/events.jsonl inside dir.
// Creates the .slipway/ directory if it does not already exist.
// Does not truncate an existing journal.
func NewLogger(dir string) (*Logger, error) {
	stateDir := filepath.Join(dir, ".slipway")
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("create .slipway directory: %w", err)
	}

	return &Logger{
		path: filepath.Join(stateDir, "events.jsonl"),
	}, nil
}

// Path returns the journal file path.
func (l *Logger) Path() string { return l.path }

// Append writes a single LogEvent as one JSON line.
// A zero event.Time is set to time.Now().UTC().
func (l *Logger) Append(event LogEvent) error {
	if event.Time.IsZero() {
		event.Time = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal log event: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write log event: %w", err)
	}

	return nil
}

// ReadAll reads and parses all events from the journal.
// Returns an empty slice (not an error) if the file does not exist.
func (l *Logger) ReadAll() ([]LogEvent, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []LogEvent{}, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var events []LogEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event LogEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("parse journal line %d: %w", lineNum, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	return events, nil
}

// Tail returns the last n events, oldest first.
func (l *Logger) Tail(n int) ([]LogEvent, error) {
	events, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}
