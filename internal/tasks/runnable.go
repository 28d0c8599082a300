package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultTimeout = time.Minute

type RunnableTask struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Handler  TaskFunc

	registeredAt time.Time

	mu         sync.RWMutex
	Running    bool
	Runs       int
	LastRun    time.Time
	LastResult string
	Logs       []LogEntry
}

// Run executes the handler unless the task is already running.
func (t *RunnableTask) Run(ctx context.Context) {
	l := log.With().Str("task", t.Name).Logger()

	t.mu.Lock()
	if t.Running {
		t.mu.Unlock()
		l.Warn().Msg("task is already running, skipping execution")
		return
	}
	t.Running = true
	t.Logs = make([]LogEntry, 0)
	t.mu.Unlock()

	taskLogger := NewCompositeLogger(t, l)
	taskLogger.Debug("starting task execution")

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := t.Handler(ctx, taskLogger)
	duration := time.Since(start)

	t.mu.Lock()
	t.Running = false
	t.Runs++
	t.LastRun = start
	if err != nil {
		t.LastResult = fmt.Sprintf("failed: %v", err)
	} else {
		t.LastResult = "success"
	}
	t.mu.Unlock()

	if err != nil {
		taskLogger.Error("task failed after %s: %v", duration, err)
	} else {
		taskLogger.Debug("task completed in %s", duration)
	}
}

func (t *RunnableTask) Status() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var next time.Time
	if t.Interval > 0 {
		if t.LastRun.IsZero() {
			next = t.registeredAt.Add(t.Interval)
		} else {
			next = t.LastRun.Add(t.Interval)
		}
	}

	return TaskStatus{
		Name:       t.Name,
		Interval:   t.Interval.String(),
		Running:    t.Running,
		Runs:       t.Runs,
		LastRun:    t.LastRun,
		LastResult: t.LastResult,
		NextRun:    next,
	}
}

func (t *RunnableTask) GetLogs() []LogEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cpy := make([]LogEntry, len(t.Logs))
	copy(cpy, t.Logs)
	return cpy
}

func (t *RunnableTask) AppendLog(level, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Logs = append(t.Logs, LogEntry{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
	})
	if len(t.Logs) > MaxLogsPerTask {
		t.Logs = t.Logs[len(t.Logs)-MaxLogsPerTask:]
	}
}
