package tasks

import (
	"context"
	"time"

	"github.com/decentraminds/osmosis-streaming-driver/internal/logging"
)

// TaskFunc is the unit of work. Everything written to logger is kept with the task.
type TaskFunc func(ctx context.Context, logger logging.InternalLogger) error

type TaskDefinition struct {
	Name string

	// Interval is the time between two runs. Zero means manual trigger only.
	Interval time.Duration

	// Timeout bounds a single run. Zero uses DefaultTimeout.
	Timeout time.Duration

	Handler TaskFunc
}

type TaskStatus struct {
	Name       string    `json:"name"`
	Interval   string    `json:"interval,omitempty"`
	Running    bool      `json:"running,omitempty"`
	Runs       int       `json:"runs"`
	LastRun    time.Time `json:"last_run"`
	LastResult string    `json:"last_result,omitempty"`
	NextRun    time.Time `json:"next_run"`
}

type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level,omitempty"`
	Message string    `json:"message,omitempty"`
}
