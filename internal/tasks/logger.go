package tasks

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/decentraminds/osmosis-streaming-driver/internal/logging"
)

var _ logging.InternalLogger = (*TaskStoreLogger)(nil)

// TaskStoreLogger keeps log lines with the task so they can be listed later.
type TaskStoreLogger struct {
	Task *RunnableTask
}

func (t TaskStoreLogger) Debug(format string, args ...any) {
	t.Task.AppendLog("debug", fmt.Sprintf(format, args...))
}

func (t TaskStoreLogger) Info(format string, args ...any) {
	t.Task.AppendLog("info", fmt.Sprintf(format, args...))
}

func (t TaskStoreLogger) Warn(format string, args ...any) {
	t.Task.AppendLog("warn", fmt.Sprintf(format, args...))
}

func (t TaskStoreLogger) Error(format string, args ...any) {
	t.Task.AppendLog("error", fmt.Sprintf(format, args...))
}

// NewCompositeLogger logs to zerolog and to the task's own log buffer.
func NewCompositeLogger(task *RunnableTask, zlog zerolog.Logger) logging.MultiLogger {
	return logging.NewMultiLogger(
		logging.NewZLogger(zlog),
		TaskStoreLogger{Task: task},
	)
}
