package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/decentraminds/osmosis-streaming-driver/internal/logging"
)

type countingEvicter struct {
	calls atomic.Int32
	n     int
}

func (c *countingEvicter) EvictExpired() int {
	c.calls.Add(1)
	return c.n
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManager_TriggerAndLogs(t *testing.T) {
	m := NewManager(context.Background())
	t.Cleanup(m.Stop)

	ev := &countingEvicter{n: 3}
	m.Register(EvictionTask(ev, 0))

	if err := m.Trigger(EvictionTaskName); err != nil {
		t.Fatalf("Trigger() unexpected error: %v", err)
	}
	waitFor(t, func() bool {
		status := m.ListStatus()
		return len(status) == 1 && status[0].Runs == 1 && !status[0].Running
	})

	status := m.ListStatus()[0]
	if status.LastResult != "success" {
		t.Errorf("LastResult = %q, want success", status.LastResult)
	}
	if !status.NextRun.IsZero() {
		t.Errorf("NextRun = %v, want zero for manual task", status.NextRun)
	}

	logs, err := m.GetLogs(EvictionTaskName)
	if err != nil {
		t.Fatalf("GetLogs() unexpected error: %v", err)
	}
	var found bool
	for _, entry := range logs {
		if entry.Level == "info" && entry.Message == "evicted 3 expired token(s)" {
			found = true
		}
	}
	if !found {
		t.Errorf("eviction log line missing in %+v", logs)
	}
}

func TestManager_Scheduler(t *testing.T) {
	m := NewManager(context.Background())

	ev := &countingEvicter{}
	m.Register(EvictionTask(ev, 10*time.Millisecond))

	waitFor(t, func() bool { return ev.calls.Load() >= 2 })
	m.Stop()

	calls := ev.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if got := ev.calls.Load(); got != calls {
		t.Errorf("task ran %d more times after Stop", got-calls)
	}
}

func TestManager_UnknownTask(t *testing.T) {
	m := NewManager(context.Background())
	t.Cleanup(m.Stop)

	var notFound TaskNotFoundError
	if err := m.Trigger("nope"); !errors.As(err, &notFound) {
		t.Errorf("Trigger() error = %v, want TaskNotFoundError", err)
	}
	if _, err := m.GetLogs("nope"); !errors.As(err, &notFound) {
		t.Errorf("GetLogs() error = %v, want TaskNotFoundError", err)
	}
}

func TestRunnableTask_FailureAndOverlap(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32
	task := &RunnableTask{
		Name: "blocking",
		Handler: func(ctx context.Context, _ logging.InternalLogger) error {
			runs.Add(1)
			<-release
			return errors.New("boom")
		},
	}

	done := make(chan struct{})
	go func() {
		task.Run(context.Background())
		close(done)
	}()
	waitFor(t, func() bool { return task.Status().Running })

	// second run is skipped while the first one is in progress
	task.Run(context.Background())
	close(release)
	<-done

	if got := runs.Load(); got != 1 {
		t.Errorf("handler ran %d times, want 1", got)
	}
	if got := task.Status().LastResult; got != "failed: boom" {
		t.Errorf("LastResult = %q, want %q", got, "failed: boom")
	}
}
