package tasks

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

const MaxLogsPerTask = 500

// Manager runs named tasks on an interval and on demand.
type Manager struct {
	tasks sync.Map

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager returns a manager whose schedulers stop when ctx is done or Stop is called.
func NewManager(ctx context.Context) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
	}
}

func (m *Manager) Register(def TaskDefinition) {
	task := &RunnableTask{
		Name:         def.Name,
		Interval:     def.Interval,
		Timeout:      def.Timeout,
		Handler:      def.Handler,
		registeredAt: time.Now(),
		Logs:         make([]LogEntry, 0),
	}
	m.tasks.Store(def.Name, task)

	if def.Interval > 0 {
		m.wg.Add(1)
		go m.scheduler(task)
	}
}

func (m *Manager) Trigger(name string) error {
	task, err := m.get(name)
	if err != nil {
		return err
	}
	go task.Run(m.ctx)
	return nil
}

func (m *Manager) ListStatus() []TaskStatus {
	list := make([]TaskStatus, 0)
	m.tasks.Range(func(_, value any) bool {
		list = append(list, value.(*RunnableTask).Status())
		return true
	})
	slices.SortFunc(list, func(a, b TaskStatus) int {
		return strings.Compare(a.Name, b.Name)
	})
	return list
}

func (m *Manager) GetLogs(name string) ([]LogEntry, error) {
	task, err := m.get(name)
	if err != nil {
		return nil, err
	}
	return task.GetLogs(), nil
}

// Stop cancels all schedulers and waits for them to return.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) get(name string) (*RunnableTask, error) {
	t, ok := m.tasks.Load(name)
	if !ok {
		return nil, TaskNotFoundError{Name: name}
	}
	return t.(*RunnableTask), nil
}

func (m *Manager) scheduler(task *RunnableTask) {
	defer m.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			task.Run(m.ctx)
		}
	}
}
