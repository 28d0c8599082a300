package audit

import (
	"sync"

	"github.com/decentraminds/osmosis-streaming-driver/internal/core"
)

// DefaultMemoryCapacity is the amount of entries kept by NewInMemoryAuditor.
const DefaultMemoryCapacity = 10_000

var _ core.QueryableAuditor = (*InMemoryAuditor)(nil)

// InMemoryAuditor is an auditor that stores the most recent audit logs in memory.
type InMemoryAuditor struct {
	mu       sync.Mutex
	entries  []core.AuditEntry
	capacity int
}

func NewInMemoryAuditor() *InMemoryAuditor {
	return NewInMemoryAuditorWithCapacity(DefaultMemoryCapacity)
}

func NewInMemoryAuditorWithCapacity(capacity int) *InMemoryAuditor {
	return &InMemoryAuditor{
		entries:  make([]core.AuditEntry, 0),
		capacity: capacity,
	}
}

func (i *InMemoryAuditor) Log(entry core.AuditEntry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries = append(i.entries, entry)
	if i.capacity > 0 && len(i.entries) > i.capacity {
		i.entries = i.entries[len(i.entries)-i.capacity:]
	}
	return nil
}

func (i *InMemoryAuditor) GetRecent(limit int) ([]core.AuditEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limit > len(i.entries) || limit < 0 {
		limit = len(i.entries)
	}
	start := len(i.entries) - limit
	entries := make([]core.AuditEntry, limit)
	copy(entries, i.entries[start:])

	return entries, nil
}

func (i *InMemoryAuditor) Find(filter func(entry core.AuditEntry) bool, limit int) ([]core.AuditEntry, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	var matches []core.AuditEntry
	for _, entry := range i.entries {
		if filter(entry) {
			matches = append(matches, entry)
		}
	}

	if len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}

	return matches, nil
}

func (i *InMemoryAuditor) Close() error {
	return nil // nothing to close :)
}
