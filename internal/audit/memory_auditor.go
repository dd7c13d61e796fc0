package audit

import (
	"sync"

	"github.com/keylease/keylease/internal/core"
)

var _ core.QueryableAuditor = (*InMemoryAuditor)(nil)

// InMemoryAuditor keeps audit events in memory. It backs the admin audit
// API and tests.
type InMemoryAuditor struct {
	mu     sync.Mutex
	events []core.AuditEvent
}

func NewInMemoryAuditor() *InMemoryAuditor {
	return &InMemoryAuditor{
		events: make([]core.AuditEvent, 0),
	}
}

func (i *InMemoryAuditor) Log(event core.AuditEvent) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.events = append(i.events, event)
	return nil
}

func (i *InMemoryAuditor) Recent(limit int) ([]core.AuditEvent, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if limit > len(i.events) {
		limit = len(i.events)
	}
	start := len(i.events) - limit
	events := make([]core.AuditEvent, limit)
	copy(events, i.events[start:])

	return events, nil
}

func (i *InMemoryAuditor) Find(filter func(event core.AuditEvent) bool, limit int) ([]core.AuditEvent, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	var matches []core.AuditEvent
	for _, event := range i.events {
		if filter(event) {
			matches = append(matches, event)
		}
	}

	if len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}

	return matches, nil
}

func (i *InMemoryAuditor) Close() error {
	return nil
}
