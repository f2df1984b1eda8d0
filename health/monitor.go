package health

import (
	"sync"
)

// Reporter is implemented by anything that can describe its own health
type Reporter interface {
	Health() Status
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func() Status

// Health calls f
func (f ReporterFunc) Health() Status { return f() }

// Monitor polls registered reporters on demand. Safe for concurrent use.
type Monitor struct {
	mu        sync.RWMutex
	reporters map[string]Reporter
}

// NewMonitor creates an empty monitor
func NewMonitor() *Monitor {
	return &Monitor{reporters: make(map[string]Reporter)}
}

// Register adds or replaces the reporter for name
func (m *Monitor) Register(name string, r Reporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporters[name] = r
}

// Remove drops the reporter for name
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reporters, name)
}

// Get polls a single reporter
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	r, ok := m.reporters[name]
	m.mu.RUnlock()
	if !ok {
		return Status{}, false
	}
	return m.poll(name, r), true
}

// Count returns the number of registered reporters
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reporters)
}

// Aggregate polls every reporter and folds the results under systemName
func (m *Monitor) Aggregate(systemName string) Status {
	m.mu.RLock()
	reporters := make(map[string]Reporter, len(m.reporters))
	for name, r := range m.reporters {
		reporters[name] = r
	}
	m.mu.RUnlock()

	subs := make([]Status, 0, len(reporters))
	for name, r := range reporters {
		subs = append(subs, m.poll(name, r))
	}
	return Aggregate(systemName, subs)
}

func (m *Monitor) poll(name string, r Reporter) Status {
	s := r.Health()
	s.Component = name
	return s
}
