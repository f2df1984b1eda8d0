package health

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	h := NewHealthy("file", "writing")
	assert.True(t, h.Healthy)
	assert.True(t, h.IsHealthy())
	assert.False(t, h.Timestamp.IsZero())

	d := NewDegraded("firehose", "reconnecting")
	assert.False(t, d.Healthy)
	assert.True(t, d.IsDegraded())

	u := NewUnhealthy("nats", "down")
	assert.True(t, u.IsUnhealthy())
}

func TestFromError(t *testing.T) {
	assert.True(t, FromError("file", nil).IsHealthy())

	err := errors.New("open /var/data/youtube_posts.jsonl: permission denied")
	s := FromError("file", err)
	assert.True(t, s.IsUnhealthy())
	assert.NotContains(t, s.Message, "/var/data")
	assert.Contains(t, s.Message, "[PATH]")
	assert.Contains(t, s.Message, "permission denied")
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in      string
		absent  string
		present string
	}{
		{"dial wss://jetstream2.us-east.bsky.network/subscribe failed", "jetstream2", "[URL]"},
		{"connect nats://user:pw@10.0.0.1:4222 refused", "10.0.0.1", "[URL]"},
		{"dial tcp 192.168.1.5 refused", "192.168.1.5", "[IP]"},
		{"auth failed token=abc123", "abc123", "[REDACTED]"},
	}

	for _, tt := range tests {
		got := sanitize(tt.in)
		assert.NotContains(t, got, tt.absent, tt.in)
		assert.Contains(t, got, tt.present, tt.in)
	}
	assert.Empty(t, sanitize(""))
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name  string
		subs  []Status
		state string
	}{
		{"empty", nil, StateHealthy},
		{"all healthy", []Status{NewHealthy("a", ""), NewHealthy("b", "")}, StateHealthy},
		{"degraded wins over healthy", []Status{NewHealthy("a", ""), NewDegraded("b", "")}, StateDegraded},
		{"unhealthy wins", []Status{NewDegraded("a", ""), NewUnhealthy("b", "")}, StateUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Aggregate("tubewatch", tt.subs)
			assert.Equal(t, tt.state, s.Status)
			assert.Equal(t, "tubewatch", s.Component)
			assert.Len(t, s.SubStatuses, len(tt.subs))
		})
	}
}

func TestAggregate_SortedChildren(t *testing.T) {
	s := Aggregate("x", []Status{NewHealthy("nats", ""), NewHealthy("file", ""), NewHealthy("firehose", "")})

	require.Len(t, s.SubStatuses, 3)
	assert.Equal(t, "file", s.SubStatuses[0].Component)
	assert.Equal(t, "firehose", s.SubStatuses[1].Component)
	assert.Equal(t, "nats", s.SubStatuses[2].Component)
}

func TestMonitor(t *testing.T) {
	m := NewMonitor()
	assert.Equal(t, 0, m.Count())

	state := StateHealthy
	var mu sync.Mutex
	m.Register("firehose", ReporterFunc(func() Status {
		mu.Lock()
		defer mu.Unlock()
		return newStatus("ignored", state, "")
	}))
	m.Register("file", ReporterFunc(func() Status { return NewHealthy("", "ok") }))

	s, ok := m.Get("firehose")
	require.True(t, ok)
	assert.Equal(t, "firehose", s.Component)
	assert.True(t, m.Aggregate("tubewatch").IsHealthy())

	mu.Lock()
	state = StateDegraded
	mu.Unlock()
	assert.True(t, m.Aggregate("tubewatch").IsDegraded())

	m.Remove("firehose")
	_, ok = m.Get("firehose")
	assert.False(t, ok)
	assert.Equal(t, 1, m.Count())
}

func TestMonitor_Concurrent(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.Register("file", ReporterFunc(func() Status { return NewHealthy("", "") }))
		}()
		go func() {
			defer wg.Done()
			_ = m.Aggregate("tubewatch")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, m.Count())
}
