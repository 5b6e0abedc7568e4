package throttle

import (
	"context"
	"sync"
	"time"
)

// Memory is the process-local throttle.
type Memory struct {
	mu      sync.Mutex
	entries map[string]Entry
	now     func() time.Time
}

var _ Throttle = (*Memory)(nil)

func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{entries: make(map[string]Entry), now: now}
}

func (m *Memory) ShouldSend(_ context.Context, userID string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return decide(m.entries[userID], m.now()), nil
}

func (m *Memory) RecordSent(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[userID] = Entry{LastSentAt: m.now().UnixMilli()}
	return nil
}

func (m *Memory) Acquire(_ context.Context, userID string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	d := decide(m.entries[userID], now)
	if d.Allowed {
		m.entries[userID] = Entry{LastSentAt: now.UnixMilli()}
	}
	return d, nil
}

func (m *Memory) Status(_ context.Context, userID string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	return statusOf(e, ok, m.now()), nil
}

func (m *Memory) Clear(_ context.Context, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[userID]
	delete(m.entries, userID)
	return ok, nil
}

// Sweep purges entries whose window has passed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for id, e := range m.entries {
		if expired(e, now) {
			delete(m.entries, id)
			n++
		}
	}
	return n
}

func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}
