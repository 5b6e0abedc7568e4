package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is the process-local limiter. It only protects callers inside one
// process; use Durable when several instances share the vendor account.
type Memory struct {
	mu    sync.Mutex
	users map[string]Usage
	now   func() time.Time
}

var _ Limiter = (*Memory)(nil)

func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{users: make(map[string]Usage), now: now}
}

func (m *Memory) Check(_ context.Context, userID string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID].evaluate(m.now()), nil
}

func (m *Memory) Track(_ context.Context, userID string) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, d := m.users[userID].record(m.now())
	if !d.Allowed {
		return d, ErrLimited
	}
	m.users[userID] = next
	return d, nil
}

func (m *Memory) Status(_ context.Context, userID string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID].status(m.now()), nil
}

// Sweep drops users with nothing left in either window. Returns how many
// entries were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, u := range m.users {
		if u.empty(now) {
			delete(m.users, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is cancelled.
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

// Len is the number of tracked users.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}
