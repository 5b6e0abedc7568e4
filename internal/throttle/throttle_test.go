package throttle

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stove_coordination/internal/repository"
)

var t0 = time.Date(2025, 1, 13, 7, 0, 0, 0, time.UTC)

func variants(now *time.Time) map[string]Throttle {
	clock := func() time.Time { return *now }
	return map[string]Throttle{
		"memory":  NewMemory(clock),
		"durable": NewDurable(repository.NewMemoryStore(), clock),
	}
}

func TestThrottle_Window(t *testing.T) {
	for _, name := range []string{"memory", "durable"} {
		t.Run(name, func(t *testing.T) {
			now := t0
			th := variants(&now)[name]
			ctx := context.Background()

			d, err := th.ShouldSend(ctx, "u1")
			require.NoError(t, err)
			assert.True(t, d.Allowed)

			require.NoError(t, th.RecordSent(ctx, "u1"))

			now = t0.Add(29*time.Minute + 59*time.Second + 500*time.Millisecond)
			d, err = th.ShouldSend(ctx, "u1")
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, 1, d.WaitSeconds)
			assert.Equal(t, ReasonThrottled, d.Reason)

			// Another user is never blocked.
			d, err = th.ShouldSend(ctx, "u2")
			require.NoError(t, err)
			assert.True(t, d.Allowed)

			now = t0.Add(Window)
			d, err = th.ShouldSend(ctx, "u1")
			require.NoError(t, err)
			assert.True(t, d.Allowed)
			assert.Equal(t, 0, d.WaitSeconds)
		})
	}
}

func TestThrottle_AcquireStatusClear(t *testing.T) {
	for _, name := range []string{"memory", "durable"} {
		t.Run(name, func(t *testing.T) {
			now := t0
			th := variants(&now)[name]
			ctx := context.Background()

			d, err := th.Acquire(ctx, "u1")
			require.NoError(t, err)
			assert.True(t, d.Allowed)

			now = t0.Add(10 * time.Minute)
			d, err = th.Acquire(ctx, "u1")
			require.NoError(t, err)
			assert.False(t, d.Allowed)
			assert.Equal(t, 1200, d.WaitSeconds)

			st, err := th.Status(ctx, "u1")
			require.NoError(t, err)
			require.NotNil(t, st.LastSentAt)
			assert.True(t, st.LastSentAt.Equal(t0), "last sent must not move on a denied acquire")
			assert.True(t, st.NextAllowedAt.Equal(t0.Add(Window)))
			assert.Equal(t, 1200, st.WaitSeconds)

			cleared, err := th.Clear(ctx, "u1")
			require.NoError(t, err)
			assert.True(t, cleared)
			cleared, err = th.Clear(ctx, "u1")
			require.NoError(t, err)
			assert.False(t, cleared)

			st, err = th.Status(ctx, "u1")
			require.NoError(t, err)
			assert.Nil(t, st.LastSentAt)
		})
	}
}

func TestMemory_Sweep(t *testing.T) {
	now := t0
	m := NewMemory(func() time.Time { return now })
	ctx := context.Background()
	require.NoError(t, m.RecordSent(ctx, "u1"))
	now = t0.Add(20 * time.Minute)
	require.NoError(t, m.RecordSent(ctx, "u2"))

	now = t0.Add(31 * time.Minute)
	assert.Equal(t, 1, m.Sweep())

	st, _ := m.Status(ctx, "u2")
	assert.NotNil(t, st.LastSentAt)
}

func TestDurable_ConcurrentAcquireAdmitsOne(t *testing.T) {
	store := repository.NewMemoryStore()
	clock := func() time.Time { return t0 }
	// two instances sharing one store, as two replicas would
	instances := []*Durable{NewDurable(store, clock), NewDurable(store, clock)}

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(th *Durable) {
			defer wg.Done()
			d, err := th.Acquire(context.Background(), "u1")
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}(instances[i%2])
	}
	wg.Wait()

	assert.Equal(t, int32(1), allowed.Load())
}
