// Package eventlog writes coordination events and cron executions in the
// background so callers never wait on storage.
package eventlog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"stove_coordination/internal/logger"
	"stove_coordination/internal/models"
	"stove_coordination/internal/repository"
)

const DefaultQueueSize = 256

// Results passed to the observer.
const (
	ResultWritten = "written"
	ResultDropped = "dropped"
	ResultFailed  = "failed"
)

type item struct {
	event *models.CoordinationEvent
	cron  *models.CronExecution
}

type Stats struct {
	Written int64 `json:"written"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
}

// Dispatcher drains a bounded queue with a single goroutine. A full queue
// drops the entry; a failed write is logged and counted.
type Dispatcher struct {
	events repository.EventRepo
	store  repository.Store
	log    *logger.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan item
	done   chan struct{}

	written, dropped, failed atomic.Int64
	observe                  func(result string)
	writeTimeout             time.Duration
}

func New(events repository.EventRepo, store repository.Store, size int, log *logger.Logger, observe func(result string)) *Dispatcher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Dispatcher{
		events:       events,
		store:        store,
		log:          logger.OrNop(log).Named("eventlog"),
		queue:        make(chan item, size),
		done:         make(chan struct{}),
		observe:      observe,
		writeTimeout: 5 * time.Second,
	}
}

// Run writes queued entries until Close is called and the queue is empty.
func (d *Dispatcher) Run() {
	defer close(d.done)
	for it := range d.queue {
		d.write(it)
	}
}

// Close stops accepting entries and waits for the queue to drain or ctx to
// expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish queues a coordination event without blocking. Missing ids and
// timestamps are filled in.
func (d *Dispatcher) Publish(e models.CoordinationEvent) bool {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return d.enqueue(item{event: &e})
}

// PublishCron queues a cron execution record without blocking.
func (d *Dispatcher) PublishCron(c models.CronExecution) bool {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return d.enqueue(item{cron: &c})
}

func (d *Dispatcher) enqueue(it item) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop()
		return false
	}
	select {
	case d.queue <- it:
		return true
	default:
		d.drop()
		return false
	}
}

func (d *Dispatcher) drop() {
	d.dropped.Add(1)
	d.report(ResultDropped)
}

func (d *Dispatcher) write(it item) {
	ctx, cancel := context.WithTimeout(context.Background(), d.writeTimeout)
	defer cancel()

	var err error
	switch {
	case it.event != nil:
		err = d.events.Append(ctx, *it.event)
	case it.cron != nil:
		key := repository.CronExecutionKey(it.cron.StartedAt.UTC().Format(time.RFC3339Nano))
		err = d.store.Set(ctx, key, it.cron)
	}
	if err != nil {
		d.failed.Add(1)
		d.log.Errorw("eventlog_write_failed", "error", err)
		d.report(ResultFailed)
		return
	}
	d.written.Add(1)
	d.report(ResultWritten)
}

func (d *Dispatcher) report(result string) {
	if d.observe != nil {
		d.observe(result)
	}
}

func (d *Dispatcher) Stats() Stats {
	return Stats{Written: d.written.Load(), Dropped: d.dropped.Load(), Failed: d.failed.Load()}
}
