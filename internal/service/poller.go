package service

import (
	"context"
	"time"

	"stove_coordination/internal/logger"
	"stove_coordination/internal/models"
	"stove_coordination/internal/stove"
)

// OutcomeUnknown is recorded when the stove could not be polled.
const OutcomeUnknown = "unknown"

// CronPublisher queues cron execution records without blocking.
type CronPublisher interface {
	PublishCron(c models.CronExecution) bool
}

type cycleRunner interface {
	ProcessCoordinationCycle(ctx context.Context, userID, homeID string, status stove.Status) (CycleResult, error)
}

// PollerService polls every target's stove on each tick and feeds the
// observation into a coordination cycle.
type PollerService struct {
	coord   cycleRunner
	stove   stove.Poller
	targets []PollTarget
	cron    CronPublisher
	log     *logger.Logger
	now     func() time.Time
}

func NewPollerService(coord cycleRunner, sp stove.Poller, targets []PollTarget, cron CronPublisher, log *logger.Logger, now func() time.Time) *PollerService {
	if now == nil {
		now = time.Now
	}
	return &PollerService{
		coord:   coord,
		stove:   sp,
		targets: targets,
		cron:    cron,
		log:     logger.OrNop(log).Named("poller"),
		now:     now,
	}
}

// Run ticks at the given interval until ctx is canceled.
func (p *PollerService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce runs one cycle per target. A failing target never stops the
// others.
func (p *PollerService) PollOnce(ctx context.Context) {
	for _, target := range p.targets {
		if ctx.Err() != nil {
			return
		}
		p.pollTarget(ctx, target)
	}
}

func (p *PollerService) pollTarget(ctx context.Context, target PollTarget) models.CronExecution {
	started := p.now()
	rec := models.CronExecution{UserID: target.UserID, StartedAt: started.UTC()}
	defer func() {
		rec.DurationMs = p.now().Sub(started).Milliseconds()
		if p.cron != nil {
			p.cron.PublishCron(rec)
		}
	}()

	status, err := p.stove.Status(ctx, target.Device)
	if err != nil {
		p.log.Warnw("stove_poll_failed", "user_id", target.UserID, "device", target.Device, "error", err)
		rec.StoveStatus = OutcomeUnknown
		rec.Outcome = OutcomeUnknown
		rec.Error = errorKind(err)
		return rec
	}
	rec.StoveStatus = status.Status

	res, err := p.coord.ProcessCoordinationCycle(ctx, target.UserID, target.HomeID, status)
	if err != nil {
		p.log.Errorw("cycle_failed", "user_id", target.UserID, "error", err)
		rec.Outcome = "error"
		rec.Error = errorKind(err)
		return rec
	}
	rec.Outcome = string(res.Outcome)
	p.log.Debugw("cycle_done", "user_id", target.UserID, "stove_status", status.Status, "outcome", res.Outcome, "reason", res.Reason)
	return rec
}

// Sweeper is one background cleanup run by RunSweeps.
type Sweeper struct {
	Name  string
	Sweep func(ctx context.Context) int
}

// RunSweeps runs every sweeper each interval until ctx is canceled.
// observe, when set, receives how many entries each sweeper removed.
func RunSweeps(ctx context.Context, interval time.Duration, observe func(name string, removed int), sweepers ...Sweeper) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, sw := range sweepers {
				n := sw.Sweep(ctx)
				if observe != nil {
					observe(sw.Name, n)
				}
			}
		}
	}
}
