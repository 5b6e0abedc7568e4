package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"stove_coordination/internal/boost"
	"stove_coordination/internal/debounce"
	"stove_coordination/internal/intent"
	"stove_coordination/internal/logger"
	"stove_coordination/internal/models"
	"stove_coordination/internal/netatmo"
	"stove_coordination/internal/notify"
	"stove_coordination/internal/pause"
	"stove_coordination/internal/repository"
	"stove_coordination/internal/stove"
)

// Outcome is the result tag of one coordination cycle.
type Outcome string

const (
	OutcomeSkipped    Outcome = "skipped"
	OutcomePaused     Outcome = "paused"
	OutcomeDebouncing Outcome = "debouncing"
	OutcomeRetryTimer Outcome = "retry_timer"
	OutcomeRestored   Outcome = "restored"
	OutcomeStopped    Outcome = "stopped"
	OutcomeNoChange   Outcome = "no_change"
	OutcomeAuthError  Outcome = "auth_error"
)

// Reasons attached to skipped, paused and auth_error outcomes.
const (
	ReasonDisabled          = "disabled"
	ReasonPaused            = "paused"
	ReasonUserIntent        = "user_intent"
	ReasonReconnectRequired = "reconnect_required"
)

type CycleResult struct {
	Outcome     Outcome              `json:"outcome"`
	Reason      string               `json:"reason,omitempty"`
	Message     string               `json:"message,omitempty"`
	DelayMs     int64                `json:"delayMs,omitempty"`
	RemainingMs int64                `json:"remainingMs,omitempty"`
	PausedUntil *time.Time           `json:"pausedUntil,omitempty"`
	Resumed     bool                 `json:"resumed,omitempty"`
	Changes     []intent.Change      `json:"changes,omitempty"`
	Restore     *boost.RestoreResult `json:"restore,omitempty"`
	NextSlot    *pause.NextSlot      `json:"nextSlot,omitempty"`
}

// ClimateFor returns the climate API handle charged to userID's rate limit.
type ClimateFor func(userID string) netatmo.API

// EventPublisher queues coordination events without blocking.
type EventPublisher interface {
	Publish(e models.CoordinationEvent) bool
}

// Notifications delivers throttled user alerts.
type Notifications interface {
	Notify(ctx context.Context, userID, kind string, enabled bool, payload map[string]any) notify.Outcome
}

// CoordinationService sequences preferences, state, user-intent detection,
// the debounce timer and the boost applier into one cycle per stove
// observation.
type CoordinationService struct {
	state    repository.StateRepo
	prefs    repository.PreferencesRepo
	debounce *debounce.Service
	climate  ClimateFor
	notifier Notifications
	events   EventPublisher
	log      *logger.Logger
	now      func() time.Time
	loc      *time.Location
	lang     string
	observe  func(outcome string, d time.Duration)
}

type CoordinationDeps struct {
	State    repository.StateRepo
	Prefs    repository.PreferencesRepo
	Debounce *debounce.Service
	Climate  ClimateFor
	Notifier Notifications
	Events   EventPublisher
	Logger   *logger.Logger
	Now      func() time.Time
	Location *time.Location
	Language string
	// Observe, when set, receives every cycle outcome and its duration.
	Observe func(outcome string, d time.Duration)
}

func NewCoordinationService(d CoordinationDeps) *CoordinationService {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	return &CoordinationService{
		state:    d.State,
		prefs:    d.Prefs,
		debounce: d.Debounce,
		climate:  d.Climate,
		notifier: d.Notifier,
		events:   d.Events,
		log:      logger.OrNop(d.Logger).Named("coordination"),
		now:      d.Now,
		loc:      d.Location,
		lang:     d.Language,
		observe:  d.Observe,
	}
}

// ProcessCoordinationCycle handles one stove observation for userID. Vendor
// failures are folded into the result; only store failures are returned as
// errors.
func (s *CoordinationService) ProcessCoordinationCycle(ctx context.Context, userID, homeID string, status stove.Status) (res CycleResult, err error) {
	started := s.now()
	defer func() {
		if err != nil {
			return
		}
		if s.observe != nil {
			s.observe(string(res.Outcome), s.now().Sub(started))
		}
		if res.Reason != ReasonDisabled {
			s.publish(userID, models.EventCycle, "Coordination cycle: "+string(res.Outcome), map[string]any{
				"stoveStatus": status.Status,
				"outcome":     res.Outcome,
				"reason":      res.Reason,
			})
		}
	}()

	prefs, err := s.prefs.Load(ctx, userID)
	if err != nil {
		return CycleResult{}, err
	}
	if !prefs.Enabled {
		return CycleResult{Outcome: OutcomeSkipped, Reason: ReasonDisabled}, nil
	}

	now := started.UTC()
	var resumed bool
	st, err := s.state.Update(ctx, userID, func(st *models.CoordinationState) {
		resumed = false
		st.LastStoveStatus = status.Status
		st.LastCycleAt = &now
		if !st.AutomationPaused {
			return
		}
		if st.PausedUntil != nil && st.PausedUntil.After(now) {
			return
		}
		st.ClearPause()
		resumed = true
	})
	if err != nil {
		return CycleResult{}, err
	}

	if st.AutomationPaused {
		until := *st.PausedUntil
		return CycleResult{
			Outcome:     OutcomeSkipped,
			Reason:      ReasonPaused,
			PausedUntil: &until,
			RemainingMs: until.Sub(now).Milliseconds(),
		}, nil
	}
	if resumed {
		s.log.Infow("pause_expired", "user_id", userID)
		s.publish(userID, models.EventResume, "Pause expired, automation resumed", nil)
	}

	if st.BoostActive() && len(st.AppliedSetpoints) > 0 {
		ir, done, ierr := s.checkUserIntent(ctx, userID, homeID, s.climate(userID), prefs, st)
		if ierr != nil || done {
			ir.Resumed = resumed
			return ir, ierr
		}
	}

	res, err = s.applyDebounce(ctx, userID, homeID, status, prefs, st)
	res.Resumed = resumed
	return res, err
}

// checkUserIntent pauses automation when the user changed a boosted room by
// hand. done reports whether the cycle ends here.
func (s *CoordinationService) checkUserIntent(ctx context.Context, userID, homeID string, api netatmo.API, prefs models.CoordinationPreferences, st models.CoordinationState) (CycleResult, bool, error) {
	detector := intent.NewDetector(api, s.lang)
	detection := detector.DetectUserIntent(ctx, homeID, boostedRooms(prefs, st), st.AppliedSetpoints)

	if detection.Err != nil {
		if netatmo.IsAuth(detection.Err) {
			return s.authError(ctx, userID, prefs, detection.Err), true, nil
		}
		// Unknown: carry on with the debounce policy and try again next cycle.
		s.log.Warnw("user_intent_unavailable", "user_id", userID, "error", detection.Err)
		return CycleResult{}, false, nil
	}
	if !detection.ManualChange {
		return CycleResult{}, false, nil
	}

	now := s.now()
	var schedule *pause.Schedule
	schedules, err := api.GetThermSchedules(ctx, homeID)
	if err != nil {
		s.log.Warnw("schedule_unavailable", "user_id", userID, "error", err)
	} else {
		schedule = netatmo.Selected(schedules).PauseSchedule()
	}
	decision := pause.CalculatePauseUntil(now, schedule)
	message := pause.FormatPauseReason(detection.Kind(), decision.PauseUntil, s.loc, s.lang)

	if _, err := s.debounce.Cancel(ctx, userID); err != nil {
		return CycleResult{}, true, err
	}

	until := decision.PauseUntil.UTC()
	reason := models.PauseUserIntent
	if _, err := s.state.Update(ctx, userID, func(st *models.CoordinationState) {
		st.AutomationPaused = true
		st.PausedUntil = &until
		st.PauseReason = &reason
		// The user owns these rooms now; nothing to restore.
		st.ClearBoost()
	}); err != nil {
		return CycleResult{}, true, err
	}

	s.log.Infow("automation_paused", "user_id", userID, "until", until, "changes", len(detection.Changes))
	s.publish(userID, models.EventPause, message, map[string]any{
		"changes":     detection.Changes,
		"pausedUntil": until,
		"waitMinutes": decision.WaitMinutes,
	})
	s.notify(ctx, userID, prefs, models.NotifyUserIntentPause, map[string]any{
		"reason":      detection.Reason,
		"message":     message,
		"pausedUntil": until,
	})

	return CycleResult{
		Outcome:     OutcomePaused,
		Reason:      ReasonUserIntent,
		Message:     message,
		PausedUntil: &until,
		RemainingMs: until.Sub(now).Milliseconds(),
		Changes:     detection.Changes,
		NextSlot:    decision.NextSlot,
	}, true, nil
}

func (s *CoordinationService) applyDebounce(ctx context.Context, userID, homeID string, status stove.Status, prefs models.CoordinationPreferences, st models.CoordinationState) (CycleResult, error) {
	if st.PendingDebounce && !s.debounce.Pending(userID) {
		// Left behind by an instance that died before its timer fired.
		s.log.Warnw("stale_debounce_cleared", "user_id", userID, "started_at", st.DebounceStartedAt)
		if _, err := s.debounce.Cancel(ctx, userID); err != nil {
			return CycleResult{}, err
		}
	}

	observed := debounce.TargetFor(stove.IsOn(status))
	stable := debounce.TargetFor(st.StoveOn)

	var stop *stopResult
	cb := func(ctx context.Context) {
		r := s.confirmOff(ctx, userID, homeID)
		stop = &r
	}
	if observed == debounce.TargetOn {
		cb = func(ctx context.Context) { s.confirmOn(ctx, userID, homeID) }
	}

	dr, err := s.debounce.HandleStoveStateChange(ctx, userID, observed, stable, cb)
	if err != nil {
		return CycleResult{}, err
	}

	switch dr.Action {
	case debounce.ActionTimerStarted:
		s.publish(userID, models.EventDebounce, "Stove ON, waiting for stable state", map[string]any{"delayMs": dr.DelayMs(), "status": status.Status})
		return CycleResult{Outcome: OutcomeDebouncing, DelayMs: dr.DelayMs()}, nil
	case debounce.ActionRetryStarted:
		s.publish(userID, models.EventDebounce, "Stove OFF during debounce, confirming shutdown", map[string]any{"delayMs": dr.DelayMs(), "status": status.Status})
		return CycleResult{Outcome: OutcomeRetryTimer, DelayMs: dr.DelayMs()}, nil
	case debounce.ActionExecutedImmediately:
		if stop == nil {
			return CycleResult{Outcome: OutcomeStopped}, nil
		}
		if stop.err != nil {
			return CycleResult{}, stop.err
		}
		if stop.authErr != nil {
			return s.authError(ctx, userID, prefs, stop.authErr), nil
		}
		if stop.restore != nil {
			return CycleResult{Outcome: OutcomeRestored, Restore: stop.restore}, nil
		}
		if stop.failed {
			return CycleResult{Outcome: OutcomeStopped, Message: "restore failed, retrying on next observation"}, nil
		}
		return CycleResult{Outcome: OutcomeStopped}, nil
	default:
		return CycleResult{Outcome: OutcomeNoChange}, nil
	}
}

// confirmOn runs when the stove has been ON for the full debounce window.
func (s *CoordinationService) confirmOn(ctx context.Context, userID, homeID string) {
	prefs, err := s.prefs.Load(ctx, userID)
	if err != nil {
		s.log.Errorw("boost_prefs_failed", "user_id", userID, "error", err)
		return
	}
	st, err := s.state.Load(ctx, userID)
	if err != nil {
		s.log.Errorw("boost_state_failed", "user_id", userID, "error", err)
		return
	}
	if !prefs.Enabled || st.AutomationPaused {
		s.log.Infow("boost_skipped", "user_id", userID, "enabled", prefs.Enabled, "paused", st.AutomationPaused)
		return
	}

	rooms := zoneRooms(prefs)
	if len(rooms) == 0 {
		s.markStove(ctx, userID, true)
		return
	}

	applier := boost.NewApplier(s.climate(userID), s.log)
	res, err := applier.SetRoomsToBoostMode(ctx, homeID, rooms, prefs.DefaultBoostAmount, st.PreviousSetpoints)
	if err != nil {
		if netatmo.IsAuth(err) {
			s.authError(ctx, userID, prefs, err)
			return
		}
		s.log.Warnw("boost_failed", "user_id", userID, "error", err)
		s.publish(userID, models.EventVendorError, "Boost failed: "+err.Error(), nil)
		return
	}
	if !res.Success {
		if boost.AuthFailed(res.Errors) {
			s.authError(ctx, userID, prefs, res.Errors[0].Err)
			return
		}
		s.log.Warnw("boost_failed", "user_id", userID, "rooms", len(rooms))
		s.publish(userID, models.EventVendorError, "Boost failed for every room", map[string]any{"errors": res.Errors})
		return
	}

	if _, err := s.state.Update(ctx, userID, func(st *models.CoordinationState) {
		st.StoveOn = true
		st.PreviousSetpoints = res.PreviousSetpoints
		applied := make(map[string]float64, len(st.AppliedSetpoints)+len(res.AppliedSetpoints))
		for id, v := range st.AppliedSetpoints {
			applied[id] = v
		}
		for id, v := range res.AppliedSetpoints {
			applied[id] = v
		}
		st.AppliedSetpoints = applied
	}); err != nil {
		s.log.Errorw("boost_persist_failed", "user_id", userID, "error", err)
		return
	}

	s.log.Infow("boost_applied", "user_id", userID, "rooms", len(res.AppliedSetpoints), "capped", res.CappedRooms)
	s.publish(userID, models.EventBoost, "Boost applied", map[string]any{
		"applied":  res.AppliedSetpoints,
		"previous": res.PreviousSetpoints,
		"capped":   res.CappedRooms,
		"errors":   res.Errors,
	})
	s.notify(ctx, userID, prefs, models.NotifyBoostApplied, map[string]any{
		"rooms":  len(res.AppliedSetpoints),
		"capped": res.CappedRooms,
	})
}

type stopResult struct {
	restore *boost.RestoreResult
	failed  bool
	authErr error
	err     error
}

// confirmOff runs when the stove is confirmed OFF: restore any boost and
// record the stove as stopped.
func (s *CoordinationService) confirmOff(ctx context.Context, userID, homeID string) stopResult {
	st, err := s.state.Load(ctx, userID)
	if err != nil {
		s.log.Errorw("restore_state_failed", "user_id", userID, "error", err)
		return stopResult{err: err}
	}
	if !st.BoostActive() {
		if err := s.markStove(ctx, userID, false); err != nil {
			return stopResult{err: err}
		}
		return stopResult{}
	}

	prefs, err := s.prefs.Load(ctx, userID)
	if err != nil {
		s.log.Warnw("restore_prefs_failed", "user_id", userID, "error", err)
		prefs = models.DefaultPreferences()
	}

	rooms := restoreRooms(prefs, st)
	applier := boost.NewApplier(s.climate(userID), s.log)
	res := applier.RestoreRoomSetpoints(ctx, homeID, rooms, st.PreviousSetpoints)

	if !res.Success && len(rooms) > 0 {
		// Keep the boost recorded so the next OFF observation retries.
		if boost.AuthFailed(res.Errors) {
			return stopResult{authErr: res.Errors[0].Err}
		}
		s.log.Warnw("restore_failed", "user_id", userID, "rooms", len(rooms))
		s.publish(userID, models.EventVendorError, "Restore failed for every room", map[string]any{"errors": res.Errors})
		return stopResult{failed: true}
	}

	if _, err := s.state.Update(ctx, userID, func(st *models.CoordinationState) {
		st.StoveOn = false
		st.ClearBoost()
	}); err != nil {
		s.log.Errorw("restore_persist_failed", "user_id", userID, "error", err)
		return stopResult{err: err}
	}

	s.log.Infow("boost_restored", "user_id", userID, "rooms", len(res.RestoredRooms), "failed", len(res.Errors))
	s.publish(userID, models.EventRestore, "Setpoints restored", map[string]any{"rooms": res.RestoredRooms, "errors": res.Errors})
	s.notify(ctx, userID, prefs, models.NotifyBoostRestored, map[string]any{
		"rooms": len(res.RestoredRooms),
	})
	return stopResult{restore: &res}
}

func (s *CoordinationService) markStove(ctx context.Context, userID string, on bool) error {
	_, err := s.state.Update(ctx, userID, func(st *models.CoordinationState) { st.StoveOn = on })
	if err != nil {
		s.log.Errorw("stove_state_persist_failed", "user_id", userID, "error", err)
	}
	return err
}

func (s *CoordinationService) authError(ctx context.Context, userID string, prefs models.CoordinationPreferences, cause error) CycleResult {
	s.log.Warnw("climate_auth_error", "user_id", userID, "error", cause)
	s.publish(userID, models.EventVendorError, "Climate account needs to be reconnected", map[string]any{"error": cause.Error()})
	s.notify(ctx, userID, prefs, models.NotifyAuthError, map[string]any{
		"error": cause.Error(),
	})
	return CycleResult{Outcome: OutcomeAuthError, Reason: ReasonReconnectRequired, Message: cause.Error()}
}

// notify sends kind through the throttled notifier and records the outcome
// in the event log.
func (s *CoordinationService) notify(ctx context.Context, userID string, prefs models.CoordinationPreferences, kind string, payload map[string]any) {
	out := s.notifier.Notify(ctx, userID, kind, prefs.NotificationEnabled(kind), payload)
	desc := "Notification " + kind + " sent"
	if !out.Sent {
		desc = "Notification " + kind + " skipped: " + out.Reason
	}
	s.publish(userID, models.EventNotify, desc, map[string]any{
		"kind":   kind,
		"sent":   out.Sent,
		"reason": out.Reason,
	})
}

func (s *CoordinationService) publish(userID, typ, description string, meta map[string]any) {
	if s.events == nil {
		return
	}
	e := models.CoordinationEvent{UserID: userID, OccurredAt: s.now().UTC(), Type: typ, Description: description}
	if meta != nil {
		e.Metadata = meta
	}
	if !s.events.Publish(e) {
		s.log.Debugw("event_dropped", "user_id", userID, "type", typ)
	}
}

// ResumeAutomation clears a pause immediately.
func (s *CoordinationService) ResumeAutomation(ctx context.Context, userID string) (models.CoordinationState, error) {
	var was bool
	st, err := s.state.Update(ctx, userID, func(st *models.CoordinationState) {
		was = st.AutomationPaused
		st.ClearPause()
	})
	if err != nil {
		return models.CoordinationState{}, err
	}
	if was {
		s.log.Infow("automation_resumed", "user_id", userID)
		s.publish(userID, models.EventResume, "Automation resumed by user", nil)
	}
	return st, nil
}

// CancelDebounce drops the user's pending timer, if any.
func (s *CoordinationService) CancelDebounce(ctx context.Context, userID string) (bool, error) {
	existed, err := s.debounce.Cancel(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("cancel debounce: %w", err)
	}
	if existed {
		s.publish(userID, models.EventDebounce, "Debounce cancelled", nil)
	}
	return existed, nil
}

func (s *CoordinationService) DebounceStatus(userID string) debounce.Status {
	return s.debounce.Status(userID)
}

// zoneRooms lists the enabled zones with their boost amounts.
func zoneRooms(prefs models.CoordinationPreferences) []boost.Room {
	zones := prefs.EnabledZones()
	rooms := make([]boost.Room, 0, len(zones))
	for _, z := range zones {
		amount := prefs.BoostFor(z)
		rooms = append(rooms, boost.Room{ID: z.RoomID, Name: z.RoomName, Boost: &amount})
	}
	return rooms
}

// boostedRooms lists the rooms with an applied setpoint, named from prefs.
func boostedRooms(prefs models.CoordinationPreferences, st models.CoordinationState) []intent.Room {
	names := roomNames(prefs)
	out := make([]intent.Room, 0, len(st.AppliedSetpoints))
	for _, id := range sortedKeys(st.AppliedSetpoints) {
		out = append(out, intent.Room{ID: id, Name: names[id]})
	}
	return out
}

// restoreRooms lists every room touched by the current boost.
func restoreRooms(prefs models.CoordinationPreferences, st models.CoordinationState) []boost.Room {
	names := roomNames(prefs)
	ids := make(map[string]float64, len(st.PreviousSetpoints)+len(st.AppliedSetpoints))
	for id, v := range st.PreviousSetpoints {
		ids[id] = v
	}
	for id, v := range st.AppliedSetpoints {
		ids[id] = v
	}
	out := make([]boost.Room, 0, len(ids))
	for _, id := range sortedKeys(ids) {
		out = append(out, boost.Room{ID: id, Name: names[id]})
	}
	return out
}

func roomNames(prefs models.CoordinationPreferences) map[string]string {
	names := make(map[string]string, len(prefs.Zones))
	for _, z := range prefs.Zones {
		names[z.RoomID] = z.RoomName
	}
	return names
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// errorKind names an error for cron records.
func errorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case netatmo.IsAuth(err):
		return "auth_error"
	case errors.Is(err, stove.ErrUnavailable):
		return "stove_unavailable"
	default:
		return err.Error()
	}
}
