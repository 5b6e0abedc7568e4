package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"stove_coordination/internal/models"
	"stove_coordination/internal/repository"
)

type EventLogService struct {
	eventRepo repository.EventRepo
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: from must be <= to")
	errUnknownEventType = errors.New("unknown event type")
)

var eventTypes = map[string]struct{}{
	models.EventCycle:       {},
	models.EventBoost:       {},
	models.EventRestore:     {},
	models.EventPause:       {},
	models.EventResume:      {},
	models.EventDebounce:    {},
	models.EventNotify:      {},
	models.EventVendorError: {},
}

// IsFilterError reports whether err came from an invalid LogFilter.
func IsFilterError(err error) bool {
	return errors.Is(err, errInvalidTimeRange) || errors.Is(err, errUnknownEventType)
}

// normalize converts bounds to UTC (zero stays zero), uppercases the type
// and rejects inverted ranges and unknown types.
func (f LogFilter) normalize() (LogFilter, error) {
	if !f.From.IsZero() {
		f.From = f.From.UTC()
	}
	if !f.To.IsZero() {
		f.To = f.To.UTC()
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return LogFilter{}, errInvalidTimeRange
	}
	f.Type = strings.ToUpper(strings.TrimSpace(f.Type))
	if f.Type != "" {
		if _, ok := eventTypes[f.Type]; !ok {
			return LogFilter{}, fmt.Errorf("%w: %q", errUnknownEventType, f.Type)
		}
	}
	return f, nil
}

// List returns userID's coordination events matching f, oldest first.
func (s *EventLogService) List(ctx context.Context, userID string, f LogFilter) ([]models.CoordinationEvent, error) {
	nf, err := f.normalize()
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, userID, nf.From, nf.To, nf.Type)
}
