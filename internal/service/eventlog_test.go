package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"stove_coordination/internal/models"
)

// fakeEventRepo is a minimal stub that satisfies the repository.EventRepo interface.
type fakeEventRepo struct {
	gotUser string
	gotFrom time.Time
	gotTo   time.Time
	gotType string

	events []models.CoordinationEvent
	err    error
	calls  int
}

func (f *fakeEventRepo) List(_ context.Context, userID string, from, to time.Time, typ string) ([]models.CoordinationEvent, error) {
	f.calls++
	f.gotUser = userID
	f.gotFrom = from
	f.gotTo = to
	f.gotType = typ
	return f.events, f.err
}

func (f *fakeEventRepo) Append(context.Context, models.CoordinationEvent) error { return nil }

func TestLogFilter_Normalize(t *testing.T) {
	t.Parallel()

	plus2 := time.FixedZone("UTC+2", 2*3600)
	tests := []struct {
		name     string
		in       LogFilter
		wantFrom time.Time
		wantType string
		wantErr  error
	}{
		{name: "empty filter", in: LogFilter{}},
		{
			name:     "timezone and type",
			in:       LogFilter{From: time.Date(2025, 9, 10, 10, 0, 0, 0, plus2), Type: " boost "},
			wantFrom: time.Date(2025, 9, 10, 8, 0, 0, 0, time.UTC),
			wantType: models.EventBoost,
		},
		{
			name: "inverted range",
			in: LogFilter{
				From: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC),
			},
			wantErr: errInvalidTimeRange,
		},
		{name: "unknown type", in: LogFilter{Type: "telemetry"}, wantErr: errUnknownEventType},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := tc.in.normalize()
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v; want %v", err, tc.wantErr)
			}
			if err != nil {
				if !IsFilterError(err) {
					t.Fatalf("IsFilterError(%v) = false", err)
				}
				return
			}
			if !got.From.Equal(tc.wantFrom) || (!got.From.IsZero() && got.From.Location() != time.UTC) {
				t.Fatalf("from = %v; want %v", got.From, tc.wantFrom)
			}
			if got.Type != tc.wantType {
				t.Fatalf("type = %q; want %q", got.Type, tc.wantType)
			}
		})
	}
}

func TestEventLogService_List_DelegatesNormalizedParams(t *testing.T) {
	frepo := &fakeEventRepo{events: []models.CoordinationEvent{{EventID: "1"}}}
	svc := NewEventLogService(frepo)

	to := time.Date(2025, 10, 1, 12, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
	out, err := svc.List(context.Background(), "u1", LogFilter{To: to, Type: "pause"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || frepo.calls != 1 {
		t.Fatalf("events=%v calls=%d", out, frepo.calls)
	}
	if frepo.gotUser != "u1" || frepo.gotType != models.EventPause {
		t.Fatalf("repo got user=%q type=%q", frepo.gotUser, frepo.gotType)
	}
	if want := time.Date(2025, 10, 1, 14, 30, 0, 0, time.UTC); !frepo.gotTo.Equal(want) || !frepo.gotFrom.IsZero() {
		t.Fatalf("repo bounds from=%v to=%v", frepo.gotFrom, frepo.gotTo)
	}
}

func TestEventLogService_List_Errors(t *testing.T) {
	frepo := &fakeEventRepo{}
	svc := NewEventLogService(frepo)
	if _, err := svc.List(context.Background(), "u1", LogFilter{Type: "nope"}); !errors.Is(err, errUnknownEventType) {
		t.Fatalf("expected errUnknownEventType; got %v", err)
	}
	if frepo.calls != 0 {
		t.Fatalf("repo must not be called on an invalid filter")
	}

	frepo.err = errors.New("db down")
	if _, err := svc.List(context.Background(), "u1", LogFilter{}); !errors.Is(err, frepo.err) {
		t.Fatalf("expected repo error; got %v", err)
	}
}
