package netatmo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"stove_coordination/internal/ratelimit"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok", TokenType: "Bearer"})
	return NewClient(srv.URL, ts, 2*time.Second, nil)
}

func TestGetHomeStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/homestatus", r.URL.Path)
		assert.Equal(t, "h1", r.URL.Query().Get("home_id"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"ok","body":{"home":{"id":"h1","rooms":[
			{"id":"r1","therm_measured_temperature":19.5,"therm_setpoint_temperature":21,"therm_setpoint_mode":"manual","reachable":true},
			{"id":"r2","therm_setpoint_temperature":7,"therm_setpoint_mode":"hg"}]}}}`))
	})

	hs, err := c.GetHomeStatus(context.Background(), "h1")
	require.NoError(t, err)
	require.Len(t, hs.Rooms, 2)

	r1, ok := hs.Room("r1")
	require.True(t, ok)
	assert.Equal(t, 21.0, r1.SetpointTemperature)
	assert.Equal(t, ModeManual, r1.SetpointMode)

	_, ok = hs.Room("missing")
	assert.False(t, ok)
}

func TestSetRoomSetpoint_Form(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/setroomthermpoint", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "h1", r.PostForm.Get("home_id"))
		assert.Equal(t, "r1", r.PostForm.Get("room_id"))
		switch r.PostForm.Get("mode") {
		case ModeManual:
			assert.Equal(t, "23.5", r.PostForm.Get("temp"))
		case ModeHome:
			assert.Empty(t, r.PostForm.Get("temp"))
		default:
			t.Errorf("unexpected mode %q", r.PostForm.Get("mode"))
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	require.NoError(t, c.SetRoomSetpoint(context.Background(), SetpointRequest{HomeID: "h1", RoomID: "r1", Mode: ModeManual, Temp: 23.5}))
	require.NoError(t, c.SetRoomSetpoint(context.Background(), SetpointRequest{HomeID: "h1", RoomID: "r1", Mode: ModeHome}))
}

func TestGetThermSchedules(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/homesdata", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok","body":{"homes":[
			{"id":"other","therm_schedules":[]},
			{"id":"h1","therm_schedules":[
				{"id":"s1","name":"Winter","selected":false,"timetable":[{"zone_id":0,"m_offset":0}]},
				{"id":"s2","name":"Default","selected":true,
				 "timetable":[{"zone_id":1,"m_offset":0},{"zone_id":0,"m_offset":420}],
				 "zones":[{"id":0,"name":"Comfort","type":0,"temp":20},{"id":1,"name":"Night","type":1}]}]}]}}`))
	})

	schedules, err := c.GetThermSchedules(context.Background(), "h1")
	require.NoError(t, err)
	require.Len(t, schedules, 2)

	sel := Selected(schedules)
	require.NotNil(t, sel)
	assert.Equal(t, "s2", sel.ID)

	ps := sel.PauseSchedule()
	require.Len(t, ps.Timetable, 2)
	assert.Equal(t, "0", ps.Timetable[1].ZoneID)
	assert.Equal(t, 420, ps.Timetable[1].OffsetMinutes)
	require.Len(t, ps.Zones, 2)
	assert.Equal(t, "Comfort", ps.Zones[0].Name)
	assert.Nil(t, ps.Zones[1].Temp)
}

func TestSelectedAndNilSchedule(t *testing.T) {
	assert.Nil(t, Selected(nil))
	var s *ThermSchedule
	assert.Nil(t, s.PauseSchedule())
	first := Selected([]ThermSchedule{{ID: "a"}, {ID: "b"}})
	assert.Equal(t, "a", first.ID)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, ErrUnauthorized},
		{"invalid token", http.StatusForbidden, `{"error":{"code":2,"message":"Invalid access token"}}`, ErrUnauthorized},
		{"expired token", http.StatusForbidden, `{"error":{"code":3,"message":"Access token expired"}}`, ErrUnauthorized},
		{"server error", http.StatusBadGateway, `oops`, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.GetHomeStatus(context.Background(), "h1")
			require.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("other forbidden", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":13,"message":"Operation forbidden"}}`))
		})
		_, err := c.GetHomeStatus(context.Background(), "h1")
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, 13, apiErr.Code)
		assert.False(t, IsAuth(err))
		assert.False(t, errors.Is(err, ErrUnavailable))
	})
}

func TestNetworkFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}), time.Second, nil)
	_, err := c.GetHomeStatus(context.Background(), "h1")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestTokenRefreshFailureIsUnauthorized(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	t.Cleanup(tokenSrv.Close)
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("request reached the API without a token")
	}))
	t.Cleanup(apiSrv.Close)

	ts := NewTokenSource(context.Background(), TokenConfig{ClientID: "id", ClientSecret: "secret", TokenURL: tokenSrv.URL, RefreshToken: "stale"})
	c := NewClient(apiSrv.URL, ts, time.Second, nil)

	_, err := c.GetHomeStatus(context.Background(), "h1")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestGuarded_RefusesWhenLimited(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"status":"ok","body":{"home":{"id":"h1","rooms":[]}}}`))
	})
	limiter := ratelimit.NewMemory(nil)
	var observed []error
	g := WithRateLimit(c, limiter, "u1", func(_ string, err error) { observed = append(observed, err) })

	for i := 0; i < ratelimit.BurstLimit; i++ {
		_, err := g.GetHomeStatus(context.Background(), "h1")
		require.NoError(t, err)
	}
	_, err := g.GetHomeStatus(context.Background(), "h1")
	require.ErrorIs(t, err, ratelimit.ErrLimited)
	assert.Equal(t, ratelimit.BurstLimit, calls)
	assert.Len(t, observed, ratelimit.BurstLimit+1)
	assert.ErrorIs(t, observed[len(observed)-1], ratelimit.ErrLimited)
}
