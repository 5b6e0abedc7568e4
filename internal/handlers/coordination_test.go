package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stove_coordination/internal/debounce"
	"stove_coordination/internal/models"
	"stove_coordination/internal/ratelimit"
	"stove_coordination/internal/service"
)

func doAuthedJSON(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer valid")
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&service.Service{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"ok"`)) {
		t.Fatalf("health = %d %s", w.Code, w.Body.String())
	}
}

func TestMetricsRouteMountedOnlyWhenProvided(t *testing.T) {
	r := NewHandler(&service.Service{}, nil, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, "metric 1")
	})).InitRoutes()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.String() != "metric 1" {
		t.Fatalf("metrics = %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	newTestRouter(&service.Service{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("metrics without handler = %d", w.Code)
	}
}

func TestCoordinationHandlers_Cycle(t *testing.T) {
	coord := &mockCoordination{result: service.CycleResult{Outcome: service.OutcomeDebouncing, DelayMs: 120000}}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: "u1"}, Coordination: coord})

	// Requires auth
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/coordination/cycle", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without auth, got %d", w.Code)
	}

	// Missing homeId → 400
	if w := doAuthedJSON(r, http.MethodPost, "/api/v1/coordination/cycle", `{"status":"WORK"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if coord.cycles != 0 {
		t.Fatalf("service called on a bad body")
	}

	w = doAuthedJSON(r, http.MethodPost, "/api/v1/coordination/cycle", `{"homeId":"h1","status":" WORK ","errorCode":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("cycle status=%d body=%s", w.Code, w.Body.String())
	}
	var res service.CycleResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if res.Outcome != service.OutcomeDebouncing || res.DelayMs != 120000 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if coord.lastUser != "u1" || coord.lastHome != "h1" || coord.lastStatus.Status != "WORK" {
		t.Fatalf("service got user=%q home=%q status=%+v", coord.lastUser, coord.lastHome, coord.lastStatus)
	}

	coord.cycleErr = errors.New("store down")
	if w := doAuthedJSON(r, http.MethodPost, "/api/v1/coordination/cycle", `{"homeId":"h1","status":"OFF"}`); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestCoordinationHandlers_StateDebouncePause(t *testing.T) {
	started := time.Date(2025, 1, 13, 7, 0, 0, 0, time.UTC)
	coord := &mockCoordination{
		cancelled: true,
		debounce:  debounce.Status{Pending: true, Target: debounce.TargetOn, StartedAt: &started, Remaining: time.Minute, RemainingMs: 60000},
	}
	mon := &mockMonitoring{state: service.StateSnapshot{State: models.CoordinationState{StoveOn: true}, PauseRemainingMs: 5000}}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: "u1"}, Coordination: coord, Monitoring: mon})

	w := doAuthed(r, http.MethodGet, "/api/v1/coordination/state")
	var snap service.StateSnapshot
	if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &snap) != nil || !snap.State.StoveOn || snap.PauseRemainingMs != 5000 {
		t.Fatalf("state = %d %s", w.Code, w.Body.String())
	}

	w = doAuthed(r, http.MethodGet, "/api/v1/coordination/debounce")
	var st debounce.Status
	if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &st) != nil || !st.Pending || st.Target != debounce.TargetOn || st.RemainingMs != 60000 {
		t.Fatalf("debounce = %d %s", w.Code, w.Body.String())
	}

	w = doAuthed(r, http.MethodDelete, "/api/v1/coordination/debounce")
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"cancelled":true`)) {
		t.Fatalf("cancel = %d %s", w.Code, w.Body.String())
	}

	if w := doAuthed(r, http.MethodDelete, "/api/v1/coordination/pause"); w.Code != http.StatusOK {
		t.Fatalf("resume = %d", w.Code)
	}
	coord.resumeErr = errors.New("boom")
	if w := doAuthed(r, http.MethodDelete, "/api/v1/coordination/pause"); w.Code != http.StatusInternalServerError {
		t.Fatalf("resume error = %d", w.Code)
	}

	mon.err = errors.New("boom")
	if w := doAuthed(r, http.MethodGet, "/api/v1/coordination/state"); w.Code != http.StatusInternalServerError {
		t.Fatalf("state error = %d", w.Code)
	}
}

func TestPreferencesHandlers(t *testing.T) {
	prefs := &mockPreferences{prefs: models.CoordinationPreferences{Enabled: true, DefaultBoostAmount: 2, Version: 3}}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: "u1"}, Preferences: prefs})

	w := doAuthed(r, http.MethodGet, "/api/v1/preferences")
	var got models.CoordinationPreferences
	if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &got) != nil || got.Version != 3 {
		t.Fatalf("get = %d %s", w.Code, w.Body.String())
	}

	w = doAuthedJSON(r, http.MethodPut, "/api/v1/preferences", `{"enabled":false,"defaultBoostAmount":1.5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put = %d %s", w.Code, w.Body.String())
	}
	if prefs.lastPatch.Enabled == nil || *prefs.lastPatch.Enabled || prefs.lastPatch.DefaultBoostAmount == nil || *prefs.lastPatch.DefaultBoostAmount != 1.5 {
		t.Fatalf("patch = %+v", prefs.lastPatch)
	}
	if prefs.lastPatch.Zones != nil {
		t.Fatalf("omitted zones must stay nil")
	}

	prefs.err = fmt.Errorf("%w: too big", models.ErrInvalidPreferences)
	if w := doAuthedJSON(r, http.MethodPut, "/api/v1/preferences", `{"defaultBoostAmount":9}`); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid = %d", w.Code)
	}
	prefs.err = errors.New("disk full")
	if w := doAuthedJSON(r, http.MethodPut, "/api/v1/preferences", `{}`); w.Code != http.StatusInternalServerError {
		t.Fatalf("store error = %d", w.Code)
	}
	if w := doAuthedJSON(r, http.MethodPut, "/api/v1/preferences", `{bad`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json = %d", w.Code)
	}
}

func TestLimitsHandlers(t *testing.T) {
	limits := &mockLimits{
		status: service.LimitsStatus{RateLimit: ratelimit.Status{Burst: ratelimit.WindowStatus{Limit: ratelimit.BurstLimit}}},
		cleared: true,
	}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: "u1"}, Limits: limits})

	w := doAuthed(r, http.MethodGet, "/api/v1/limits")
	var st service.LimitsStatus
	if w.Code != http.StatusOK || json.Unmarshal(w.Body.Bytes(), &st) != nil || st.RateLimit.Burst.Limit != ratelimit.BurstLimit {
		t.Fatalf("limits = %d %s", w.Code, w.Body.String())
	}

	w = doAuthed(r, http.MethodDelete, "/api/v1/limits/throttle")
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"cleared":true`)) {
		t.Fatalf("clear = %d %s", w.Code, w.Body.String())
	}

	limits.err = errors.New("redis down")
	if w := doAuthed(r, http.MethodGet, "/api/v1/limits"); w.Code != http.StatusInternalServerError {
		t.Fatalf("limits error = %d", w.Code)
	}
}
