package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stove_coordination/internal/models"
	"stove_coordination/internal/service"
)

func doAuthed(r http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(w, req)
	return w
}

func TestLogsHandler_ListAndValidation(t *testing.T) {
	auth := &mockAuth{parseID: "u99"}
	now := time.Now().UTC().Truncate(time.Second)
	events := []models.CoordinationEvent{
		{EventID: "e1", UserID: "u99", OccurredAt: now, Type: models.EventBoost, Description: "boost"},
		{EventID: "e2", UserID: "u99", OccurredAt: now.Add(1 * time.Second), Type: models.EventPause, Description: "pause"},
	}
	logs := &mockEventLog{resp: events}
	s := &service.Service{
		Authorization: auth,
		EventLog:      logs,
	}
	r := newTestRouter(s)

	// Invalid 'from' → 400
	if w := doAuthed(r, http.MethodGet, "/api/v1/logs/?from=notatime"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	// Valid range and type
	q := "/api/v1/logs/?from=" + now.Format(time.RFC3339) + "&to=" + now.Add(2*time.Second).Format(time.RFC3339) + "&type=pause"
	w := doAuthed(r, http.MethodGet, q)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int                        `json:"count"`
		Events []models.CoordinationEvent `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if logs.lastUser != "u99" || logs.lastType != "pause" {
		t.Fatalf("service got user=%q type=%q", logs.lastUser, logs.lastType)
	}
}

func TestLogsHandler_DateOnlyToIsEndOfDay(t *testing.T) {
	logs := &mockEventLog{}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: "u1"}, EventLog: logs})

	if w := doAuthed(r, http.MethodGet, "/api/v1/logs/?to=2025-08-31"); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	want := time.Date(2025, 8, 31, 23, 59, 59, 999999999, time.UTC)
	if !logs.lastTo.Equal(want) {
		t.Fatalf("to = %v, want %v", logs.lastTo, want)
	}
}

func TestLogsHandler_Errors(t *testing.T) {
	logs := &mockEventLog{err: fmt.Errorf("db down")}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: "u1"}, EventLog: logs})

	if w := doAuthed(r, http.MethodGet, "/api/v1/logs/?from=2025-09-02&to=2025-09-01"); w.Code != http.StatusBadRequest {
		t.Fatalf("inverted range: got %d, want 400", w.Code)
	}
	if w := doAuthed(r, http.MethodGet, "/api/v1/logs/"); w.Code != http.StatusInternalServerError {
		t.Fatalf("service error: got %d, want 500", w.Code)
	}
}
