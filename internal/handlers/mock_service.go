package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"stove_coordination/internal/debounce"
	"stove_coordination/internal/models"
	"stove_coordination/internal/service"
	"stove_coordination/internal/stove"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	parseID  string
	parseErr error

	lastParseToken string
}

func (m *mockAuth) IssueToken(userID string, _ time.Duration) (string, error) {
	return "token-" + userID, nil
}

func (m *mockAuth) ParseToken(token string) (string, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockCoordination struct {
	result     service.CycleResult
	cycleErr   error
	resumed    models.CoordinationState
	resumeErr  error
	cancelled  bool
	cancelErr  error
	debounce   debounce.Status
	lastUser   string
	lastHome   string
	lastStatus stove.Status
	cycles     int
}

func (m *mockCoordination) ProcessCoordinationCycle(_ context.Context, userID, homeID string, status stove.Status) (service.CycleResult, error) {
	m.cycles++
	m.lastUser, m.lastHome, m.lastStatus = userID, homeID, status
	return m.result, m.cycleErr
}

func (m *mockCoordination) ResumeAutomation(_ context.Context, userID string) (models.CoordinationState, error) {
	m.lastUser = userID
	return m.resumed, m.resumeErr
}

func (m *mockCoordination) CancelDebounce(_ context.Context, userID string) (bool, error) {
	m.lastUser = userID
	return m.cancelled, m.cancelErr
}

func (m *mockCoordination) DebounceStatus(userID string) debounce.Status {
	m.lastUser = userID
	return m.debounce
}

type mockMonitoring struct {
	state service.StateSnapshot
	err   error

	mu       sync.Mutex
	lastUser string
}

func (m *mockMonitoring) GetState(_ context.Context, userID string) (service.StateSnapshot, error) {
	m.mu.Lock()
	m.lastUser = userID
	m.mu.Unlock()
	return m.state, m.err
}

func (m *mockMonitoring) user() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUser
}

type mockPreferences struct {
	prefs     models.CoordinationPreferences
	err       error
	lastPatch service.PreferencesPatch
}

func (m *mockPreferences) GetPreferences(context.Context, string) (models.CoordinationPreferences, error) {
	return m.prefs, m.err
}

func (m *mockPreferences) UpdatePreferences(_ context.Context, _ string, p service.PreferencesPatch) (models.CoordinationPreferences, error) {
	m.lastPatch = p
	return m.prefs, m.err
}

type mockLimits struct {
	status  service.LimitsStatus
	err     error
	cleared bool
}

func (m *mockLimits) LimitsStatus(context.Context, string) (service.LimitsStatus, error) {
	return m.status, m.err
}

func (m *mockLimits) ClearThrottle(context.Context, string) (bool, error) {
	return m.cleared, m.err
}

type mockEventLog struct {
	resp     []models.CoordinationEvent
	err      error
	lastUser string
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(_ context.Context, userID string, f service.LogFilter) ([]models.CoordinationEvent, error) {
	m.lastUser = userID
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
