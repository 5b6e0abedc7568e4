package handlers

import (
	"net/http"
	"strings"

	"stove_coordination/internal/stove"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errRunCycle        = "failed to run coordination cycle"
	errGetState        = "failed to load state"
	errCancelDebounce  = "failed to cancel debounce"
	errResume          = "failed to resume automation"
	errInvalidBodyPref = "invalid body: "
)

// cycleRequest is one stove observation pushed by a caller.
type cycleRequest struct {
	HomeID    string `json:"homeId" binding:"required"`
	Status    string `json:"status" binding:"required"`
	ErrorCode int    `json:"errorCode"`
}

// CycleRequest is an exported model for Swagger docs of the cycle payload.
type CycleRequest struct {
	// Thermostat home id
	HomeID string `json:"homeId" example:"5f1e2d3c4b5a"`
	// Stove status as reported by the stove API
	Status string `json:"status" example:"WORK"`
	// Non-zero means the stove reports a fault and counts as OFF
	ErrorCode int `json:"errorCode" example:"0"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Run a coordination cycle
// @Description  Feeds one stove observation into the coordination state machine
// @Tags         coordination
// @Accept       json
// @Produce      json
// @Param        body  body   CycleRequest  true  "Stove observation"
// @Success      200   {object}  service.CycleResult
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/coordination/cycle [post]
// @Security     BearerAuth
func (h *Handler) runCycle(c *gin.Context) {
	var req cycleRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	status := stove.Status{Status: strings.TrimSpace(req.Status), ErrorCode: req.ErrorCode}
	res, err := h.services.ProcessCoordinationCycle(c.Request.Context(), currentUser(c), req.HomeID, status)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errRunCycle, "coordination_cycle_failed", err, "status", req.Status)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Get coordination state
// @Tags         coordination
// @Produce      json
// @Success      200  {object}  service.StateSnapshot
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/coordination/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	st, err := h.services.Monitoring.GetState(c.Request.Context(), currentUser(c))
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetState, "coordination_get_state_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Get debounce timer
// @Tags         coordination
// @Produce      json
// @Success      200  {object}  debounce.Status
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/coordination/debounce [get]
// @Security     BearerAuth
func (h *Handler) getDebounce(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.DebounceStatus(currentUser(c)))
}

// @Summary      Cancel debounce timer
// @Tags         coordination
// @Produce      json
// @Success      200  {object}  map[string]bool  "cancelled"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/coordination/debounce [delete]
// @Security     BearerAuth
func (h *Handler) cancelDebounce(c *gin.Context) {
	existed, err := h.services.CancelDebounce(c.Request.Context(), currentUser(c))
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errCancelDebounce, "coordination_cancel_debounce_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": existed})
}

// @Summary      Resume automation
// @Description  Clears a user-intent pause before it expires
// @Tags         coordination
// @Produce      json
// @Success      200  {object}  models.CoordinationState
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/coordination/pause [delete]
// @Security     BearerAuth
func (h *Handler) resumeAutomation(c *gin.Context) {
	st, err := h.services.ResumeAutomation(c.Request.Context(), currentUser(c))
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errResume, "coordination_resume_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}
