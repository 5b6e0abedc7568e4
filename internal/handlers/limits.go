package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      Get rate limit and notification throttle status
// @Tags         limits
// @Produce      json
// @Success      200  {object}  service.LimitsStatus
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/limits [get]
// @Security     BearerAuth
func (h *Handler) getLimits(c *gin.Context) {
	st, err := h.services.LimitsStatus(c.Request.Context(), currentUser(c))
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load limits", "limits_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Reset notification throttle
// @Tags         limits
// @Produce      json
// @Success      200  {object}  map[string]bool  "cleared"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/limits/throttle [delete]
// @Security     BearerAuth
func (h *Handler) clearThrottle(c *gin.Context) {
	cleared, err := h.services.ClearThrottle(c.Request.Context(), currentUser(c))
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to clear throttle", "limits_clear_throttle_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}
