package handlers

import (
	"errors"
	"net/http"

	"stove_coordination/internal/models"
	"stove_coordination/internal/service"

	"github.com/gin-gonic/gin"
)

// @Summary      Get preferences
// @Tags         preferences
// @Produce      json
// @Success      200  {object}  models.CoordinationPreferences
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/preferences [get]
// @Security     BearerAuth
func (h *Handler) getPreferences(c *gin.Context) {
	p, err := h.services.GetPreferences(c.Request.Context(), currentUser(c))
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load preferences", "preferences_get_failed", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary      Update preferences
// @Description  Partial update; omitted fields keep their stored value
// @Tags         preferences
// @Accept       json
// @Produce      json
// @Param        body  body   service.PreferencesPatch  true  "Preferences patch"
// @Success      200   {object}  models.CoordinationPreferences
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/preferences [put]
// @Security     BearerAuth
func (h *Handler) updatePreferences(c *gin.Context) {
	var patch service.PreferencesPatch
	if ok := h.bindJSONOrBadRequest(c, &patch); !ok {
		return
	}
	p, err := h.services.UpdatePreferences(c.Request.Context(), currentUser(c), patch)
	if err != nil {
		if errors.Is(err, models.ErrInvalidPreferences) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to save preferences", "preferences_update_failed", err)
		return
	}
	c.JSON(http.StatusOK, p)
}
