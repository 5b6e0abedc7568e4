package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"stove_coordination/internal/service"

	"github.com/gin-gonic/gin"
)

// Accepted layouts for the from/to query parameters, tried in order. All are
// read as UTC.
var queryTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

var (
	errBadFrom  = errors.New("invalid 'from' time; use RFC3339 or YYYY-MM-DD")
	errBadTo    = errors.New("invalid 'to' time; use RFC3339 or YYYY-MM-DD")
	errBadRange = errors.New("'from' must be <= 'to'")
)

// @Summary      List coordination events
// @Description  Events of the calling user, oldest first. 'from' and 'to' accept RFC3339, 'YYYY-MM-DD HH:MM:SS' or 'YYYY-MM-DD'; a date-only 'to' covers the whole day.
// @Tags         logs
// @Produce      json
// @Param        from  query   string  false  "Start of range"  example(2025-08-01)
// @Param        to    query   string  false  "End of range, inclusive"  example(2025-08-31)
// @Param        type  query   string  false  "Event type"  Enums(CYCLE,BOOST,RESTORE,PAUSE,RESUME,DEBOUNCE,NOTIFY,VENDOR_ERROR)
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	filter, err := logFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.services.EventLog.List(c.Request.Context(), currentUser(c), filter)
	switch {
	case service.IsFilterError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, "failed to load logs", "logs_list_failed", err,
			"from", filter.From, "to", filter.To, "type", filter.Type)
	default:
		c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
	}
}

// logFilterFromQuery reads from, to and type. Type is only trimmed here; the
// service decides which values are known.
func logFilterFromQuery(c *gin.Context) (service.LogFilter, error) {
	f := service.LogFilter{Type: strings.TrimSpace(c.Query("type"))}

	if raw := c.Query("from"); raw != "" {
		t, ok := parseQueryTime(raw)
		if !ok {
			return f, errBadFrom
		}
		f.From = t
	}
	if raw := c.Query("to"); raw != "" {
		t, ok := parseQueryTime(raw)
		if !ok {
			return f, errBadTo
		}
		if !strings.ContainsAny(raw, "T ") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = t
	}

	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, errBadRange
	}
	return f, nil
}

func parseQueryTime(s string) (time.Time, bool) {
	for _, layout := range queryTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
