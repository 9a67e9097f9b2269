package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"weather_station/internal/models"
	"weather_station/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid = "invalid 'from' time; use RFC3339, 'YYYY-MM-DD HH:MM:SS' or YYYY-MM-DD"
	errToInvalid   = "invalid 'to' time; use RFC3339, 'YYYY-MM-DD HH:MM:SS' or YYYY-MM-DD"
	errRangeOrder  = "'from' must be <= 'to'"
	errTypeUnknown = "unknown event type"
	errLoadLogs    = "failed to load logs"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

var (
	errBadFrom  = errors.New(errFromInvalid)
	errBadTo    = errors.New(errToInvalid)
	errBadOrder = errors.New(errRangeOrder)
	errBadType  = errors.New(errTypeUnknown)

	knownEvents = []string{
		models.EventTrainingStarted,
		models.EventTrainingDone,
		models.EventTrainingFailed,
		models.EventTrainingRejected,
		models.EventBackup,
		models.EventRestore,
		models.EventDeviceRegistered,
	}
	queryLayouts = []string{time.RFC3339, layoutDateTime, layoutDate}
)

// @Summary      List logs
// @Description  Station events filtered by time range and type. A date-only 'to' covers that whole day.
// @Tags         logs
// @Produce      json
// @Param        from  query   string  false  "Start of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2025-06-01)
// @Param        to    query   string  false  "End of range, same formats"  example(2025-06-30)
// @Param        type  query   string  false  "Event type"  Enums(TRAINING_STARTED,TRAINING_DONE,TRAINING_FAILED,TRAINING_REJECTED,BACKUP,RESTORE,DEVICE_REGISTERED)
// @Success      200   {object}  map[string]interface{}  "count, events"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/logs [get]
// @Security     BearerAuth
func (h *Handler) getLogs(c *gin.Context) {
	f, err := logFilterFromQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.services.EventLog.List(c.Request.Context(), f)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadLogs, "logs_list_failed", err,
			"from", f.From, "to", f.To, "type", f.Type)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(events), "events": events})
}

func logFilterFromQuery(c *gin.Context) (service.LogFilter, error) {
	var f service.LogFilter

	if qs := c.Query("from"); qs != "" {
		t, ok := parseQueryTime(qs)
		if !ok {
			return f, errBadFrom
		}
		f.From = t
	}
	if qs := c.Query("to"); qs != "" {
		t, ok := parseQueryTime(qs)
		if !ok {
			return f, errBadTo
		}
		if !strings.ContainsAny(qs, "T ") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = t
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.From.After(f.To) {
		return f, errBadOrder
	}

	if typ := strings.ToUpper(strings.TrimSpace(c.Query("type"))); typ != "" {
		if !slices.Contains(knownEvents, typ) {
			return f, fmt.Errorf("%w %q", errBadType, typ)
		}
		f.Type = typ
	}
	return f, nil
}

// parseQueryTime accepts any of queryLayouts and normalizes to UTC.
func parseQueryTime(s string) (time.Time, bool) {
	for _, layout := range queryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
