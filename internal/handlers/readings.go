package handlers

import (
	"errors"
	"net/http"
	"strings"

	"weather_station/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errIngestFailed    = "failed to store reading"
	errLoadReadings    = "failed to load readings"
	errForecastFailed  = "failed to build forecast"
	errEmptySensorBody = "request body must be a JSON object"
)

type ingestResponse struct {
	Status string `json:"status"`
	service.IngestResult
}

// SensorPayload documents the fields a station may send. Unknown fields are
// ignored and aliases such as temp_c or voltage are accepted.
type SensorPayload struct {
	DeviceID       string  `json:"device_id,omitempty" example:"esp32"`
	Temperature    float64 `json:"temperature" example:"24.5"`
	Humidity       float64 `json:"humidity" example:"55"`
	AirQuality     float64 `json:"air_quality" example:"42"`
	LightIntensity float64 `json:"light_intensity" example:"800"`
	BatteryVoltage float64 `json:"battery_voltage" example:"3.95"`
	Latitude       float64 `json:"latitude,omitempty" example:"41.31"`
	Longitude      float64 `json:"longitude,omitempty" example:"69.24"`
	Timestamp      string  `json:"timestamp,omitempty" example:"2025-06-01T12:00:00Z"`
}

// @Summary      Ingest sensor reading
// @Description  Accepts one station payload, stores it, runs the classifier and forecast and pushes realtime updates. When device auth is on, send X-Device-Id with either X-Session-Token or X-Timestamp and X-Signature.
// @Tags         sensor
// @Accept       json
// @Produce      json
// @Param        payload  body      SensorPayload  true  "sensor reading"
// @Success      200      {object}  ingestResponse
// @Failure      400      {object}  map[string]string
// @Failure      401      {object}  map[string]string
// @Failure      403      {object}  map[string]string
// @Failure      500      {object}  map[string]string
// @Router       /api/sensor-data [post]
func (h *Handler) ingestReading(c *gin.Context) {
	var payload map[string]any
	if ok := h.bindJSONOrBadRequest(c, &payload); !ok {
		return
	}
	if payload == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errEmptySensorBody})
		return
	}

	res, err := h.services.Ingest(c.Request.Context(), service.IngestInput{
		Source:   "http",
		DeviceID: c.GetString(ctxDeviceID),
		Payload:  payload,
	})
	switch {
	case errors.Is(err, service.ErrInvalidPayload):
		if h.log != nil {
			h.log.Infow("sensor_payload_rejected", "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, service.ErrDeviceMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errIngestFailed, "ingest_failed", err)
		return
	}

	c.JSON(http.StatusOK, ingestResponse{Status: statusSuccess, IngestResult: res})
}

// @Summary      List readings
// @Tags         sensor
// @Produce      json
// @Param        device_id  query     string  false  "Only this device"
// @Param        limit      query     int     false  "Newest N readings (default 100, max 1000)"
// @Success      200        {object}  map[string]interface{}  "count, readings"
// @Failure      400        {object}  map[string]string
// @Failure      401        {object}  map[string]string
// @Failure      500        {object}  map[string]string
// @Router       /api/v1/readings [get]
// @Security     BearerAuth
func (h *Handler) getReadings(c *gin.Context) {
	limit, err := parseLimit(c, defaultListLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidLimit})
		return
	}
	deviceID := strings.TrimSpace(c.Query("device_id"))

	rs, err := h.services.Readings.Recent(c.Request.Context(), deviceID, limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadReadings, "readings_list_failed", err, "device_id", deviceID, "limit", limit)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(rs),
		"readings": rs,
	})
}

// @Summary      Latest reading
// @Tags         sensor
// @Produce      json
// @Success      200  {object}  models.SensorReading
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/readings/latest [get]
// @Security     BearerAuth
func (h *Handler) getLatestReading(c *gin.Context) {
	r := h.services.Readings.Latest()
	if r == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": errNoReadings})
		return
	}
	c.JSON(http.StatusOK, r)
}

// @Summary      Prediction history
// @Tags         ai
// @Produce      json
// @Param        limit  query     int  false  "Newest N predictions (default: all buffered)"
// @Success      200    {object}  map[string]interface{}  "count, predictions"
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Router       /api/v1/predictions [get]
// @Security     BearerAuth
func (h *Handler) getPredictions(c *gin.Context) {
	limit, err := parseLimit(c, 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidLimit})
		return
	}
	ps := h.services.Predictions.History(limit)
	c.JSON(http.StatusOK, gin.H{
		"count":       len(ps),
		"predictions": ps,
	})
}

// @Summary      Three hour forecast
// @Description  Rule-based forecast from the latest reading and recent history of a device.
// @Tags         ai
// @Produce      json
// @Param        device_id  query     string  false  "Device (default: latest reading's device)"
// @Success      200        {object}  models.ForecastResult
// @Failure      401        {object}  map[string]string
// @Failure      404        {object}  map[string]string
// @Router       /api/v1/forecast [get]
// @Security     BearerAuth
func (h *Handler) getForecast(c *gin.Context) {
	deviceID := strings.TrimSpace(c.Query("device_id"))
	f, err := h.services.Predictions.Forecast(deviceID)
	if errors.Is(err, service.ErrNoReadings) {
		c.JSON(http.StatusNotFound, gin.H{"error": errNoReadings})
		return
	}
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errForecastFailed, "forecast_failed", err, "device_id", deviceID)
		return
	}
	c.JSON(http.StatusOK, f)
}
