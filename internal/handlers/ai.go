package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"weather_station/internal/ml"
	"weather_station/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errTrainStart   = "failed to start training"
	errAIStatus     = "failed to load AI status"
	errForceInvalid = "invalid 'force_single_class'; use true or false"
	statusRejected  = "rejected"
)

// trainRequest accepts "force" as a short alias of force_single_class.
type trainRequest struct {
	ForceSingleClass bool `json:"force_single_class"`
	Force            bool `json:"force"`
}

// @Summary      Train classifier
// @Description  Starts an asynchronous training run on the buffered readings. Without force the buffer must pass the readiness gate. Force may also be passed as ?force_single_class=true (or ?force=true).
// @Tags         ai
// @Accept       json
// @Produce      json
// @Param        input               body   trainRequest  false  "force single-class training"
// @Param        force_single_class  query  bool          false  "force single-class training"
// @Success      202    {object}  service.TriggerResult  "training_started or training_in_progress"
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      409    {object}  map[string]interface{}  "not ready, with readiness"
// @Failure      500    {object}  map[string]string
// @Router       /api/v1/ai/train [post]
// @Security     BearerAuth
func (h *Handler) trainModel(c *gin.Context) {
	var req trainRequest
	if c.Request.ContentLength > 0 {
		if ok := h.bindJSONOrBadRequest(c, &req); !ok {
			return
		}
	}
	force := req.ForceSingleClass || req.Force
	for _, key := range []string{"force_single_class", "force"} {
		q := c.Query(key)
		if q == "" {
			continue
		}
		v, err := strconv.ParseBool(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errForceInvalid})
			return
		}
		force = force || v
	}

	res, err := h.services.Trigger(c.Request.Context(), force)
	switch {
	case errors.Is(err, service.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{
			"status":    statusRejected,
			"error":     err.Error(),
			"readiness": res.Readiness,
		})
		return
	case errors.Is(err, ml.ErrTrainingInProgress):
		c.JSON(http.StatusAccepted, res)
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errTrainStart, "training_start_failed", err, "force_single_class", force)
		return
	}

	c.JSON(http.StatusAccepted, res)
}

// @Summary      AI status
// @Description  Model state, last evaluation report, last run outcome, artifact checksums and readiness.
// @Tags         ai
// @Produce      json
// @Success      200  {object}  service.AIStatus
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/ai/status [get]
// @Security     BearerAuth
func (h *Handler) getAIStatus(c *gin.Context) {
	st, err := h.services.Training.Status(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errAIStatus, "ai_status_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Training readiness
// @Tags         ai
// @Produce      json
// @Success      200  {object}  models.Readiness
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/ai/readiness [get]
// @Security     BearerAuth
func (h *Handler) getReadiness(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Training.Readiness())
}
