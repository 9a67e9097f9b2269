package handlers

import (
	"net/http"
	"strings"
	"time"

	"weather_station/internal/models"
	"weather_station/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errRegisterDevice = "failed to register device"
	errListDevices    = "failed to list devices"
)

type registerDeviceRequest struct {
	Name string `json:"name" example:"garden station"`
}

// RegisteredDevice is returned once at registration; the secret is never shown again.
type RegisteredDevice struct {
	DeviceID  string    `json:"device_id" example:"3f2a9c0d1b7e4a55"`
	Name      string    `json:"name" example:"garden station"`
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"created_at"`
}

// @Summary      Device handshake
// @Description  Exchanges HMAC-SHA256(secret, "device_id:timestamp") for a session token.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        input  body      service.HandshakeRequest  true  "signed handshake"
// @Success      200    {object}  models.Session
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Router       /device/handshake [post]
func (h *Handler) handshake(c *gin.Context) {
	var req service.HandshakeRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}

	sess, err := h.services.Handshake(c.Request.Context(), req)
	if err != nil {
		code, msg := deviceAuthError(err)
		if h.log != nil {
			h.log.Infow("device_handshake_failed", "device_id", req.DeviceID, "err", err)
		}
		c.JSON(code, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// @Summary      Register device
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        input  body      registerDeviceRequest  false  "display name"
// @Success      201    {object}  RegisteredDevice
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /api/v1/devices [post]
// @Security     BearerAuth
func (h *Handler) registerDevice(c *gin.Context) {
	var req registerDeviceRequest
	if c.Request.ContentLength > 0 {
		if ok := h.bindJSONOrBadRequest(c, &req); !ok {
			return
		}
	}

	d, err := h.services.Register(c.Request.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errRegisterDevice, "device_register_failed", err)
		return
	}
	if h.log != nil {
		h.log.Infow("device_registered", "device_id", d.ID, "name", d.Name)
	}
	c.JSON(http.StatusCreated, RegisteredDevice{
		DeviceID:  d.ID,
		Name:      d.Name,
		Secret:    d.Secret,
		CreatedAt: d.CreatedAt,
	})
}

// @Summary      List devices
// @Tags         devices
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, devices"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/devices [get]
// @Security     BearerAuth
func (h *Handler) listDevices(c *gin.Context) {
	devices, err := h.services.Devices.List(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListDevices, "devices_list_failed", err)
		return
	}
	if devices == nil {
		devices = []models.Device{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(devices),
		"devices": devices,
	})
}
