package handlers

import (
	"errors"
	"net/http"
	"strings"

	"weather_station/internal/service"

	"github.com/gin-gonic/gin"
)

// Device credential headers sent by stations.
const (
	headerDeviceID     = "X-Device-Id"
	headerSessionToken = "X-Session-Token"
	headerTimestamp    = "X-Timestamp"
	headerSignature    = "X-Signature"

	ctxUserID   = "userId"
	ctxDeviceID = "deviceId"
)

func (h *Handler) userIdMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing Authorization header",
		})
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid Authorization header format",
		})
		return
	}

	userId, err := h.services.ParseToken(parts[1])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	c.Set(ctxUserID, userId)
	c.Next()
}

// deviceAuthMiddleware checks station credentials when device auth is
// enabled. On success the device id is stored under ctxDeviceID.
func (h *Handler) deviceAuthMiddleware(c *gin.Context) {
	if !h.services.Devices.RequireAuth() {
		c.Next()
		return
	}

	cred := service.DeviceCredentials{
		DeviceID:     strings.TrimSpace(c.GetHeader(headerDeviceID)),
		SessionToken: strings.TrimSpace(c.GetHeader(headerSessionToken)),
		Timestamp:    strings.TrimSpace(c.GetHeader(headerTimestamp)),
		Signature:    strings.TrimSpace(c.GetHeader(headerSignature)),
	}
	if cred.DeviceID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing " + headerDeviceID + " header",
		})
		return
	}

	if err := h.services.Devices.Authenticate(c.Request.Context(), cred); err != nil {
		code, msg := deviceAuthError(err)
		if code == http.StatusInternalServerError && h.log != nil {
			h.log.Errorw("device_auth_failed", "device_id", cred.DeviceID, "err", err)
		}
		c.AbortWithStatusJSON(code, gin.H{"error": msg})
		return
	}

	c.Set(ctxDeviceID, cred.DeviceID)
	c.Next()
}

// deviceAuthError maps device auth failures to a status and a client message.
func deviceAuthError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidDevice),
		errors.Is(err, service.ErrInvalidSession),
		errors.Is(err, service.ErrInvalidSignature),
		errors.Is(err, service.ErrClockDrift):
		return http.StatusUnauthorized, err.Error()
	default:
		return http.StatusInternalServerError, errInternalError
	}
}
