package handlers

import (
	"errors"
	"net/http"
	"strings"

	"weather_station/internal/models"
	"weather_station/internal/repository"

	"github.com/gin-gonic/gin"
)

const (
	errBackupFailed  = "failed to write backup"
	errRestoreFailed = "failed to restore backup"
	errListBackups   = "failed to list backups"
)

type restoreRequest struct {
	// Backup file name; empty restores the newest.
	File string `json:"file" example:"backup_20250601_120000.json"`
}

// @Summary      Create backup
// @Tags         backup
// @Produce      json
// @Success      201  {object}  models.BackupFile
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/backup [post]
// @Security     BearerAuth
func (h *Handler) createBackup(c *gin.Context) {
	f, err := h.services.Backup.Create(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errBackupFailed, "backup_failed", err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

// @Summary      Restore backup
// @Description  Replaces the reading and prediction buffers with a backup. The trained model is not touched.
// @Tags         backup
// @Accept       json
// @Produce      json
// @Param        input  body      restoreRequest  false  "backup to restore"
// @Success      200    {object}  service.RestoreResult
// @Failure      400    {object}  map[string]string
// @Failure      401    {object}  map[string]string
// @Failure      404    {object}  map[string]string
// @Failure      500    {object}  map[string]string
// @Router       /api/v1/restore [post]
// @Security     BearerAuth
func (h *Handler) restoreBackup(c *gin.Context) {
	var req restoreRequest
	if c.Request.ContentLength > 0 {
		if ok := h.bindJSONOrBadRequest(c, &req); !ok {
			return
		}
	}

	name := strings.TrimSpace(req.File)
	res, err := h.services.Restore(c.Request.Context(), name)
	switch {
	case errors.Is(err, repository.ErrNoBackup):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, repository.ErrInvalidBackupName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errRestoreFailed, "restore_failed", err, "file", name)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      List backups
// @Tags         backup
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, backups"
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/backups [get]
// @Security     BearerAuth
func (h *Handler) listBackups(c *gin.Context) {
	files, err := h.services.Backups()
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListBackups, "backups_list_failed", err)
		return
	}
	if files == nil {
		files = []models.BackupFile{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(files),
		"backups": files,
	})
}
