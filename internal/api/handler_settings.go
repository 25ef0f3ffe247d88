package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/formype/lax-qlpm/internal/model"
)

// GetGlobalSettings returns the current shared settings, with the
// default theme substituted when none have been saved yet.
func (h *Handler) GetGlobalSettings(c *gin.Context) {
	var snapshot model.GlobalSettings
	cancel := h.store.SubscribeToGlobalSettings(func(settings model.GlobalSettings) {
		snapshot = settings
	})
	cancel()
	c.JSON(http.StatusOK, snapshot)
}

type updateThemeRequest struct {
	ThemeID string `json:"themeId" binding:"required"`
}

// UpdateGlobalTheme switches the active theme for everyone. Last
// writer wins.
func (h *Handler) UpdateGlobalTheme(c *gin.Context) {
	var req updateThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := sessionUser(c)
	if err := h.store.UpdateGlobalTheme(c.Request.Context(), req.ThemeID, user.FullName); err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetAppVersion returns the latest published version, or 204 when no
// update has been published. Clients check this once per session.
func (h *Handler) GetAppVersion(c *gin.Context) {
	version, err := h.store.GetAppVersion(c.Request.Context())
	if err != nil {
		h.abortStoreError(c, err)
		return
	}
	if version == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, version)
}

type updateVersionRequest struct {
	Version     string `json:"version" binding:"required"`
	DownloadURL string `json:"downloadUrl" binding:"required"`
}

// UpdateAppVersion publishes a new client version, arming the
// client-side update gate.
func (h *Handler) UpdateAppVersion(c *gin.Context) {
	var req updateVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := sessionUser(c)
	if err := h.store.UpdateAppVersion(c.Request.Context(), req.Version, req.DownloadURL, user.FullName); err != nil {
		h.abortStoreError(c, err)
		return
	}
	if h.invalidateCache != nil {
		h.invalidateCache("/api/version")
	}
	c.Status(http.StatusNoContent)
}
