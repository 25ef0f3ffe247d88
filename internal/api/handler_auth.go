package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/formype/lax-qlpm/internal/model"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates against the store and opens a session.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.store.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.abortStoreError(c, err)
		return
	}

	token := h.sessions.Create(*user)
	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// Logout ends the current session.
func (h *Handler) Logout(c *gin.Context) {
	h.sessions.Delete(sessionToken(c))
	c.Status(http.StatusNoContent)
}

// Me returns the session user, letting clients rehydrate state after a
// reload without re-sending credentials.
func (h *Handler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, sessionUser(c))
}

type changePasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required,min=3"`
}

// ChangePassword changes the session user's own password. Reusing the
// default password is rejected here, before the store is involved.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.NewPassword == model.DefaultPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new password must differ from the default password"})
		return
	}

	user := sessionUser(c)
	if err := h.store.ChangePassword(c.Request.Context(), user.Username, req.NewPassword); err != nil {
		h.abortStoreError(c, err)
		return
	}

	// The session profile carries the default-password flag; clear it.
	user.IsDefaultPassword = false
	h.sessions.Update(sessionToken(c), user)
	c.Status(http.StatusNoContent)
}

// GetBackend reports which backend this session runs on, so clients
// can surface offline mode and disable remote-only features.
func (h *Handler) GetBackend(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"remote": h.store.IsRemote()})
}
