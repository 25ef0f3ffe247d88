package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/formype/lax-qlpm/internal/model"
)

// ListUsers returns every account's public profile.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.store.GetUsers(c.Request.Context())
	if err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

type createUserRequest struct {
	Username string `json:"username" binding:"required"`
	FullName string `json:"fullName" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// CreateUser creates an account with the default password assigned.
func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := model.User{
		Username: req.Username,
		Password: model.DefaultPassword,
		FullName: req.FullName,
		Role:     req.Role,
	}
	if err := h.store.CreateUser(c.Request.Context(), user); err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

type updateUserRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Role     string `json:"role" binding:"required"`
}

// UpdateUser changes display name and role only; username and password
// are not touchable through this path.
func (h *Handler) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	username := c.Param("username")
	if err := h.store.UpdateUser(c.Request.Context(), username, req.FullName, req.Role); err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteUser removes an account. The session user can never delete
// their own account; that guard belongs to this layer, not the store.
func (h *Handler) DeleteUser(c *gin.Context) {
	username := c.Param("username")
	if username == sessionUser(c).Username {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot delete your own account"})
		return
	}

	if err := h.store.DeleteUser(c.Request.Context(), username); err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ResetUserPassword sets an account's password back to the default.
func (h *Handler) ResetUserPassword(c *gin.Context) {
	username := c.Param("username")
	if err := h.store.ResetUserPassword(c.Request.Context(), username); err != nil {
		h.abortStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
