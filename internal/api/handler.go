package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/formype/lax-qlpm/internal/model"
	"github.com/formype/lax-qlpm/internal/notification"
	"github.com/formype/lax-qlpm/internal/session"
	"github.com/formype/lax-qlpm/internal/store"
)

const sessionUserKey = "sessionUser"
const sessionTokenKey = "sessionToken"

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	sessions *session.Manager
	webpush  *webpush.Options
	pool     *notification.WorkerPool
	log      *zap.Logger

	// invalidateCache drops cached GET responses under a URI prefix.
	// Wired by the router when response caching is enabled.
	invalidateCache func(prefix string)
}

// NewHandler creates a new API handler. pool may be nil when push
// notifications are not configured.
func NewHandler(s store.Store, sessions *session.Manager, webpushOptions *webpush.Options, pool *notification.WorkerPool, logger *zap.Logger) *Handler {
	return &Handler{
		store:    s,
		sessions: sessions,
		webpush:  webpushOptions,
		pool:     pool,
		log:      logger,
	}
}

// bearerToken extracts the session token from the Authorization header,
// falling back to a query parameter for EventSource clients that cannot
// set headers.
func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("token")
}

// RequireSession resolves the bearer token and attaches the session
// user to the request context.
func (h *Handler) RequireSession(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing session token"})
		return
	}
	user, ok := h.sessions.Get(token)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired or invalid"})
		return
	}
	c.Set(sessionUserKey, user)
	c.Set(sessionTokenKey, token)
	c.Next()
}

// RequireAdmin rejects requests whose session user is not an
// administrator. Must run after RequireSession.
func (h *Handler) RequireAdmin(c *gin.Context) {
	user := sessionUser(c)
	if user.Role != model.RoleAdministrator {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "administrator access required"})
		return
	}
	c.Next()
}

func sessionUser(c *gin.Context) model.User {
	v, _ := c.Get(sessionUserKey)
	user, _ := v.(model.User)
	return user
}

func sessionToken(c *gin.Context) string {
	v, _ := c.Get(sessionTokenKey)
	token, _ := v.(string)
	return token
}

// machineParams parses the labID/machineNumber pair from the route.
func machineParams(c *gin.Context) (string, int, bool) {
	labID := c.Param("labID")
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid machine number"})
		return "", 0, false
	}
	return labID, number, true
}

// abortStoreError maps store failures onto HTTP statuses with a
// human-readable message.
func (h *Handler) abortStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidCredentials):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrUserExists):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrUserNotFound), errors.Is(err, store.ErrMachineNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrOfflineUnsupported):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrPermissionDenied):
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		h.log.Error("store operation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
