package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/formype/lax-qlpm/config"
	"github.com/formype/lax-qlpm/internal/mw"
	"github.com/formype/lax-qlpm/internal/notification"
	"github.com/formype/lax-qlpm/internal/session"
	"github.com/formype/lax-qlpm/internal/store"
)

// NewRouter creates and configures the Gin router.
func NewRouter(cfg *config.Config, s store.Store, sessions *session.Manager, webpushOptions *webpush.Options, pool *notification.WorkerPool, logger *zap.Logger) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, sessions, webpushOptions, pool, logger)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), 5)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)
	handler.invalidateCache = func(prefix string) { mw.Invalidate(cacheStore, prefix) }

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/login", handler.Login)
		api.GET("/backend", handler.GetBackend)

		// The update gate runs before login, so the version endpoint is
		// public and cached.
		api.GET("/version", caching, handler.GetAppVersion)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		authed := api.Group("")
		authed.Use(handler.RequireSession)
		{
			authed.POST("/logout", handler.Logout)
			authed.GET("/me", handler.Me)
			authed.POST("/password", handler.ChangePassword)

			authed.GET("/machines", handler.ListMachines)
			authed.GET("/labs/:labID/machines", handler.ListLabMachines)
			authed.PUT("/labs/:labID/machines/:number", handler.UpdateMachine)
			authed.GET("/labs/:labID/machines/:number/history", handler.MachineHistory)

			authed.GET("/stream/machines", handler.StreamAllMachines)
			authed.GET("/stream/labs/:labID", handler.StreamLab)
			authed.GET("/stream/labs/:labID/machines/:number/history", handler.StreamMachineHistory)
			authed.GET("/stream/settings", handler.StreamGlobalSettings)

			authed.GET("/settings", handler.GetGlobalSettings)
			authed.PUT("/settings/theme", handler.UpdateGlobalTheme)

			authed.GET("/push/subscriptions", handler.GetSubscription)
			authed.PUT("/push/subscriptions", handler.PutSubscription)
			authed.DELETE("/push/subscriptions", handler.DeleteSubscription)

			admin := authed.Group("")
			admin.Use(handler.RequireAdmin)
			{
				admin.GET("/users", handler.ListUsers)
				admin.POST("/users", handler.CreateUser)
				admin.PUT("/users/:username", handler.UpdateUser)
				admin.DELETE("/users/:username", handler.DeleteUser)
				admin.POST("/users/:username/password-reset", handler.ResetUserPassword)

				admin.PUT("/version", handler.UpdateAppVersion)
			}
		}
	}

	return r
}
