// Package router wires the HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/shuttletrack/api/internal/config"
	"github.com/shuttletrack/api/internal/handler"
	"github.com/shuttletrack/api/internal/middleware"
	"github.com/shuttletrack/api/internal/model"
)

// Register mounts every route on the echo instance. The credential endpoints
// (register, login, google) carry the rate limiter; everything under a
// bearer token goes through JWTAuth.
func Register(e *echo.Echo, h *handler.AuthHandler, cfg config.Config, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	limiter := middleware.RateLimit(rlCfg, rdb)
	authed := middleware.JWTAuth(cfg.JWTSecret)

	auth := e.Group("/api/auth")
	auth.POST("/register", h.Register, limiter)
	auth.POST("/login", h.Login, limiter)
	auth.POST("/google", h.GoogleLogin, limiter)
	auth.GET("/me", h.Me, authed)
	auth.PUT("/profile", h.UpdateProfile, authed)

	admin := e.Group("/api/admin", authed, middleware.RequireRole(model.RoleAdmin))
	admin.PUT("/users/:id/active", h.SetUserActive)
}
