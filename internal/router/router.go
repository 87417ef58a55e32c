package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/worklane/worklane-api/internal/handler"
	"github.com/worklane/worklane-api/internal/middleware"
	"github.com/worklane/worklane-api/internal/token"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the session lifecycle endpoints under
// /api/v1/auth.  None of them require an existing session; each handler
// generates, exchanges or consumes tokens itself.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler) {
	g := e.Group("/api/v1/auth")
	g.POST("/sign-up", a.SignUp)
	g.POST("/log-in", a.Login)
	g.POST("/log-out", a.Logout)
	g.POST("/refresh-token", a.Refresh)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)
	g.POST("/verify-email", a.VerifyEmail)
	g.POST("/request-phone-code", a.RequestPhoneCode)
	g.POST("/verify-phone", a.VerifyPhone)
}

// RegisterUsers registers the account endpoints.  Gates are attached in
// the order they must run: identity resolution first, then the pure
// predicate or ownership checks.
func RegisterUsers(e *echo.Echo, u *handler.UserHandler, codec *token.Codec, users middleware.UserSource, roles middleware.RoleSource) {
	g := e.Group("/api/v1/users")
	g.Use(middleware.Authenticate(codec, users))

	g.GET("/me", u.Me)
	g.GET("/:userId/profile", u.Profile, middleware.RequireOwnership("userId"))
	g.POST("/:userId/deactivate", u.Deactivate, middleware.RequireOwnership("userId"))
	g.POST("/:userId/reactivate", u.Reactivate, middleware.RequireAdmin(roles))
}
