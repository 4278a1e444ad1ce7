package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"                     // import the Echo web framework to handle routing
	echomw "github.com/labstack/echo/v4/middleware" // stock echo middleware (recover, secure headers, CORS...)
	"github.com/redis/go-redis/v9"

	"github.com/txxdx/devcamper-api/internal/config"
	"github.com/txxdx/devcamper-api/internal/handler"    // import the handlers that implement the endpoints
	"github.com/txxdx/devcamper-api/internal/logging"
	"github.com/txxdx/devcamper-api/internal/middleware" // access guard, rate limiting and input hygiene
)

// RegisterRoutes registers non-authenticated infrastructure routes on the
// provided Echo instance.  At the moment it only exposes a health check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring systems poll this endpoint.
	e.GET("/healthz", handler.Health)
}

// RegisterSecurity installs the global middleware stack in the order the
// request passes through it: panic recovery, request IDs, access logging
// (development only), body size cap, operator stripping, security headers,
// XSS escaping, rate limiting, parameter pollution guard, CORS and finally
// static files.
func RegisterSecurity(e *echo.Echo, cfg config.Config, rl config.RateLimitConfig, rdb *redis.Client, log logging.Logger) {
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	if !cfg.IsProduction() {
		e.Use(requestLogger(log))
	}
	e.Use(echomw.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.Sanitize())

	secure := echomw.DefaultSecureConfig
	secure.ContentSecurityPolicy = "default-src 'self'"
	secure.ReferrerPolicy = "no-referrer"
	if cfg.IsProduction() {
		secure.HSTSMaxAge = 15552000
	}
	e.Use(echomw.SecureWithConfig(secure))
	e.Use(middleware.XSSClean())
	e.Use(middleware.NewRateLimiter(rl, rdb))
	e.Use(middleware.HPP())

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: origins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	if cfg.StaticDir != "" {
		e.Use(echomw.StaticWithConfig(echomw.StaticConfig{Root: cfg.StaticDir}))
	}
}

// RegisterAuth registers all authentication-related routes under
// /api/v1/auth.  protect is the access guard; it is attached only to the
// routes that need an authenticated user.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, protect echo.MiddlewareFunc) {
	g := e.Group("/api/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.GET("/logout", a.Logout)
	g.GET("/me", a.GetMe, protect)
	g.PUT("/updatedetails", a.UpdateDetails, protect)
	g.PUT("/updatepassword", a.UpdatePassword, protect)
	g.POST("/forgotpassword", a.ForgotPassword)
	// The reset token in the path is the only credential this route needs.
	g.PUT("/resetpassword/:resettoken", a.ResetPassword)
}

// requestLogger is the development access log, one line per request.
func requestLogger(log logging.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			args := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String(), "request_id", v.RequestID}
			if v.Error != nil {
				args = append(args, "err", v.Error)
				log.Warn(c.Request().Context(), "request", args...)
				return nil
			}
			log.Info(c.Request().Context(), "request", args...)
			return nil
		},
	})
}
