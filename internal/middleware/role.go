package middleware // middleware provides shared request processing for handlers

import (
    "fmt"      // fmt builds the rejection message
    "net/http" // http package defines standard HTTP status codes

    "github.com/labstack/echo/v4" // echo provides middleware chaining and context

    "github.com/txxdx/devcamper-api/internal/response"
)

// Authorize returns a middleware function that enforces that the
// authenticated user has one of the specified roles.  It must run after
// Protect, which stores the role in the context under "role".  A request
// whose role is not in the allowed set is aborted with 403 Forbidden.
func Authorize(roles ...string) echo.MiddlewareFunc {
    // Build a set of allowed roles for constant‑time lookups.
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            role, ok := c.Get(ctxRole).(string)
            if !ok || role == "" {
                return response.Fail(c, http.StatusUnauthorized, notAuthorized)
            }
            if !allowed[role] {
                return response.Fail(c, http.StatusForbidden,
                    fmt.Sprintf("User role %s is not authorized to access this route", role))
            }
            return next(c)
        }
    }
}
