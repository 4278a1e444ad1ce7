package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "context"  // resolver signature
    "errors"   // errors.Is on the resolver error
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/txxdx/devcamper-api/internal/logging"
    "github.com/txxdx/devcamper-api/internal/model"
    "github.com/txxdx/devcamper-api/internal/response"
    "github.com/txxdx/devcamper-api/internal/service"
)

// notAuthorized is the single message returned for every authentication
// failure so that callers cannot tell a missing token from a forged one.
const notAuthorized = "Not authorized to access this route"

// TokenVerifier turns a raw session token into a user ID.
type TokenVerifier interface {
    Verify(raw string) (string, error)
}

// UserResolver loads the user a verified token points at and returns
// service.ErrUnauthorized when it no longer exists.
type UserResolver interface {
    ResolveUser(ctx context.Context, userID string) (model.User, error)
}

// Protect returns an Echo middleware that authenticates the request.  The
// token is taken from an "Authorization: Bearer" header, falling back to
// the session cookie.  On success the resolved user is stored in the
// context (see CurrentUser); every failure yields the same 401 body.
// Resolver failures other than ErrUnauthorized are logged to log.
func Protect(tokens TokenVerifier, users UserResolver, cookieName string, log logging.Logger) echo.MiddlewareFunc {
    if log == nil {
        log = logging.Discard()
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := extractToken(c, cookieName)
            if raw == "" {
                return response.Fail(c, http.StatusUnauthorized, notAuthorized)
            }
            userID, err := tokens.Verify(raw)
            if err != nil {
                return response.Fail(c, http.StatusUnauthorized, notAuthorized)
            }
            u, err := users.ResolveUser(c.Request().Context(), userID)
            if err != nil {
                if errors.Is(err, service.ErrUnauthorized) {
                    return response.Fail(c, http.StatusUnauthorized, notAuthorized)
                }
                log.Error(c.Request().Context(), "resolve user failed", "user_id", userID, "err", err)
                return response.Fail(c, http.StatusInternalServerError, "Server Error")
            }
            setIdentity(c, u)
            return next(c)
        }
    }
}

// extractToken prefers the bearer header; the cookie value "none" is what
// logout leaves behind and counts as absent.
func extractToken(c echo.Context, cookieName string) string {
    auth := strings.TrimSpace(c.Request().Header.Get("Authorization"))
    if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
        return strings.TrimSpace(auth[7:])
    }
    if cookieName == "" {
        return ""
    }
    ck, err := c.Cookie(cookieName)
    if err != nil || ck.Value == "" || ck.Value == "none" {
        return ""
    }
    return ck.Value
}
