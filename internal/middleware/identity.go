package middleware

// identity.go defines the context keys the access guard fills in and the
// helpers handlers use to read them back.

import (
    "github.com/labstack/echo/v4"

    "github.com/txxdx/devcamper-api/internal/model"
)

const (
    ctxUser   = "user"
    ctxUserID = "user_id"
    ctxRole   = "role"
)

// CurrentUser returns the user resolved by Protect.
func CurrentUser(c echo.Context) (model.User, bool) {
    u, ok := c.Get(ctxUser).(model.User)
    return u, ok && u.ID != ""
}

func setIdentity(c echo.Context, u model.User) {
    c.Set(ctxUser, u)
    c.Set(ctxUserID, u.ID)
    c.Set(ctxRole, u.Role)
}
