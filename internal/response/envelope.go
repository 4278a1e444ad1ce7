// Package response renders the uniform JSON envelope every endpoint uses:
// {"success": bool, "data"?: any, "error"?: string}.
package response

import "github.com/labstack/echo/v4"

// Envelope is the body of every API response.  Token is only set by the
// endpoints that sign a user in.
type Envelope struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK writes a successful envelope carrying data.
func OK(c echo.Context, status int, data any) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

// Fail writes an error envelope.
func Fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, Envelope{Success: false, Error: msg})
}
