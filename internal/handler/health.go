package handler // declare the package name; contains HTTP handlers

import (
    "net/http" // net/http provides status codes and response helpers

    "github.com/labstack/echo/v4" // echo is the web framework used for this project

    "github.com/txxdx/devcamper-api/internal/response"
)

// Health is a simple health‑check endpoint used by load balancers and
// monitoring systems.  It answers with the standard envelope so every
// route of the API speaks the same format.
func Health(c echo.Context) error {
    return response.OK(c, http.StatusOK, "ok")
}
