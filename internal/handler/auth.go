package handler

import (
    "errors"   // errors.Is maps service errors to statuses
    "net/http" // HTTP status codes and cookies
    "strings"  // trimming of validation messages
    "time"     // cookie expiry for logout

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "github.com/txxdx/devcamper-api/internal/config"     // app configuration
    "github.com/txxdx/devcamper-api/internal/logging"    // structured logger
    "github.com/txxdx/devcamper-api/internal/middleware" // access guard context helpers
    "github.com/txxdx/devcamper-api/internal/model"      // public user view
    "github.com/txxdx/devcamper-api/internal/response"   // uniform envelope
    "github.com/txxdx/devcamper-api/internal/service"    // credential lifecycle
    "github.com/txxdx/devcamper-api/internal/utils"      // session token type
)

// ResetPath is where reset links point; the raw token is appended.
const ResetPath = "/api/v1/auth/resetpassword"

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg  config.Config
    Auth *service.AuthService
    Log  logging.Logger
}

func NewAuthHandler(cfg config.Config, auth *service.AuthService, log logging.Logger) *AuthHandler {
    if auth == nil || log == nil {
        panic("nil dependency passed to NewAuthHandler")
    }
    return &AuthHandler{Cfg: cfg, Auth: auth, Log: log}
}

// ----- DTOs -----

type registerReq struct {
    Name     string `json:"name"`
    Email    string `json:"email"`
    Password string `json:"password"`
    Role     string `json:"role"` // user | publisher
}
type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}
type updateDetailsReq struct {
    Name  string `json:"name"`
    Email string `json:"email"`
}
type updatePasswordReq struct {
    CurrentPassword string `json:"currentPassword"`
    NewPassword     string `json:"newPassword"`
}
type forgotPasswordReq struct {
    Email string `json:"email"`
}
type resetPasswordReq struct {
    Password string `json:"password"`
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return response.Fail(c, http.StatusBadRequest, "Invalid request body")
    }
    u, tok, err := h.Auth.Register(c.Request().Context(), service.RegisterInput{
        Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role,
    })
    if err != nil {
        return h.writeError(c, err)
    }
    return h.sendTokenResponse(c, http.StatusCreated, u, tok)
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return response.Fail(c, http.StatusBadRequest, "Invalid request body")
    }
    u, tok, err := h.Auth.Login(c.Request().Context(), req.Email, req.Password)
    if err != nil {
        return h.writeError(c, err)
    }
    return h.sendTokenResponse(c, http.StatusOK, u, tok)
}

// Logout handles GET /api/v1/auth/logout.  It only overwrites the cookie;
// the token itself stays valid until it expires.
func (h *AuthHandler) Logout(c echo.Context) error {
    ck := h.cookie("none", time.Now().Add(10*time.Second))
    c.SetCookie(ck)
    return response.OK(c, http.StatusOK, struct{}{})
}

// GetMe handles GET /api/v1/auth/me.
func (h *AuthHandler) GetMe(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return h.writeError(c, service.ErrUnauthorized)
    }
    u, err := h.Auth.GetMe(c.Request().Context(), cur.ID)
    if err != nil {
        return h.writeError(c, err)
    }
    return response.OK(c, http.StatusOK, u)
}

// UpdateDetails handles PUT /api/v1/auth/updatedetails.
func (h *AuthHandler) UpdateDetails(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return h.writeError(c, service.ErrUnauthorized)
    }
    var req updateDetailsReq
    if err := c.Bind(&req); err != nil {
        return response.Fail(c, http.StatusBadRequest, "Invalid request body")
    }
    u, err := h.Auth.UpdateDetails(c.Request().Context(), cur.ID, service.UpdateDetailsInput{Name: req.Name, Email: req.Email})
    if err != nil {
        return h.writeError(c, err)
    }
    return response.OK(c, http.StatusOK, u)
}

// UpdatePassword handles PUT /api/v1/auth/updatepassword.
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
    cur, ok := middleware.CurrentUser(c)
    if !ok {
        return h.writeError(c, service.ErrUnauthorized)
    }
    var req updatePasswordReq
    if err := c.Bind(&req); err != nil {
        return response.Fail(c, http.StatusBadRequest, "Invalid request body")
    }
    u, tok, err := h.Auth.UpdatePassword(c.Request().Context(), cur.ID, req.CurrentPassword, req.NewPassword)
    if err != nil {
        if errors.Is(err, service.ErrInvalidCredentials) {
            return response.Fail(c, http.StatusUnauthorized, "Password is incorrect")
        }
        return h.writeError(c, err)
    }
    return h.sendTokenResponse(c, http.StatusOK, u, tok)
}

// ForgotPassword handles POST /api/v1/auth/forgotpassword.  The response is
// the same whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
    var req forgotPasswordReq
    if err := c.Bind(&req); err != nil {
        return response.Fail(c, http.StatusBadRequest, "Invalid request body")
    }
    base, err := h.resetBase(c)
    if err != nil {
        return h.writeError(c, err)
    }
    if err := h.Auth.ForgotPassword(c.Request().Context(), req.Email, base); err != nil {
        return h.writeError(c, err)
    }
    return response.OK(c, http.StatusOK, "If that email is registered, a reset link has been sent")
}

// ResetPassword handles PUT /api/v1/auth/resetpassword/:resettoken.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
    var req resetPasswordReq
    if err := c.Bind(&req); err != nil {
        return response.Fail(c, http.StatusBadRequest, "Invalid request body")
    }
    u, tok, err := h.Auth.ResetPassword(c.Request().Context(), c.Param("resettoken"), req.Password)
    if err != nil {
        return h.writeError(c, err)
    }
    return h.sendTokenResponse(c, http.StatusOK, u, tok)
}

// resetBase returns the absolute prefix for reset links.  The configured
// RESET_URL_BASE wins; the request host is only trusted outside production.
func (h *AuthHandler) resetBase(c echo.Context) (string, error) {
    if h.Cfg.ResetURLBase != "" {
        return h.Cfg.ResetURLBase + ResetPath, nil
    }
    if h.Cfg.IsProduction() {
        return "", errors.New("reset url base not configured")
    }
    return c.Scheme() + "://" + c.Request().Host + ResetPath, nil
}

// sendTokenResponse sets the session cookie and returns the token in the body.
func (h *AuthHandler) sendTokenResponse(c echo.Context, status int, u model.PublicUser, tok utils.SessionToken) error {
    c.SetCookie(h.cookie(tok.Token, tok.Exp))
    return c.JSON(status, response.Envelope{Success: true, Token: tok.Token, Data: u})
}

func (h *AuthHandler) cookie(value string, expires time.Time) *http.Cookie {
    ck := &http.Cookie{
        Name:     h.Cfg.CookieName,
        Value:    value,
        Path:     "/",
        Expires:  expires,
        HttpOnly: true,
        SameSite: http.SameSiteLaxMode,
    }
    if h.Cfg.IsProduction() {
        ck.Secure = true
        ck.SameSite = http.SameSiteStrictMode
    }
    return ck
}

// writeError maps service errors to the envelope.  Unknown errors are
// logged and reported as a bare 500.
func (h *AuthHandler) writeError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, service.ErrValidation):
        return response.Fail(c, http.StatusBadRequest, validationMessage(err))
    case errors.Is(err, service.ErrDuplicateEmail):
        return response.Fail(c, http.StatusConflict, "Email is already registered")
    case errors.Is(err, service.ErrInvalidCredentials):
        return response.Fail(c, http.StatusUnauthorized, "Invalid credentials")
    case errors.Is(err, service.ErrUnauthorized):
        return response.Fail(c, http.StatusUnauthorized, "Not authorized to access this route")
    case errors.Is(err, service.ErrForbidden):
        return response.Fail(c, http.StatusForbidden, "Forbidden")
    case errors.Is(err, service.ErrInvalidOrExpiredToken):
        return response.Fail(c, http.StatusBadRequest, "Invalid token")
    case errors.Is(err, service.ErrNotFound):
        return response.Fail(c, http.StatusNotFound, "Resource not found")
    }
    h.Log.Error(c.Request().Context(), "request failed",
        "method", c.Request().Method, "path", c.Path(), "err", err)
    return response.Fail(c, http.StatusInternalServerError, "Server Error")
}

// validationMessage turns "validation failed: please add a name" into
// "Please add a name".
func validationMessage(err error) string {
    msg := strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
    if msg == "" || msg == service.ErrValidation.Error() {
        return "Invalid input"
    }
    return strings.ToUpper(msg[:1]) + msg[1:]
}
