package middleware

import (
	"bytes"
	"encoding/json"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/txxdx/devcamper-api/internal/response"
)

// Sanitize drops JSON object keys and query parameters that start with "$"
// or contain ".", so user input can never smuggle query operators into the
// document store.
func Sanitize() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			q := c.Request().URL.Query()
			changed := false
			for k := range q {
				if isOperatorKey(k) {
					q.Del(k)
					changed = true
				}
			}
			if changed {
				c.Request().URL.RawQuery = q.Encode()
			}
			if err := rewriteJSONBody(c, stripOperators); err != nil {
				return response.Fail(c, http.StatusBadRequest, "Malformed JSON body")
			}
			return next(c)
		}
	}
}

// XSSClean HTML-escapes every string value of a JSON body.  Fields whose
// name contains "password" are left alone; they are hashed, never rendered.
func XSSClean() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := rewriteJSONBody(c, func(v any) any { return escapeStrings(v, "") }); err != nil {
				return response.Fail(c, http.StatusBadRequest, "Malformed JSON body")
			}
			return next(c)
		}
	}
}

// HPP guards against HTTP parameter pollution by keeping only the last
// value of a repeated query parameter.
func HPP() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			q := r.URL.Query()
			polluted := false
			for k, vs := range q {
				if len(vs) > 1 {
					q[k] = vs[len(vs)-1:]
					polluted = true
				}
			}
			if polluted {
				r.URL.RawQuery = q.Encode()
			}
			return next(c)
		}
	}
}

func isOperatorKey(k string) bool {
	return strings.HasPrefix(k, "$") || strings.Contains(k, ".")
}

// rewriteJSONBody applies fn to a decoded JSON body and replaces the body
// with the re-encoded result.  Non-JSON and empty bodies pass untouched.
func rewriteJSONBody(c echo.Context, fn func(any) any) error {
	r := c.Request()
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	if !strings.HasPrefix(strings.ToLower(r.Header.Get(echo.HeaderContentType)), echo.MIMEApplicationJSON) {
		return nil
	}
	raw, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		r.Body = io.NopCloser(bytes.NewReader(raw))
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	out, err := json.Marshal(fn(v))
	if err != nil {
		return err
	}
	r.Body = io.NopCloser(bytes.NewReader(out))
	r.ContentLength = int64(len(out))
	return nil
}

func stripOperators(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if isOperatorKey(k) {
				delete(t, k)
				continue
			}
			t[k] = stripOperators(val)
		}
		return t
	case []any:
		for i := range t {
			t[i] = stripOperators(t[i])
		}
		return t
	default:
		return v
	}
}

func escapeStrings(v any, key string) any {
	switch t := v.(type) {
	case string:
		if strings.Contains(strings.ToLower(key), "password") {
			return t
		}
		return html.EscapeString(t)
	case map[string]any:
		for k, val := range t {
			t[k] = escapeStrings(val, k)
		}
		return t
	case []any:
		for i := range t {
			t[i] = escapeStrings(t[i], key)
		}
		return t
	default:
		return v
	}
}
