package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/haatos/simple-release/internal/store"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type TokenAuthenticator interface {
	Authenticate(ctx context.Context, value string) (*store.Token, error)
}

// TokenAuth requires a valid "Authorization: Bearer <token>" header.
func TokenAuth(tokens TokenAuthenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			scheme, value, ok := strings.Cut(c.Request().Header.Get(echo.HeaderAuthorization), " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || value == "" {
				return newError(nil, http.StatusUnauthorized, "missing bearer token")
			}
			t, err := tokens.Authenticate(c.Request().Context(), strings.TrimSpace(value))
			if err != nil {
				return newError(err, http.StatusUnauthorized, "invalid token")
			}
			c.Set(ctxTokenKey, t)
			return next(c)
		}
	}
}

// RequestLogger logs one line per request. Headers are never logged.
func RequestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			ev := logger.Info()
			if c.Response().Status >= http.StatusInternalServerError {
				ev = logger.Error()
			}
			ev.Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", c.Response().Status).
				Int64("bytes_in", req.ContentLength).
				Int64("bytes_out", c.Response().Size).
				Str("remote_ip", c.RealIP()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
			return nil
		}
	}
}
