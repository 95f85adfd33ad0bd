package handler

import (
	"github.com/haatos/simple-release/internal/store"
	"github.com/labstack/echo/v4"
)

const ctxTokenKey = "token"

func getCtxToken(c echo.Context) *store.Token {
	if t, ok := c.Get(ctxTokenKey).(*store.Token); ok {
		return t
	}
	return nil
}
