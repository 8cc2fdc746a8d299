package middleware

import (
	"net/http"

	"carelink-chat/internal/transport/httpdto"
	"carelink-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler turns panics into a 500 envelope and renders errors attached with c.Error
// when the handler left the body empty. Public gin errors keep their message; anything
// else is reported as "internal error".
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				l.WithContext(c.Request.Context()).Logger.Error("panic serving request",
					zap.Any("panic", r), zap.String("path", c.Request.URL.Path), zap.Stack("stack"))
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
				}
			}
		}()

		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		msg := "internal error"
		if last.IsType(gin.ErrorTypePublic) {
			msg = last.Error()
		}
		c.JSON(status, httpdto.NewErrorResponse(msg, "INTERNAL_ERROR"))
	}
}
