package middleware

import (
	"net/http"
	"strings"

	"carelink-chat/internal/services"
	"carelink-chat/internal/transport/httpdto"
	"carelink-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware resolves the bearer token to the caller's user id. Identity is never read
// from the request body.
func AuthMiddleware(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			reject(c, "missing bearer token")
			return
		}
		userID, sessionID, err := auth.Authenticate(token)
		if err != nil {
			reject(c, "invalid or expired token")
			return
		}

		ctx := services.WithUserSessionContext(c.Request.Context(), userID, sessionID)
		c.Request = c.Request.WithContext(logger.WithUserID(ctx, userID.String()))
		c.Next()
	}
}

func reject(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="carelink-chat"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, httpdto.NewErrorResponse(msg, "UNAUTHORIZED"))
}

func bearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
