package handler

import (
	"strconv"

	"carelink-chat/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// caller returns the authenticated user or writes a 401.
func caller(c *gin.Context) (uuid.UUID, bool) {
	id, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		unauthorized(c)
	}
	return id, ok
}

// pathID parses the :id route parameter or writes a 400 naming what it identifies.
func pathID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request")
		return false
	}
	return true
}

// queryInt treats a missing or malformed value as zero.
func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}
