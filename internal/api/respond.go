package api

import (
	"net/http"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// respondError maps err onto {success:false, message}. Internal details only reach the log.
func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if !kind.Public() {
		util.GetLogger().Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("kind", kind.String()),
			zap.Error(err))
	}

	c.AbortWithStatusJSON(kind.HTTPStatus(), gin.H{
		"success": false,
		"message": apperr.Message(err),
	})
}

// respondBindError rejects a body that failed binding. The binder's message
// names Go types and fields, so it is only logged.
func respondBindError(c *gin.Context, err error) {
	util.GetLogger().Info("Request body rejected",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err))

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": "Invalid request body",
	})
}

func respond(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// uuidParam parses a path parameter, responding 400 when it is not a UUID.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apperr.Validationf("Invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}
