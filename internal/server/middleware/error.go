package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/averba/model-relay/pkg/api"
)

// ErrorHandler serializes errors attached via c.Error as RFC 9457
// problems. Handlers that already streamed a body never reach this path;
// their errors are delivered in-band.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		var problem *api.Problem
		if errors.As(err, &problem) {
			if problem.Log != nil {
				logger.Error("Request failed", zap.Int("status", problem.Status), zap.Error(problem.Log))
			}
			c.JSON(problem.Status, problem)
			c.Abort()
			return
		}

		logger.Error("Unhandled error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, api.InternalError("An unexpected error occurred.", err))
		c.Abort()
	}
}
