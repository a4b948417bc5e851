package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mzansigig/gigwork-backend/internal/logger"
	"github.com/mzansigig/gigwork-backend/internal/pkg/apperror"
)

// ErrorHandler turns errors attached to the gin context into JSON responses.
// AppError carries its own status code and client-safe message; anything else
// is masked as an internal error.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			entry := logger.Log.WithFields(logrus.Fields{
				"code":   appErr.Code,
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			})
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				entry.WithError(err).Error("request failed")
			} else {
				entry.Warn(appErr.Message)
			}
			c.JSON(appErr.HTTPStatus, gin.H{
				"error": appErr.Message,
				"code":  appErr.Code,
			})
			return
		}

		logger.Log.WithFields(logrus.Fields{
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
			"code":  apperror.ErrCodeInternal,
		})
	}
}
