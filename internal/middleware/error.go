package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DustGate/dustgate/internal/pkg/apperrors"
	"github.com/DustGate/dustgate/internal/pkg/logger"
)

// ErrorHandler renders the request's last error as the API error envelope.
// Handlers report failures with c.Error and never build error JSON
// themselves; anything that is not already an AppError counts as internal.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			appErr = apperrors.New(apperrors.ErrInternal, err.Error(), err)
		}

		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", appErr.HTTPStatus,
			"code", appErr.Type,
			"client_ip", c.ClientIP(),
		}
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			// Log the error the handler reported, not the envelope, so the
			// cause chain survives into the log line.
			logger.LogError(c.Request.Context(), err, "request failed", fields...)
		} else {
			logger.Warn(appErr.Message, fields...)
		}

		c.JSON(appErr.HTTPStatus, appErr)
	}
}
