package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DustGate/dustgate/internal/pkg/apperrors"
	"github.com/DustGate/dustgate/internal/service"
)

// Freeze refuses mutating requests while the operator has settlement halted.
// Reads stay up, and preview keeps working because it never moves value. The
// admin surface is mounted outside this middleware so the gateway can always
// be unfrozen.
func Freeze(params *service.ParamsManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !params.Frozen() {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if c.FullPath() == "/v1/settlements/preview" {
			c.Next()
			return
		}

		c.Error(apperrors.New(apperrors.ErrFrozen, "settlement is frozen", nil))
		c.Abort()
	}
}
