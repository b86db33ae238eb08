package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DustGate/dustgate/internal/config"
)

const HeaderAdminKey = "X-Admin-Key"

// AdminOnly guards operator endpoints behind the static admin key. A
// deployment that never configured one has no admin surface, so those
// requests are refused outright instead of falling open.
func AdminOnly(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		configured := ""
		if cfg != nil {
			configured = cfg.Auth.AdminKey
		}
		if configured == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin interface disabled"})
			return
		}
		if c.GetHeader(HeaderAdminKey) != configured {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin key mismatch"})
			return
		}
		c.Next()
	}
}
