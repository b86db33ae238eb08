package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DustGate/dustgate/internal/config"
	"github.com/DustGate/dustgate/internal/service"
)

const (
	HeaderGatewayKey = "X-Gateway-Key"
	ContextCallerKey = "caller"
)

// CallerAuth resolves the gateway API key to a caller and stores it on the
// request context. Deployments that do not require a key fall back to the
// default caller.
func CallerAuth(cfg *config.Config, book *service.CallerBook) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader(HeaderGatewayKey)
		if apiKey == "" {
			if cfg != nil && !cfg.Auth.RequireAPIKey {
				if caller := book.DefaultCaller(); caller != nil {
					c.Set(ContextCallerKey, caller)
					c.Next()
					return
				}
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}

		caller, ok := book.GetByAPIKey(apiKey)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Set(ContextCallerKey, caller)
		c.Next()
	}
}

// CallerFrom pulls the authenticated caller off the context. It only fails
// when a route skipped CallerAuth.
func CallerFrom(c *gin.Context) (*service.Caller, bool) {
	val, exists := c.Get(ContextCallerKey)
	if !exists {
		return nil, false
	}
	caller, ok := val.(*service.Caller)
	return caller, ok
}
