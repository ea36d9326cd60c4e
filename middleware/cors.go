package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS middleware for handling Cross-Origin Resource Sharing. An empty list
// or a "*" entry allows every origin; otherwise only listed origins are
// echoed back and all others get no Allow-Origin header.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}

	return gin.HandlerFunc(func(c *gin.Context) {
		requestHeaders := c.Request.Header.Get("Access-Control-Request-Headers")
		requestMethod := c.Request.Header.Get("Access-Control-Request-Method")

		if allowAll {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin := c.Request.Header.Get("Origin"); origin != "" {
			if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}
		c.Header("Access-Control-Allow-Credentials", "false")
		c.Header("Access-Control-Allow-Headers", coalesce(requestHeaders, "Authorization, Content-Type, Content-Length, Accept-Encoding, X-API-Role, accept, origin, Cache-Control, X-Requested-With"))
		c.Header("Access-Control-Allow-Methods", coalesce(requestMethod, "GET, POST, OPTIONS, PUT, PATCH, DELETE"))
		c.Header("Access-Control-Max-Age", "600")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type")

		if requestMethod != "" || requestHeaders != "" {
			c.Header("Vary", "Origin, Access-Control-Request-Method, Access-Control-Request-Headers")
		} else {
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			// For preflight, return 204 with the above headers
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
