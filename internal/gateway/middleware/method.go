package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MethodFilterMiddleware rejects requests whose method is not in the
// allowed set, before any other gate runs.
func MethodFilterMiddleware(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]bool, len(allowed))
	for _, method := range allowed {
		allowedSet[method] = true
	}

	return func(c *gin.Context) {
		if !allowedSet[c.Request.Method] {
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{
				"error": "Method not allowed",
			})
			return
		}
		c.Next()
	}
}
