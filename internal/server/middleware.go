package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const defaultFrontendOrigin = "http://localhost:3000"

// corsMiddleware はフロントエンドのオリジンにのみ CORS を許可する
func corsMiddleware(frontendURL string) gin.HandlerFunc {
	allowed := map[string]bool{defaultFrontendOrigin: true}
	if frontendURL != "" {
		allowed[frontendURL] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
