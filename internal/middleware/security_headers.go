package middleware

import "github.com/gin-gonic/gin"

// SecurityHeaders устанавливает защитные заголовки безусловно на каждый ответ
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}
