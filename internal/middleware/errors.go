package middleware

import (
	"github.com/gin-gonic/gin"
)

// abort writes the API error body and stops the chain.
func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":      message,
		"statusCode": status,
	})
}
