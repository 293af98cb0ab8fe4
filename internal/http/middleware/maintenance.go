package middleware

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

// Maintenance refuses requests while the flag file exists. New websocket
// connections and triggers are both turned away; connections opened before
// the flag appeared keep running until they close on their own.
func Maintenance(flagPath string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if _, err := os.Stat(flagPath); err == nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "maintenance in progress"})
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
