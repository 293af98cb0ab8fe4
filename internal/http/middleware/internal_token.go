package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const internalTokenHeader = "X-Internal-Token"

// InternalToken guards the internal trigger surface with a shared secret. An
// empty secret disables the check: the endpoints are then trusted by network
// placement alone, which matches how the web tier deploys the dispatcher on a
// private address.
func InternalToken(secret string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if secret == "" {
			ctx.Next()
			return
		}
		supplied := ctx.GetHeader(internalTokenHeader)
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(secret)) != 1 {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
