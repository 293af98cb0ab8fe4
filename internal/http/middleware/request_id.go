package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an id so trigger calls from the web tier
// can be correlated across both processes' logs.
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetHeader(requestIDHeader) == "" {
			ctx.Request.Header.Set(requestIDHeader, uuid.NewString())
		}
		ctx.Header(requestIDHeader, ctx.GetHeader(requestIDHeader))
		ctx.Next()
	}
}
