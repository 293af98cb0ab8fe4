package validation

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Validator wraps go-playground/validator to integrate with Gin.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New()}
}

// BindJSON decodes the request body into payload and applies its validation
// tags. On failure it writes the 400 response and returns false, so handlers
// can bail with a bare return.
func (v *Validator) BindJSON(ctx *gin.Context, payload any) bool {
	if err := ctx.ShouldBindJSON(payload); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return false
	}
	if err := v.v.Struct(payload); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}
