package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/canto-lessons/pkg/errors"
	"github.com/noah-isme/canto-lessons/pkg/response"
)

// bindJSON decodes the request body into dest and runs its validate tags. On
// failure the error response is already written.
func bindJSON(c *gin.Context, validate *validator.Validate, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	if validate == nil {
		return true
	}
	if err := validate.Struct(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}
