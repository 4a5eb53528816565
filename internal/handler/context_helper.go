package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-engine/internal/middleware"
	"github.com/noah-isme/academic-engine/internal/models"
	appErrors "github.com/noah-isme/academic-engine/pkg/errors"
	"github.com/noah-isme/academic-engine/pkg/response"
)

// bindJSON decodes the body and reports a validation error on failure.
// Field rules are enforced by the services.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func respondReport(c *gin.Context, data interface{}, pagination *models.Pagination, cached bool) {
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, data, pagination, middleware.ExtractMeta(c))
}
