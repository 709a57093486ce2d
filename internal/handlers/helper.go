package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/patient-feedback/survey-console/internal/errors"
	"github.com/patient-feedback/survey-console/internal/models"
)

const principalContextKey = "principal"

func ParseStringIDParam(c *gin.Context, param string) string {
	idStr := c.Param(param)
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: apperrors.ValidationErrors{*apperrors.NewValidationError(param, "cannot be empty", idStr)},
		})
		return ""
	}
	return idStr
}

// ParseIndexParam reads a non-negative integer path parameter. It writes a
// 400 and returns false when the parameter is malformed.
func ParseIndexParam(c *gin.Context, param string) (int, bool) {
	raw := c.Param(param)
	index, err := strconv.Atoi(raw)
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + param,
			Details: apperrors.ValidationErrors{*apperrors.NewValidationErrorWithRule(param, "must be a non-negative integer", "min", raw)},
		})
		return 0, false
	}
	return index, true
}

func parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value < 0 {
		return defaultValue
	}
	return value
}

func principalFrom(c *gin.Context) (models.Principal, bool) {
	v, exists := c.Get(principalContextKey)
	if !exists {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

// requirePrincipal writes a 401 when the request carries no principal.
func requirePrincipal(c *gin.Context) (models.Principal, bool) {
	p, ok := principalFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return models.Principal{}, false
	}
	return p, true
}
