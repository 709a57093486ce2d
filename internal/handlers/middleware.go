package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/patient-feedback/survey-console/internal/models"
	"github.com/patient-feedback/survey-console/internal/services"
)

const (
	HeaderUserID         = "X-User-ID"
	HeaderOrganizationID = "X-Organization-ID"
)

// PrincipalMiddleware resolves the caller from the request headers. The bearer
// token is forwarded to the templates API as is; it is not verified here.
func PrincipalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(auth, "Bearer ")
		token = strings.TrimSpace(token)
		if !found || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "User not authenticated",
				Details: "missing bearer token",
			})
			return
		}

		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "User not authenticated",
				Details: "missing " + HeaderUserID + " header",
			})
			return
		}

		c.Set(principalContextKey, models.Principal{
			UserID:         userID,
			OrganizationID: strings.TrimSpace(c.GetHeader(HeaderOrganizationID)),
			Token:          token,
		})
		c.Set("user_id", userID)
		if requestID := c.GetHeader("X-Request-ID"); requestID != "" {
			c.Request = c.Request.WithContext(services.ContextWithRequestID(c.Request.Context(), requestID))
		}
		c.Next()
	}
}
