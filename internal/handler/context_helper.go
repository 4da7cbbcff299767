package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-portal-api/internal/middleware"
	"github.com/noah-isme/attendance-portal-api/internal/models"
)

// claimsFromContext fetches the JWT claims stored by the auth
// middleware. A nil result means the route was reached without one,
// which handlers translate to 401.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
