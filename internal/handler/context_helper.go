package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/hayat-interiors/appraisal-api/internal/middleware"
	"github.com/hayat-interiors/appraisal-api/internal/models"
)

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

// authorityFromContext returns the request's resolved capability set. The
// second result is false when the Authority middleware did not run.
func authorityFromContext(c *gin.Context) (models.AuthorityContext, bool) {
	value, exists := c.Get(middleware.ContextAuthorityKey)
	if !exists {
		return models.AuthorityContext{}, false
	}
	authority, ok := value.(models.AuthorityContext)
	if !ok {
		return models.AuthorityContext{}, false
	}
	return authority, true
}
