package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/hayat-interiors/appraisal-api/internal/models"
	"github.com/hayat-interiors/appraisal-api/internal/service"
	appErrors "github.com/hayat-interiors/appraisal-api/pkg/errors"
	"github.com/hayat-interiors/appraisal-api/pkg/response"
)

// ContextAuthorityKey is the gin context key storing the resolved AuthorityContext.
const ContextAuthorityKey = "currentAuthority"

// Authority resolves the acting principal's capability set once per request.
// It must run after JWT so the claims are available.
func Authority(authoritySvc *service.AuthorityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		authority, err := authoritySvc.Resolve(c.Request.Context(), claims.UserID, claims.EmpCode, claims.Role)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextAuthorityKey, authority)
		c.Next()
	}
}
