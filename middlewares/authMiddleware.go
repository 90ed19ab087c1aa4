package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/ovenworks/bakehouse_backend/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates a bearer token when present and stashes the
// authenticated identity into the request context so the models layer can
// attribute audit rows. Requests without a token pass through; route groups
// that require auth use RequireAuth below.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		if auth == "" {
			c.Next()
			return
		}

		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		claim, _ := validate.Claims.(*utils.JwtCustomClaim)

		ctx := utils.SetTokenInContext(c.Request.Context(), auth)
		ctx = utils.SetUserIdInContext(ctx, claim.ID)
		ctx = utils.SetUserEmailInContext(ctx, claim.Email)
		ctx = utils.SetUserNameInContext(ctx, claim.Name)
		ctx = utils.SetIsAdminInContext(ctx, claim.Role == "admin")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAuth rejects requests that did not carry a valid token.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := utils.GetUserIdFromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects non-admin users.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		isAdmin, ok := utils.GetIsAdminFromContext(c.Request.Context())
		if !ok || !isAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}
