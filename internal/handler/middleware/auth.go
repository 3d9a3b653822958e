package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/service"
	"github.com/dmehra2102/prod-golang-projects/medidoc/pkg/auth"
	"github.com/gin-gonic/gin"
)

const claimsKey = "medidoc.claims"

// Authenticate requires a valid bearer access token and stores its claims on
// the request context.
func Authenticate(jwt *auth.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed authorization header"})
			return
		}

		claims, err := jwt.ValidateAccessToken(strings.TrimSpace(token))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrTokenExpired) {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRoles must run after Authenticate.
func RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !slices.Contains(roles, claims.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}

// CallerFrom describes who is making the request. Unauthenticated requests
// yield a Caller with only client details set.
func CallerFrom(c *gin.Context) service.Caller {
	caller := service.Caller{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: RequestIDFrom(c),
	}
	if claims, ok := claimsFrom(c); ok {
		caller.UserID = claims.UserID
		caller.Role = claims.Role
		caller.PatientID = claims.PatientID
	}
	return caller
}

func claimsFrom(c *gin.Context) (*domain.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*domain.Claims)
	return claims, ok
}
