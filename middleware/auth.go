package middleware

import (
	"fmt"
	"net/http"
	"storefront/apperror"
	"storefront/models"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const identityKey = "identity"

// AuthMiddleware verifies the bearer token issued by the identity provider
// and stores the caller's identity on the context.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if tokenString == "" {
			abort(c, http.StatusUnauthorized, apperror.CodeNotAuthenticated, "Token required")
			return
		}
		tokenString = strings.TrimPrefix(tokenString, "Bearer ")

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			abort(c, http.StatusUnauthorized, apperror.CodeNotAuthenticated, "Invalid or expired token")
			return
		}

		claims, _ := token.Claims.(jwt.MapClaims)
		userID, _ := claims["userId"].(string)
		role, _ := claims["role"].(string)
		if userID == "" {
			abort(c, http.StatusUnauthorized, apperror.CodeNotAuthenticated, "Token has no subject")
			return
		}

		c.Set("userId", userID)
		c.Set("role", role)
		c.Set(identityKey, models.Identity{UserID: userID, Role: models.Role(role)})
		c.Next()
	}
}

func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentIdentity(c).IsAdmin() {
			abort(c, http.StatusForbidden, apperror.CodeNotAuthorized, "Access denied: admin only")
			return
		}
		c.Next()
	}
}

// CurrentIdentity returns the identity set by AuthMiddleware, or the zero
// Identity on unauthenticated routes.
func CurrentIdentity(c *gin.Context) models.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}
	}
	id, _ := v.(models.Identity)
	return id
}

func abort(c *gin.Context, status int, code apperror.Code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}
