package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Romulad/orgs-task-api/pkg/orgtask/models"
)

const (
	// ContextKeyUser is the key for the acting principal in gin context
	ContextKeyUser = "current_user"
)

// AuthMiddleware validates the bearer token and loads the acting principal.
// Tokens for deleted or deactivated accounts are rejected.
func AuthMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Authorization header required"})
			c.Abort()
			return
		}

		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := ValidateToken(parts[1])
		if err != nil {
			if err == ErrExpiredToken {
				c.JSON(http.StatusUnauthorized, gin.H{"detail": "Token has expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token"})
			}
			c.Abort()
			return
		}

		var user models.User
		if err := db.First(&user, "id = ?", claims.UserID).Error; err != nil || !user.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token"})
			c.Abort()
			return
		}

		c.Set(ContextKeyUser, &user)
		c.Next()
	}
}

// RequireStaff restricts a route group to staff accounts. Staff status is a
// maintenance flag, not part of the per-organization permission algebra.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Authentication required"})
			c.Abort()
			return
		}
		if !user.IsStaff {
			c.JSON(http.StatusForbidden, gin.H{"detail": "Staff access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUser returns the acting principal from the gin context.
func GetUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// GetUserID returns the acting principal's id from the gin context.
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	user, ok := GetUser(c)
	if !ok {
		return uuid.Nil, false
	}
	return user.ID, true
}
