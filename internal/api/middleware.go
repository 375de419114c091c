package api

import (
	"strings"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// Claims are issued by the identity provider. Subject carries the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// authMiddleware requires a valid HS256 bearer token
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondError(c, apperr.Unauthorized("Authorization header is required"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			respondError(c, apperr.Unauthorized("Authorization header format must be 'Bearer <token>'"))
			return
		}

		claims, err := h.parseToken(parts[1])
		if err != nil {
			respondError(c, err)
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			respondError(c, apperr.Unauthorized("Invalid or expired token"))
			return
		}

		role := claims.Role
		if role == "" {
			role = models.RoleUser
		}

		c.Set(ctxUserID, userID)
		c.Set(ctxRole, role)
		c.Next()
	}
}

func (h *Handler) parseToken(tokenString string) (*Claims, error) {
	if len(h.jwtSecret) == 0 {
		return nil, apperr.Unauthorized("Authentication is not configured")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return h.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, apperr.Unauthorized("Invalid or expired token")
	}
	return claims, nil
}

// requireRole rejects callers whose token does not carry role
func requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != role {
			respondError(c, apperr.Forbidden("You do not have permission to perform this action"))
			return
		}
		c.Next()
	}
}

func callerFrom(c *gin.Context) service.Caller {
	caller := service.Caller{Role: c.GetString(ctxRole)}
	if v, ok := c.Get(ctxUserID); ok {
		caller.UserID, _ = v.(uuid.UUID)
	}
	return caller
}
