package auth

import (
	"context"
	"errors"
	"strings"

	"crmbilling/internal/model"
	"crmbilling/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userKey        = "auth_user"
	DevEmailHeader = "X-User-Email"
)

// UserResolver maps a verified email to the local user, creating it on first sight.
type UserResolver interface {
	Resolve(ctx context.Context, email string) (*model.User, error)
}

// Middleware authenticates the request and stores the resolved user. In dev
// mode the X-User-Email header is accepted in place of a token.
func Middleware(verifier *TokenVerifier, users UserResolver, devMode bool, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		email, err := emailFromRequest(c, verifier, devMode)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenExpired):
				response.Unauthorized(c, "Token expired")
			case errors.Is(err, ErrMissingToken):
				response.Unauthorized(c, "Authorization header required")
			default:
				response.Unauthorized(c, "Invalid or malformed token")
			}
			return
		}

		user, err := users.Resolve(c.Request.Context(), email)
		if err != nil {
			logger.Error("resolve user failed", zap.String("email", email), zap.Error(err))
			response.ServerError(c, "Failed to resolve user")
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

func emailFromRequest(c *gin.Context, verifier *TokenVerifier, devMode bool) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if devMode {
			if email := NormalizeEmail(c.GetHeader(DevEmailHeader)); email != "" {
				return email, nil
			}
		}
		return "", ErrMissingToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(strings.TrimSpace(parts[0]), "Bearer") {
		return "", ErrInvalidToken
	}
	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return "", ErrMissingToken
	}
	return verifier.Email(tokenString)
}

// CurrentUser returns the user stored by Middleware.
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, exists := c.Get(userKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok
}

// SetUser is used by tests that bypass Middleware.
func SetUser(c *gin.Context, user *model.User) {
	c.Set(userKey, user)
}
