package middleware

import (
	"context"
	"strings"

	"campusconnect/internal/auth"
	"campusconnect/internal/models"

	"github.com/gofiber/fiber/v2"
)

// TokenVerifier parses and validates access tokens.
type TokenVerifier interface {
	ParseAccessToken(token string) (*auth.Claims, error)
}

// RevocationChecker reports whether an access token ID has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) bool
}

// AuthOptions configures RequireAuth.
type AuthOptions struct {
	Verifier    TokenVerifier
	Revocations RevocationChecker
	// AllowQueryToken accepts ?token= when no Authorization header is present.
	AllowQueryToken bool
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	parts := strings.SplitN(c.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// SetUser stores the authenticated identity in locals and the request context.
func SetUser(c *fiber.Ctx, userID uint, claims *auth.Claims) {
	c.Locals("userID", userID)
	if claims != nil {
		c.Locals("claims", claims)
		c.Locals("role", claims.Role)
	}
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
}

// ClaimsFrom returns the verified claims of the current request, if any.
func ClaimsFrom(c *fiber.Ctx) (*auth.Claims, bool) {
	claims, ok := c.Locals("claims").(*auth.Claims)
	return claims, ok
}

// RequireAuth is a middleware that enforces authentication for protected routes.
func RequireAuth(opts AuthOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := BearerToken(c)
		if token == "" && opts.AllowQueryToken {
			token = c.Query("token")
		}
		if token == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		claims, err := opts.Verifier.ParseAccessToken(token)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		if opts.Revocations != nil && opts.Revocations.IsRevoked(c.UserContext(), claims.ID) {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Token has been revoked"))
		}

		userID, err := claims.UserID()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid user ID in token"))
		}

		SetUser(c, userID, claims)
		return c.Next()
	}
}
