package middleware

import (
	"strings"

	"recap_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Auth validates the Bearer token and stores the authenticated user id in
// c.Locals("user_id") as a uuid.UUID. Tokens are HS256 with the user id in
// the "sub" claim.
func Auth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return apperr.Unauthorized("missing authorization header")
		}

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return apperr.Unauthorized("invalid authorization header")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			return apperr.Unauthorized("invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return apperr.Unauthorized("invalid token claims")
		}

		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			return apperr.Unauthorized("token missing subject")
		}

		userID, err := uuid.Parse(sub)
		if err != nil {
			return apperr.Unauthorized("invalid user id in token")
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}
