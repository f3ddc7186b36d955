// Package middleware bridges the calling layer and the wallet core: it
// turns an already-issued bearer token into the resolved owner identity
// and actor id the core trusts. Authentication and role policy live
// upstream; this only unpacks what upstream signed.
package middleware

import (
	"strings"

	"coinforge/internal/config"
	"coinforge/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the resolved principal the calling layer signed for us.
type Claims struct {
	OwnerKind models.OwnerKind `json:"owner_kind"`
	OwnerID   uint             `json:"owner_id"`
	ActorID   uint             `json:"actor_id"`
	jwt.RegisteredClaims
}

// ClaimsKey is where the handler finds the request's resolved principal.
const ClaimsKey = "claims"

// Auth validates the bearer token and stores the resolved Claims in the
// request context.
func Auth() fiber.Handler {
	secret := []byte(config.GetEnv("JWT_SECRET", "coinforge-dev"))

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !claims.OwnerKind.Valid() {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid claims"})
		}

		c.Locals(ClaimsKey, claims)
		return c.Next()
	}
}

// RequireKinds rejects principals whose owner kind is not listed. Admin
// surfaces use it; the core still records the actor on every operation.
func RequireKinds(kinds ...models.OwnerKind) fiber.Handler {
	allowed := map[models.OwnerKind]bool{}
	for _, k := range kinds {
		allowed[k] = true
	}

	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals(ClaimsKey).(*Claims)
		if !ok || claims == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing claims"})
		}
		if !allowed[claims.OwnerKind] {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}
		return c.Next()
	}
}
