package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/linkhub/backend/internal/database"
	"github.com/linkhub/backend/internal/models"
	"github.com/linkhub/backend/internal/services"
)

const actorKey = "actor"

// JWTClaims are the claims issued by the identity provider
type JWTClaims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for actor. Used by tooling and tests; production
// tokens come from the identity provider.
func GenerateToken(actor services.Actor, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID:  actor.UserID,
		Email:   actor.Email,
		IsAdmin: actor.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "linkhub",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// AuthRequired resolves the bearer token into an actor
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Missing authorization header",
			})
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Invalid authorization header format",
			})
		}

		token, err := jwt.ParseWithClaims(parts[1], &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Invalid or expired token",
			})
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok || claims.UserID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Invalid token claims",
			})
		}

		c.Locals(actorKey, &services.Actor{
			UserID:  claims.UserID,
			Email:   claims.Email,
			IsAdmin: claims.IsAdmin,
		})
		return c.Next()
	}
}

// GetActor returns the authenticated actor, or nil
func GetActor(c *fiber.Ctx) *services.Actor {
	actor, ok := c.Locals(actorKey).(*services.Actor)
	if !ok {
		return nil
	}
	return actor
}

// AdminOnly middleware to restrict to platform admins
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := GetActor(c)
		if actor == nil || !actor.IsAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Admin access required",
			})
		}
		return c.Next()
	}
}

// MembershipLookup finds a user's membership in a workspace
type MembershipLookup interface {
	GetMembership(ctx context.Context, workspaceID, userID string) (*models.Membership, error)
}

// WorkspaceMember allows active members of :workspaceId and platform admins
func WorkspaceMember(members MembershipLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := GetActor(c)
		if actor == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Authentication required",
			})
		}
		if actor.IsAdmin {
			return c.Next()
		}

		m, err := members.GetMembership(c.UserContext(), c.Params("workspaceId"), actor.UserID)
		if errors.Is(err, database.ErrNotFound) || (err == nil && m.Status != models.MembershipActive) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "You are not a member of this workspace",
			})
		}
		if err != nil {
			return err
		}
		return c.Next()
	}
}
