package middleware

import (
	"strings"

	"firecontest-backend/services"
	"firecontest-backend/utils/logger"

	"github.com/gofiber/fiber/v2"
)

const (
	userIDKey  = "user_id"
	adminIDKey = "admin_id"
)

// RequireUser verifies a user session token and stores its subject as the
// caller's user id.
func RequireUser(tokens *services.TokenService) fiber.Handler {
	return requireAudience(tokens, services.AudienceUser, userIDKey)
}

// RequireAdmin is RequireUser for the admin credential domain. User tokens
// are rejected here.
func RequireAdmin(tokens *services.TokenService) fiber.Handler {
	return requireAudience(tokens, services.AudienceAdmin, adminIDKey)
}

func requireAudience(tokens *services.TokenService, aud services.Audience, key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"msg": "Missing Token"})
		}
		subject, err := tokens.Verify(raw, aud)
		if err != nil {
			logger.Debugf("[AUTH] %s token rejected on %s: %v", aud, c.Path(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"msg": "Invalid or expired token"})
		}
		c.Locals(key, subject)
		return c.Next()
	}
}

// bearerToken accepts "Authorization: Bearer <t>" and the bare x-auth-token
// header older clients send.
func bearerToken(c *fiber.Ctx) string {
	if h := strings.TrimSpace(c.Get(fiber.HeaderAuthorization)); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	return strings.TrimSpace(c.Get("x-auth-token"))
}

// UserID returns the authenticated user id, or "" outside RequireUser.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}

// AdminID returns the authenticated admin id, or "" outside RequireAdmin.
func AdminID(c *fiber.Ctx) string {
	id, _ := c.Locals(adminIDKey).(string)
	return id
}
