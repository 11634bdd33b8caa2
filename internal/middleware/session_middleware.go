package middleware

import (
	"log"
	"strings"

	"vestra/internal/services"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by SessionRequired for downstream handlers.
const (
	LocalsUser  = "user"
	LocalsToken = "session_token"
)

// SessionRequired is a Fiber middleware that resolves the bearer token to a
// live session. Expired or unknown tokens are rejected; on success the
// authenticated user and the raw token are stored in the request locals.
func SessionRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		token := parts[1]

		user, err := authService.ValidateSession(token)
		if err != nil {
			log.Printf("Session validation failed: %v", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired session",
			})
		}

		c.Locals(LocalsUser, user)
		c.Locals(LocalsToken, token)

		return c.Next()
	}
}
