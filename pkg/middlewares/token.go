package middlewares

import (
	"strings"

	t_token "realtime_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	//QueryToken token in query name
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"
	//CookieSession session cookie name
	CookieSession = "sessionid"

	//TokenUserID get user form token, set c.locals name
	TokenUserID = "UserID"
	//TokenRole get role form token, set c.locals name
	TokenRole = "role"
)

// ExtractToken query > cookie auth_token > cookie sessionid > Authorization: Bearer
func ExtractToken(c *fiber.Ctx) string {
	if t := c.Query(QueryToken); t != "" {
		return t
	}
	if t := c.Cookies(CookieToken); t != "" {
		return t
	}
	if t := c.Cookies(CookieSession); t != "" {
		return t
	}
	auth := c.Get(fiber.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func authenticate(c *fiber.Ctx) bool {
	claims, err := t_token.ParseJWT(ExtractToken(c))
	if err != nil {
		return false
	}
	c.Locals(TokenUserID, claims.Identity())
	c.Locals(TokenRole, claims.Role)
	return true
}

// JWTMiddleware rejects requests without a valid token
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ExtractToken(c) == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}
		if !authenticate(c) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}
		return c.Next()
	}
}

// IdentityMiddleware resolves the identity when present and never rejects; the websocket
// handshake must complete so the socket can be closed with an application code
func IdentityMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authenticate(c)
		return c.Next()
	}
}

// UserID identity set by JWTMiddleware / IdentityMiddleware, "" when unauthenticated
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(TokenUserID).(string)
	return id
}
