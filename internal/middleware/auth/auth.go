package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/davidkovac996/Digistore24Task/internal/models"
	"github.com/davidkovac996/Digistore24Task/internal/service/token"
)

const AccessCookieName = "access_token"

type Guard struct {
	Tokens *token.Service
}

// RequireAuth reads the access token from the Authorization bearer header,
// falling back to the httpOnly cookie. Every failure mode (missing,
// malformed, expired, bad signature) collapses to the same 401 so the
// response never reveals which check tripped.
func (g *Guard) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c)
		if raw == "" {
			if cookie, err := c.Cookie(AccessCookieName); err == nil {
				raw = cookie.Value
			}
		}
		if raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required.")
		}

		claims, err := g.Tokens.ParseAccess(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token.")
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token.")
		}

		c.Set("userID", userID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		return next(c)
	}
}

// AdminOnly must run after RequireAuth; it never inspects the token itself,
// only the identity RequireAuth resolved.
func (g *Guard) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if Role(c) != models.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "Admin access required.")
		}
		return next(c)
	}
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func UserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get("userID").(uuid.UUID)
	return id, ok
}

func Email(c echo.Context) string {
	email, _ := c.Get("email").(string)
	return email
}

func Role(c echo.Context) string {
	role, _ := c.Get("role").(string)
	return role
}
