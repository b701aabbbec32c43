package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/davidkovac996/Digistore24Task/internal/hash"
	mwauth "github.com/davidkovac996/Digistore24Task/internal/middleware/auth"
	"github.com/davidkovac996/Digistore24Task/internal/models"
	"github.com/davidkovac996/Digistore24Task/internal/mykafka"
	"github.com/davidkovac996/Digistore24Task/internal/service/token"
)

// RefreshCookiePath scopes the refresh cookie to the auth routes only, so
// the long-lived credential never rides along on catalog or order requests.
const (
	RefreshCookieName = "refresh_token"
	RefreshCookiePath = "/api/auth"
)

type AuthHandler struct {
	DB       *gorm.DB
	Tokens   *token.Service
	Producer *mykafka.Producer
}

func CreateCookie(name, value, path string, expTime time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expTime,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (h *AuthHandler) setRefreshCookie(c echo.Context, pair *token.Pair) {
	c.SetCookie(CreateCookie(RefreshCookieName, pair.RefreshToken, RefreshCookiePath, pair.RefreshExp))
}

func userPayload(u *models.User) echo.Map {
	return echo.Map{"id": u.ID, "email": u.Email, "role": u.Role}
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "A valid email is required.")
	}
	if len(req.Password) < 8 {
		return echo.NewHTTPError(http.StatusBadRequest, "Password must be at least 8 characters")
	}

	var existing models.User
	err := h.DB.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "Email already in use.")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return internalError(c, err)
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return internalError(c, err)
	}

	user := models.User{
		Email:        email,
		PasswordHash: pwHash,
		Role:         models.RoleClient,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return internalError(c, err)
	}

	pair, err := h.Tokens.Issue(c.Request().Context(), &user)
	if err != nil {
		return internalError(c, err)
	}
	h.setRefreshCookie(c, pair)

	h.publish(c, map[string]interface{}{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"user":        userPayload(&user),
		"accessToken": pair.AccessToken,
	})
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := h.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password.")
		}
		return internalError(c, err)
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid email or password.")
	}

	// Hygiene sweep; must never block login.
	h.Tokens.SweepExpired(c.Request().Context(), user.ID)

	pair, err := h.Tokens.Issue(c.Request().Context(), &user)
	if err != nil {
		return internalError(c, err)
	}
	h.setRefreshCookie(c, pair)

	h.publish(c, map[string]interface{}{
		"type":   "user_logged_in",
		"userID": user.ID,
		"email":  user.Email,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"user":        userPayload(&user),
		"accessToken": pair.AccessToken,
	})
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "No refresh token.")
	}

	pair, _, err := h.Tokens.Rotate(c.Request().Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, token.ErrInvalidToken) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired refresh token.")
		}
		return internalError(c, err)
	}
	h.setRefreshCookie(c, pair)

	return c.JSON(http.StatusOK, echo.Map{"accessToken": pair.AccessToken})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
		if err := h.Tokens.Revoke(c.Request().Context(), cookie.Value); err != nil {
			c.Logger().Errorf("refresh token revoke error: %v", err)
		}
	}

	expired := time.Now().Add(-1 * time.Hour)
	c.SetCookie(CreateCookie(RefreshCookieName, "", RefreshCookiePath, expired))
	c.SetCookie(CreateCookie(mwauth.AccessCookieName, "", "/", expired))

	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out."})
}

func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := mwauth.UserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required.")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User not found.")
		}
		return internalError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"user": echo.Map{
		"id":         user.ID,
		"email":      user.Email,
		"role":       user.Role,
		"created_at": user.CreatedAt,
	}})
}

func (h *AuthHandler) publish(c echo.Context, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}
