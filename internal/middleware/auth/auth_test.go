package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/davidkovac996/Digistore24Task/internal/models"
	"github.com/davidkovac996/Digistore24Task/internal/service/token"
)

func newGuard(t *testing.T) (*Guard, *models.User) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RefreshToken{}))

	user := models.User{Email: "client@example.com", PasswordHash: "x", Role: models.RoleClient}
	require.NoError(t, db.Create(&user).Error)

	tokens := &token.Service{
		DB:            db,
		JWTSecret:     []byte("test-access-secret"),
		RefreshSecret: []byte("test-refresh-secret"),
	}
	return &Guard{Tokens: tokens}, &user
}

func okHandler(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func TestRequireAuthBearerHeader(t *testing.T) {
	guard, user := newGuard(t)
	e := echo.New()

	pair, err := guard.Tokens.Issue(context.Background(), user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, guard.RequireAuth(func(c echo.Context) error {
		id, ok := UserID(c)
		require.True(t, ok)
		require.Equal(t, user.ID, id)
		require.Equal(t, user.Email, Email(c))
		require.Equal(t, models.RoleClient, Role(c))
		return c.NoContent(http.StatusOK)
	})(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthCookieFallback(t *testing.T) {
	guard, user := newGuard(t)
	e := echo.New()

	pair, err := guard.Tokens.Issue(context.Background(), user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: pair.AccessToken})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, guard.RequireAuth(okHandler)(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthCollapsesFailures(t *testing.T) {
	guard, user := newGuard(t)
	e := echo.New()

	// The refresh token is validly signed, but by the wrong key for this
	// gate; like a garbage or missing token it must yield a plain 401.
	pair, err := guard.Tokens.Issue(context.Background(), user)
	require.NoError(t, err)

	cases := []struct {
		name  string
		setup func(req *http.Request)
	}{
		{"missing token", func(req *http.Request) {}},
		{"malformed header", func(req *http.Request) {
			req.Header.Set(echo.HeaderAuthorization, "Bearer not.a.token")
		}},
		{"refresh token as access", func(req *http.Request) {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+pair.RefreshToken)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := guard.RequireAuth(okHandler)(c)
			he, ok := err.(*echo.HTTPError)
			require.True(t, ok, "expected HTTPError")
			require.Equal(t, http.StatusUnauthorized, he.Code)
		})
	}
}

func TestAdminOnly(t *testing.T) {
	guard, user := newGuard(t)
	e := echo.New()

	pair, err := guard.Tokens.Issue(context.Background(), user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err = guard.RequireAuth(guard.AdminOnly(okHandler))(c)
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected HTTPError")
	require.Equal(t, http.StatusForbidden, he.Code)

	admin := models.User{Email: "admin@brewedtrue.com", PasswordHash: "x", Role: models.RoleAdmin}
	require.NoError(t, guard.Tokens.DB.Create(&admin).Error)
	adminPair, err := guard.Tokens.Issue(context.Background(), &admin)
	require.NoError(t, err)

	reqAdmin := httptest.NewRequest(http.MethodGet, "/", nil)
	reqAdmin.Header.Set(echo.HeaderAuthorization, "Bearer "+adminPair.AccessToken)
	recAdmin := httptest.NewRecorder()
	cAdmin := e.NewContext(reqAdmin, recAdmin)

	require.NoError(t, guard.RequireAuth(guard.AdminOnly(okHandler))(cAdmin))
	require.Equal(t, http.StatusOK, recAdmin.Code)
}
