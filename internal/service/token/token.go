package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidkovac996/Digistore24Task/internal/logging"
	"github.com/davidkovac996/Digistore24Task/internal/models"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

// ErrInvalidToken covers every refresh failure mode: bad signature, expiry,
// wrong type, unknown or already-rotated token. Callers must not be able to
// tell which check failed.
var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

type Pair struct {
	AccessToken  string
	RefreshToken string
	RefreshExp   time.Time
}

type Service struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
}

// Issue signs a short-lived access token and a long-lived refresh token for
// the user. The refresh token is additionally persisted: a valid signature is
// necessary but not sufficient, the row must still exist when it is presented.
func (s *Service) Issue(ctx context.Context, user *models.User) (*Pair, error) {
	access, err := s.sign(user, AccessTTL, s.JWTSecret, "")
	if err != nil {
		return nil, err
	}

	refreshExp := time.Now().Add(RefreshTTL)
	refresh, err := s.sign(user, RefreshTTL, s.RefreshSecret, "refresh")
	if err != nil {
		return nil, err
	}

	stored := models.RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: refreshExp,
	}
	if err := s.DB.WithContext(ctx).Create(&stored).Error; err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	return &Pair{AccessToken: access, RefreshToken: refresh, RefreshExp: refreshExp}, nil
}

// Rotate exchanges a presented refresh token for a fresh pair. The matched
// row is deleted before the new one is issued, so every refresh token is
// valid for exactly one refresh call.
func (s *Service) Rotate(ctx context.Context, presented string) (*Pair, *models.User, error) {
	if _, err := s.parse(presented, s.RefreshSecret, "refresh"); err != nil {
		return nil, nil, ErrInvalidToken
	}

	var stored models.RefreshToken
	err := s.DB.WithContext(ctx).Where("token = ?", presented).First(&stored).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("load refresh token: %w", err)
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, nil, ErrInvalidToken
	}

	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", stored.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, fmt.Errorf("load user: %w", err)
	}

	if err := s.DB.WithContext(ctx).Delete(&stored).Error; err != nil {
		return nil, nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	pair, err := s.Issue(ctx, &user)
	if err != nil {
		return nil, nil, err
	}
	return pair, &user, nil
}

// Revoke deletes one stored refresh token. Unknown tokens are not an error.
func (s *Service) Revoke(ctx context.Context, presented string) error {
	return s.DB.WithContext(ctx).Where("token = ?", presented).Delete(&models.RefreshToken{}).Error
}

// SweepExpired drops expired refresh tokens for a user. It runs
// opportunistically during login; failures are logged, never surfaced.
func (s *Service) SweepExpired(ctx context.Context, userID uuid.UUID) {
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND expires_at < ?", userID, time.Now()).
		Delete(&models.RefreshToken{}).Error
	if err != nil {
		logging.FromContext(ctx).Warn("refresh token sweep failed", "user_id", userID, "error", err)
	}
}

// ParseAccess verifies an access token and returns its claims.
func (s *Service) ParseAccess(raw string) (*Claims, error) {
	return s.parse(raw, s.JWTSecret, "")
}

func (s *Service) sign(user *models.User, ttl time.Duration, secret []byte, typ string) (string, error) {
	claims := Claims{
		Email:     user.Email,
		Role:      user.Role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(raw string, secret []byte, wantType string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
