package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// AuthService issues and verifies the HS256 tokens that guard the record API.
// It is unrelated to the RS256 assertion used against the spreadsheet.
type AuthService struct {
	jwtSecret string
	jwtExpiry time.Duration
}

type TokenClaims struct {
	Subject   string
	TokenID   string
	ExpiresAt time.Time
}

func NewAuthService(jwtSecret string, jwtExpiry time.Duration) *AuthService {
	return &AuthService{
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
	}
}

// IssueToken mints an API token for an operator or an upstream service.
func (s *AuthService) IssueToken(subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("subject is required")
	}

	now := time.Now()
	expiresAt := now.Add(s.jwtExpiry)
	claims := jwt.MapClaims{
		"sub": subject,
		"jti": uuid.New().String(),
		"exp": expiresAt.Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *AuthService) VerifyToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, ErrInvalidToken
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrInvalidToken
	}

	tokenID, _ := claims["jti"].(string)

	return &TokenClaims{
		Subject:   subject,
		TokenID:   tokenID,
		ExpiresAt: exp.Time,
	}, nil
}
