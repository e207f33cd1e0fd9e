package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mealmetrics/backend/internal/types"
)

// AuthService issues and validates the JWT tokens the chat gateway uses to
// act on behalf of its users.
type AuthService struct {
	jwtSecret     string
	gatewaySecret string
}

// NewAuthService creates an AuthService.
func NewAuthService(jwtSecret, gatewaySecret string) *AuthService {
	return &AuthService{jwtSecret: jwtSecret, gatewaySecret: gatewaySecret}
}

// CheckGatewaySecret verifies the shared secret presented by the gateway
// when minting user tokens.
func (s *AuthService) CheckGatewaySecret(secret string) bool {
	return secret != "" && secret == s.gatewaySecret
}

// GenerateToken mints a 24h token carrying the chat user identity.
func (s *AuthService) GenerateToken(userID int64, username string) (string, error) {
	claims := &types.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID:   userID,
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// ValidateToken parses and verifies a gateway token.
func (s *AuthService) ValidateToken(tokenString string) (*types.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &types.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*types.TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == 0 {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
