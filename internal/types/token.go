package types

import "github.com/golang-jwt/jwt/v5"

// TokenClaims represents the claims in a gateway-issued JWT token. UserID is
// the chat platform's numeric user id.
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}
