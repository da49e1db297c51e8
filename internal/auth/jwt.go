package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims are supplied by the building's auth layer. The service trusts
// actor id and role as given; role gating happens at the caller.
type Claims struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	BuildingID string `json:"building_id"`
	jwt.RegisteredClaims
}

func ParseToken(secret, issuer, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
