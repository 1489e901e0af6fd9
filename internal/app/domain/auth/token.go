package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fmcunha/folioview/internal/app/models"
)

// CallbackClaims is what the external identity provider encodes in the
// token it hands back through the redirect.
type CallbackClaims struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// ParseCallbackToken validates the provider token and extracts identity
// and role. The token only gates the local optimistic session; the
// backend re-confirms everything on the next refresh.
func ParseCallbackToken(secret, tokenString string) (*CallbackClaims, error) {
	claims := &CallbackClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidCallback, err)
	}
	if claims.Identity == "" {
		return nil, models.ErrInvalidCallback
	}
	return claims, nil
}
