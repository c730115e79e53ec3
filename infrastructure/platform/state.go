package platform

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

// StateClaims is what the OAuth state parameter carries across the redirect.
// The state is not secret but must be tamper-evident, so it is an HS256 JWT
// signed with the application secret.
type StateClaims struct {
	OwnerID  string `json:"owner_id"`
	Platform string `json:"platform"`
	jwt.StandardClaims
}

// EncodeState builds the signed state parameter for an authorize URL.
func EncodeState(secretKey, ownerID, platformKey string) (string, error) {
	claims := StateClaims{
		OwnerID:  ownerID,
		Platform: platformKey,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(10 * time.Minute).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", fmt.Errorf("oauth state: sign: %w", err)
	}
	return signed, nil
}

// DecodeState validates and decodes a callback's state parameter. Any state
// that cannot be decoded or verified is rejected; a fabricated owner must
// never be resolved from a corrupted string.
func DecodeState(secretKey, state string) (*StateClaims, error) {
	claims := &StateClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("oauth state: invalid: %w", err)
	}
	if !token.Valid || claims.OwnerID == "" || claims.Platform == "" {
		return nil, fmt.Errorf("oauth state: invalid claims")
	}
	return claims, nil
}
