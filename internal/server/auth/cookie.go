package auth

import (
	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims carries the opaque session token. There is no expiry: a
// session lives until logout or the next login.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// SignSessionCookie wraps token in an HS256 JWT suitable as a cookie value.
func SignSessionCookie(token string, secretKey []byte) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{SessionID: token})
	return t.SignedString(secretKey)
}

// SessionFromCookie verifies value and returns the session token in it.
func SessionFromCookie(value string, secretKey []byte) (string, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	if !token.Valid || claims.SessionID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.SessionID, nil
}
