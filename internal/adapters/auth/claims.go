package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoUserClaim = errors.New("token carries no user id claim")

// userIDClaims are checked in order; servers disagree on where the
// identity goes.
var userIDClaims = []string{"sub", "user_id", "identity"}

// UserIDFromToken reads the user id out of a JWT access token without
// verifying its signature. The server still verifies the token on every
// request; this only decides which push events belong to the session.
func UserIDFromToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("token is empty")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse token claims: %w", err)
	}

	for _, name := range userIDClaims {
		if userID := claimString(claims[name]); userID != "" {
			return userID, nil
		}
	}

	return "", ErrNoUserClaim
}

func claimString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}
