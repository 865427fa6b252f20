package domain

import (
	"errors"
	"strings"
)

var ErrInvalidSession = errors.New("session requires both token and user id")

// Session binds the credentials used by every channel of one signed-in user.
// A change to either field is a different session.
type Session struct {
	token  string
	userID string
}

func NewSession(token, userID string) (Session, error) {
	token = strings.TrimSpace(token)
	userID = strings.TrimSpace(userID)
	if token == "" || userID == "" {
		return Session{}, ErrInvalidSession
	}

	return Session{token: token, userID: userID}, nil
}

func (s Session) Token() string {
	return s.token
}

func (s Session) UserID() string {
	return s.userID
}

func (s Session) IsZero() bool {
	return s.token == "" && s.userID == ""
}

func (s Session) Equal(other Session) bool {
	return s.token == other.token && s.userID == other.userID
}
