package domain

import "time"

// Profile records where and as whom the CLI signs in. The token itself lives
// in the credential store under TokenRef.
type Profile struct {
	Server    string
	UserID    string
	TokenRef  string
	UpdatedAt time.Time
}
