package cryptox

import "github.com/google/uuid"

// NewToken returns a random (version 4) UUID string. Used for both session
// and password-reset tokens.
func NewToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
