package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch reports a password or MFA code that does not match its hash.
var ErrMismatch = errors.New("secret does not match")

// HashSecret hashes a password or MFA code with the configured cost.
func HashSecret(secret string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CompareSecret verifies a secret against its hashed value. An empty hash
// never matches.
func CompareSecret(hashed, plain string) error {
	if hashed == "" {
		return ErrMismatch
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return err
}
