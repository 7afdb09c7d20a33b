// Package hash wraps bcrypt for the locally registered accounts.
package hash

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCost       = 12
	MinPasswordLength = 8
)

var (
	ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrMismatch         = errors.New("password does not match")
)

func Hash(password string) (string, error) {
	return HashWithCost(password, DefaultCost)
}

// HashWithCost exists for callers that trade strength for speed, such as
// tests. Costs below bcrypt's minimum fall back to bcrypt's default.
func HashWithCost(password string, cost int) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(hashedBytes), nil
}

func Compare(hashedPassword, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	return err
}
