// Package secrets hashes and verifies the passwords signers re-enter on every
// electronic signature. Hash also derives the binding token persisted with a
// captured signature.
package secrets

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	dErrors "doccontrol/pkg/domain-errors"
)

// Hash bcrypt-hashes the given value.
func Hash(value string) (string, error) {
	if value == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "value cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "value exceeds the bcrypt length limit")
		}
		return "", fmt.Errorf("could not hash value: %w", err)
	}
	return string(hashed), nil
}

// Verify checks a plaintext value against a bcrypt hash. A mismatch comes
// back as CodeInvalidInput; callers translate it to their own taxonomy.
func Verify(value, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(value)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeInvalidInput, "value does not match")
		}
		return fmt.Errorf("could not verify value: %w", err)
	}
	return nil
}
