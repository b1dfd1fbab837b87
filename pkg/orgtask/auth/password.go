package auth

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a password with a bcrypt hash
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

const specialChars = "@.+-/_"

// ValidatePassword checks a candidate password against the shared policy:
// at least 8 characters, not entirely numeric, at least one uppercase letter,
// one digit and one of "@ . + - / _". Returns nil when the password is
// acceptable, otherwise the human-readable reason. The same policy guards
// registration, password-reset confirm and change-password.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("Your password must contain at least 8 characters")
	}

	allDigits := true
	hasUpper := false
	hasDigit := false
	hasSpecial := false
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
		} else {
			hasDigit = true
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if strings.ContainsRune(specialChars, r) {
			hasSpecial = true
		}
	}

	if allDigits {
		return errors.New("Your password should not contain only number")
	}
	if !hasUpper {
		return errors.New("Your password must include an upper letter")
	}
	if !hasDigit {
		return errors.New("Your password must include at least one digit")
	}
	if !hasSpecial {
		return errors.New("Your password must include at least one of these characters : @ . + - / _")
	}
	return nil
}
