package game

import (
	"errors"
	"math/rand"
	"strings"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const CodeLength = 6

// GenerateCode returns a random 6-character uppercase alphanumeric game code.
// Collisions are not checked here; uniqueness is enforced by the store at
// entity creation.
func GenerateCode() string {
	code := make([]byte, CodeLength)
	for i := range code {
		code[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(code)
}

func ValidateCode(code string) error {
	if len(code) != CodeLength {
		return errors.New("Game code must be exactly 6 characters")
	}

	for _, ch := range code {
		if (ch < 'A' || ch > 'Z') && (ch < '0' || ch > '9') {
			return errors.New("Game code must contain only A-Z and 0-9")
		}
	}

	return nil
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
