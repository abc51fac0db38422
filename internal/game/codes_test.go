package game_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Valentin-Gelly/puissance-4-beyond/internal/game"
)

func TestGenerateCodeFormat(t *testing.T) {
	assert := assert.New(t)

	for range 100 {
		code := game.GenerateCode()

		assert.Equal(game.CodeLength, len(code))

		for _, ch := range code {
			assert.True((ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9'))
		}
	}
}

func TestGenerateCodeValidatesItself(t *testing.T) {
	for range 100 {
		assert.NoError(t, game.ValidateCode(game.GenerateCode()))
	}
}

func TestValidateCodeInvalidLength(t *testing.T) {
	invalidCodes := []string{"", "A", "ABC", "ABCDE", "ABCDEFG"}

	for _, code := range invalidCodes {
		err := game.ValidateCode(code)
		assert.Error(t, err, "Code %s should be invalid (wrong length)", code)
		assert.Contains(t, err.Error(), "exactly 6 characters")
	}
}

func TestValidateCodeInvalidCharacters(t *testing.T) {
	invalidCodes := []string{
		"abc123", // lowercase
		"AB-C12", // special chars
		"AB C12", // space
	}

	for _, code := range invalidCodes {
		err := game.ValidateCode(code)
		assert.Error(t, err, "Code %s should be invalid (bad characters)", code)
		assert.Contains(t, err.Error(), "only A-Z and 0-9")
	}
}

func TestNormalizeCode(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("ABC123", game.NormalizeCode("abc123"))
	assert.Equal("ABC123", game.NormalizeCode("  ABC123 "))
	assert.Equal("ABC123", game.NormalizeCode("aBc123"))
}
