package api

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// MaxSearchLength bounds search terms, counted in characters
const MaxSearchLength = 64

// Validator handles validation logic separate from HTTP concerns
type Validator struct {
	maxSearchLength int
}

var (
	validatorInstance *Validator
	validatorOnce     sync.Once
)

// GetValidator returns the singleton validator instance
func GetValidator() *Validator {
	validatorOnce.Do(func() {
		validatorInstance = &Validator{
			maxSearchLength: MaxSearchLength,
		}
	})
	return validatorInstance
}

// ValidateSearch sanitizes a table or chart search term. An empty term is valid
// and means no filtering. Any other printable text is a valid substring.
func (v *Validator) ValidateSearch(term string) (string, error) {
	clean := v.sanitizeInput(term)

	if utf8.RuneCountInString(clean) > v.maxSearchLength {
		return "", fmt.Errorf("search must be at most %d characters", v.maxSearchLength)
	}

	return clean, nil
}

// sanitizeInput removes control characters and trims whitespace
func (v *Validator) sanitizeInput(input string) string {
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)

	return strings.TrimSpace(input)
}
