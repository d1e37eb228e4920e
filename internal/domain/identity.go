package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// MaxNameLength caps a participant's display name, counted in characters.
const MaxNameLength = 100

// Name is a validated participant display name.
type Name struct {
	value string
}

// NewName trims raw and enforces 1..MaxNameLength characters.
func NewName(raw string) (Name, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Name{}, &ValidationError{Field: "name", Kind: ValidationEmpty}
	}
	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return Name{}, &ValidationError{Field: "name", Kind: ValidationTooLong, Max: MaxNameLength}
	}
	return Name{value: trimmed}, nil
}

func (n Name) String() string { return n.value }

// Token identifies a participant to the service.
type Token struct {
	value string
}

// NewToken wraps a server-issued identifier as-is.
func NewToken(raw string) Token {
	return Token{value: raw}
}

// ParseToken accepts untrusted input such as a token file or a CLI flag.
func ParseToken(raw string) (Token, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Token{}, &ValidationError{Field: "token", Kind: ValidationEmpty}
	}
	return Token{value: trimmed}, nil
}

func (t Token) String() string { return t.value }

// GenerateID returns a new time-sortable ULID string.
func GenerateID() string {
	return ulid.Make().String()
}
