package client

import (
	"errors"
	"os"
	"path/filepath"

	"corrode-course/internal/domain"
)

// TokenFile is where the CLI keeps the participant token, relative to the course checkout.
const TokenFile = ".corrode/token"

var ErrNoToken = errors.New("no token found: run 'cargo course init' to register")

type TokenStore struct {
	path string
}

func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Load reads and validates the stored token.
func (s *TokenStore) Load() (domain.Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Token{}, ErrNoToken
		}
		return domain.Token{}, err
	}
	token, err := domain.ParseToken(string(data))
	if err != nil {
		return domain.Token{}, ErrNoToken
	}
	return token, nil
}

// Save writes token, creating the parent directory.
func (s *TokenStore) Save(token domain.Token) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(token.String()), 0o600)
}
