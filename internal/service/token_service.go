package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haatos/simple-release/internal"
	"github.com/haatos/simple-release/internal/security"
	"github.com/haatos/simple-release/internal/store"
)

type TokenService struct {
	store store.TokenStore
	now   func() time.Time
}

func NewTokenService(store store.TokenStore) *TokenService {
	return &TokenService{store: store, now: time.Now}
}

// CreateToken issues a new token and returns its plaintext form. The
// plaintext is not stored and cannot be recovered later.
func (s *TokenService) CreateToken(ctx context.Context, description string) (string, *store.Token, error) {
	tok := security.NewToken()
	hash, err := security.HashSecret(tok.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("hash token secret: %w", err)
	}
	t, err := s.store.CreateToken(ctx, tok.ID, description, hash)
	if err != nil {
		return "", nil, err
	}
	return tok.Encode(internal.TokenPrefix), t, nil
}

// Authenticate resolves a presented token value to an active token.
func (s *TokenService) Authenticate(ctx context.Context, value string) (*store.Token, error) {
	tok, err := security.ParseToken(internal.TokenPrefix, value)
	if err != nil {
		return nil, ErrInvalidToken
	}
	t, err := s.store.ReadTokenByID(ctx, tok.ID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if t.Revoked() || !security.CompareSecret(t.SecretHash, tok.Secret) {
		return nil, ErrInvalidToken
	}
	if err := s.store.TouchToken(ctx, t.ID, s.now()); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TokenService) ListTokens(ctx context.Context) ([]*store.Token, error) {
	return s.store.ListTokens(ctx)
}

func (s *TokenService) RevokeToken(ctx context.Context, id string) error {
	err := s.store.RevokeToken(ctx, id)
	if store.IsNotFound(err) {
		return errors.Join(ErrInvalidToken, err)
	}
	return err
}
