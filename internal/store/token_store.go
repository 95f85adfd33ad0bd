package store

import (
	"context"
	"time"
)

// Token is a registry publish token. Only a hash of the secret is kept.
type Token struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	SecretHash  string     `json:"-"`
	CreatedOn   time.Time  `json:"created_on"`
	LastUsedOn  *time.Time `json:"last_used_on,omitempty"`
	RevokedOn   *time.Time `json:"revoked_on,omitempty"`
}

func (t *Token) Revoked() bool {
	return t.RevokedOn != nil
}

type TokenStore interface {
	CreateToken(ctx context.Context, id, description, secretHash string) (*Token, error)
	ReadTokenByID(context.Context, string) (*Token, error)
	ListTokens(context.Context) ([]*Token, error)
	RevokeToken(context.Context, string) error
	TouchToken(ctx context.Context, id string, at time.Time) error
}
