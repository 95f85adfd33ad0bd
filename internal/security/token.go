package security

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var ErrMalformedToken = errors.New("malformed token")

// Token is a registry publish token of the form <prefix>_<id>_<secret>.
// Only the id is stored in clear; the secret is kept as a bcrypt hash.
type Token struct {
	ID     string
	Secret string
}

func NewToken() Token {
	return Token{
		ID:     strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Secret: strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
}

func (t Token) Encode(prefix string) string {
	return prefix + "_" + t.ID + "_" + t.Secret
}

func ParseToken(prefix, value string) (Token, error) {
	rest, ok := strings.CutPrefix(value, prefix+"_")
	if !ok {
		return Token{}, ErrMalformedToken
	}
	id, secret, ok := strings.Cut(rest, "_")
	if !ok || id == "" || secret == "" {
		return Token{}, ErrMalformedToken
	}
	return Token{ID: id, Secret: secret}, nil
}

func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CompareSecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// Redact replaces every occurrence of the given secrets in s.
func Redact(s string, secrets ...string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, "[REDACTED]")
	}
	return s
}
