package types

import "github.com/rs/zerolog"

const redacted = "[REDACTED]"

// Credential holds a publish secret. Every formatting path renders it
// redacted; only Reveal returns the raw value.
type Credential struct {
	secret []byte
}

func NewCredential(secret string) Credential {
	return Credential{secret: []byte(secret)}
}

func (c Credential) Reveal() string {
	return string(c.secret)
}

func (c Credential) IsEmpty() bool {
	return len(c.secret) == 0
}

func (c Credential) String() string {
	return redacted
}

func (c Credential) GoString() string {
	return redacted
}

func (c Credential) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

func (c Credential) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

func (c Credential) MarshalZerologObject(e *zerolog.Event) {
	e.Bool("present", !c.IsEmpty())
}
