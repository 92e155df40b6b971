package listing

import "context"

const redacted = "[REDACTED]"

// SecretStore resolves named credentials. Adapters receive one at
// construction instead of reading credentials from configuration.
type SecretStore interface {
	GetSecret(ctx context.Context, name string) (SecretHandle, error)
}

// SecretHandle wraps a credential so that formatting, logging or JSON
// encoding never reveals it. Only Reveal returns the value.
type SecretHandle struct {
	name  string
	value string
}

// NewSecretHandle wraps value under name
func NewSecretHandle(name, value string) SecretHandle {
	return SecretHandle{name: name, value: value}
}

// Name returns the secret's name, which is safe to log
func (h SecretHandle) Name() string { return h.name }

// Reveal returns the raw credential
func (h SecretHandle) Reveal() string { return h.value }

// IsZero reports whether the handle holds no value
func (h SecretHandle) IsZero() bool { return h.value == "" }

func (h SecretHandle) String() string   { return redacted }
func (h SecretHandle) GoString() string { return redacted }

// MarshalJSON never encodes the value
func (h SecretHandle) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// MarshalText never encodes the value
func (h SecretHandle) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}
