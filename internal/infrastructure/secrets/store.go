// Package secrets provides SecretStore implementations backed by the process
// environment, a directory of mounted secret files, or a fixed map.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/infrastructure/config"
)

// ErrInvalidSecretName is returned for names that could escape the backend,
// such as path separators or parent references
var ErrInvalidSecretName = errors.New("secrets: invalid secret name")

var (
	_ listing.SecretStore = (*EnvStore)(nil)
	_ listing.SecretStore = (*DirStore)(nil)
	_ listing.SecretStore = (*StaticStore)(nil)
	_ listing.SecretStore = ChainStore(nil)
)

func checkName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidSecretName, name)
	}
	return nil
}

// ---------------------------------------------------------------------------
// EnvStore
// ---------------------------------------------------------------------------

// EnvStore reads PREFIX + upper(name), so "ebay_client_id" becomes
// CROSSLIST_SECRET_EBAY_CLIENT_ID
type EnvStore struct {
	prefix string
	lookup func(string) (string, bool)
}

// NewEnvStore creates an EnvStore with the given variable prefix
func NewEnvStore(prefix string) *EnvStore {
	return &EnvStore{prefix: prefix, lookup: os.LookupEnv}
}

// GetSecret returns the variable, or ErrSecretNotFound when unset or empty
func (s *EnvStore) GetSecret(_ context.Context, name string) (listing.SecretHandle, error) {
	if err := checkName(name); err != nil {
		return listing.SecretHandle{}, err
	}
	key := s.prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	v, ok := s.lookup(key)
	if !ok || v == "" {
		return listing.SecretHandle{}, fmt.Errorf("%w: %s", listing.ErrSecretNotFound, name)
	}
	return listing.NewSecretHandle(name, v), nil
}

// ---------------------------------------------------------------------------
// DirStore
// ---------------------------------------------------------------------------

// DirStore reads one file per secret from a directory, the layout used by
// Docker and Kubernetes secret mounts. Trailing whitespace is trimmed.
type DirStore struct {
	dir string
}

// NewDirStore creates a DirStore rooted at dir
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// GetSecret reads dir/name
func (s *DirStore) GetSecret(_ context.Context, name string) (listing.SecretHandle, error) {
	if err := checkName(name); err != nil {
		return listing.SecretHandle{}, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return listing.SecretHandle{}, fmt.Errorf("%w: %s", listing.ErrSecretNotFound, name)
		}
		return listing.SecretHandle{}, fmt.Errorf("read secret %s: %w", name, err)
	}
	v := strings.TrimRight(string(data), " \t\r\n")
	if v == "" {
		return listing.SecretHandle{}, fmt.Errorf("%w: %s", listing.ErrSecretNotFound, name)
	}
	return listing.NewSecretHandle(name, v), nil
}

// ---------------------------------------------------------------------------
// StaticStore
// ---------------------------------------------------------------------------

// StaticStore serves secrets from a fixed map. Used in tests and local runs.
type StaticStore struct {
	values map[string]string
}

// NewStaticStore copies values into a new store
func NewStaticStore(values map[string]string) *StaticStore {
	m := make(map[string]string, len(values))
	for k, v := range values {
		m[k] = v
	}
	return &StaticStore{values: m}
}

// GetSecret returns the mapped value
func (s *StaticStore) GetSecret(_ context.Context, name string) (listing.SecretHandle, error) {
	v, ok := s.values[name]
	if !ok || v == "" {
		return listing.SecretHandle{}, fmt.Errorf("%w: %s", listing.ErrSecretNotFound, name)
	}
	return listing.NewSecretHandle(name, v), nil
}

// ---------------------------------------------------------------------------
// ChainStore
// ---------------------------------------------------------------------------

// ChainStore asks each store in order and returns the first hit. Only
// ErrSecretNotFound moves on to the next store; other errors stop the chain.
type ChainStore []listing.SecretStore

// GetSecret walks the chain
func (c ChainStore) GetSecret(ctx context.Context, name string) (listing.SecretHandle, error) {
	for _, s := range c {
		h, err := s.GetSecret(ctx, name)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, listing.ErrSecretNotFound) {
			return listing.SecretHandle{}, err
		}
	}
	return listing.SecretHandle{}, fmt.Errorf("%w: %s", listing.ErrSecretNotFound, name)
}

// ---------------------------------------------------------------------------
// Factory
// ---------------------------------------------------------------------------

// NewStore builds the configured backend. A dir backend falls back to the
// environment so single credentials can be overridden without a remount.
func NewStore(cfg config.SecretsConfig, logger *zap.Logger) (listing.SecretStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	env := NewEnvStore(cfg.EnvPrefix)

	switch cfg.Backend {
	case "", "env":
		logger.Info("using environment secret store", zap.String("prefix", cfg.EnvPrefix))
		return env, nil
	case "dir":
		info, err := os.Stat(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("secrets dir: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("secrets dir %s is not a directory", cfg.Dir)
		}
		logger.Info("using directory secret store", zap.String("dir", cfg.Dir))
		return ChainStore{NewDirStore(cfg.Dir), env}, nil
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.Backend)
	}
}
