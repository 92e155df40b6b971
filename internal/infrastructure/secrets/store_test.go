package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/infrastructure/config"
)

func TestEnvStore(t *testing.T) {
	t.Setenv("TEST_SECRET_EBAY_CLIENT_ID", "client-123")
	t.Setenv("TEST_SECRET_EMPTY", "")
	s := NewEnvStore("TEST_SECRET_")
	ctx := context.Background()

	h, err := s.GetSecret(ctx, "ebay_client_id")
	require.NoError(t, err)
	assert.Equal(t, "client-123", h.Reveal())
	assert.Equal(t, "ebay_client_id", h.Name())

	_, err = s.GetSecret(ctx, "empty")
	assert.ErrorIs(t, err, listing.ErrSecretNotFound)

	_, err = s.GetSecret(ctx, "missing")
	assert.ErrorIs(t, err, listing.ErrSecretNotFound)
}

func TestDirStore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mercari_api_key"), []byte("key-1\n"), 0o600))
	s := NewDirStore(dir)
	ctx := context.Background()

	h, err := s.GetSecret(ctx, "mercari_api_key")
	require.NoError(t, err)
	assert.Equal(t, "key-1", h.Reveal())

	_, err = s.GetSecret(ctx, "absent")
	assert.ErrorIs(t, err, listing.ErrSecretNotFound)

	for _, name := range []string{"../etc/passwd", "a/b", "..", ""} {
		_, err = s.GetSecret(ctx, name)
		assert.ErrorIs(t, err, ErrInvalidSecretName, name)
	}
}

func TestChainStore(t *testing.T) {
	first := NewStaticStore(map[string]string{"a": "from-first"})
	second := NewStaticStore(map[string]string{"a": "shadowed", "b": "from-second"})
	chain := ChainStore{first, second}
	ctx := context.Background()

	h, err := chain.GetSecret(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "from-first", h.Reveal())

	h, err = chain.GetSecret(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "from-second", h.Reveal())

	_, err = chain.GetSecret(ctx, "c")
	assert.ErrorIs(t, err, listing.ErrSecretNotFound)

	_, err = ChainStore{NewDirStore(t.TempDir()), second}.GetSecret(ctx, "../b")
	assert.ErrorIs(t, err, ErrInvalidSecretName)
}

func TestSecretHandle_NeverPrinted(t *testing.T) {
	h, err := NewStaticStore(map[string]string{"token": "s3cr3t"}).GetSecret(context.Background(), "token")
	require.NoError(t, err)

	data, err := json.Marshal(map[string]any{"token": h})
	require.NoError(t, err)

	for _, out := range []string{fmt.Sprint(h), fmt.Sprintf("%v %+v %#v %s", h, h, h, h), string(data)} {
		assert.NotContains(t, out, "s3cr3t")
	}
}

func TestNewStore(t *testing.T) {
	t.Run("env backend", func(t *testing.T) {
		s, err := NewStore(config.SecretsConfig{Backend: "env", EnvPrefix: "X_"}, nil)
		require.NoError(t, err)
		assert.IsType(t, &EnvStore{}, s)
	})

	t.Run("dir backend falls back to env", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv("X_ONLY_IN_ENV", "env-value")
		s, err := NewStore(config.SecretsConfig{Backend: "dir", Dir: dir, EnvPrefix: "X_"}, nil)
		require.NoError(t, err)

		h, err := s.GetSecret(context.Background(), "only_in_env")
		require.NoError(t, err)
		assert.Equal(t, "env-value", h.Reveal())
	})

	t.Run("missing dir", func(t *testing.T) {
		_, err := NewStore(config.SecretsConfig{Backend: "dir", Dir: filepath.Join(t.TempDir(), "nope")}, nil)
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewStore(config.SecretsConfig{Backend: "vault"}, nil)
		assert.Error(t, err)
	})
}
