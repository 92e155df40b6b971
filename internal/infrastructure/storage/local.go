package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/reseller/crosslist/internal/domain/listing"
	"github.com/reseller/crosslist/internal/infrastructure/config"
	"github.com/reseller/crosslist/internal/infrastructure/marketplace"
)

// ErrInvalidKey is returned for empty, absolute or escaping keys
var ErrInvalidKey = errors.New("storage: invalid key")

var (
	_ marketplace.FileSink = (*LocalSink)(nil)
	_ marketplace.FileSink = (*MemorySink)(nil)
)

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || filepath.IsAbs(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(filepath.ToSlash(key), "/") {
		if part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// LocalSink
// ---------------------------------------------------------------------------

// LocalSink writes exports under a directory. Files are written to a temp
// name and renamed so readers never see a partial file.
type LocalSink struct {
	root string
}

// NewLocalSink creates the root directory if needed
func NewLocalSink(root string) (*LocalSink, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve export dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	return &LocalSink{root: abs}, nil
}

// Write stores data at root/key and returns a file:// location
func (s *LocalSink) Write(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".export-*")
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("move export file: %w", err)
	}
	return "file://" + filepath.ToSlash(dst), nil
}

// Root returns the absolute export directory
func (s *LocalSink) Root() string {
	return s.root
}

// ---------------------------------------------------------------------------
// MemorySink
// ---------------------------------------------------------------------------

// MemorySink keeps exports in memory. Use it for tests and dry runs.
type MemorySink struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemorySink creates an empty MemorySink
func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

// Write stores a copy of data under key
func (s *MemorySink) Write(_ context.Context, key string, data []byte, _ string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = append([]byte(nil), data...)
	return "mem://" + key, nil
}

// Get returns the stored file
func (s *MemorySink) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[key]
	return data, ok
}

// Keys returns every stored key
func (s *MemorySink) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.files))
	for k := range s.files {
		keys = append(keys, k)
	}
	return keys
}

// ---------------------------------------------------------------------------
// Factory
// ---------------------------------------------------------------------------

// NewSink builds the configured export sink
func NewSink(ctx context.Context, cfg config.StorageConfig, secrets listing.SecretStore, logger *zap.Logger) (marketplace.FileSink, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case "", "local":
		sink, err := NewLocalSink(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		logger.Info("writing exports to local directory", zap.String("dir", sink.Root()))
		return sink, nil
	case "s3":
		sink, err := NewS3Sink(ctx, &cfg, secrets, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := sink.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		logger.Info("writing exports to object storage", zap.String("bucket", sink.Bucket()))
		return sink, nil
	case "memory":
		logger.Warn("exports are kept in memory and lost on restart")
		return NewMemorySink(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
