package localfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Storage spools transient media under a scratch directory so subprocess
// tooling can read it by path. Callers remove what they save.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/scratch"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

// Save writes the payload and returns the absolute path for subprocess use.
func (s *Storage) Save(_ context.Context, key string, data io.Reader) (string, error) {
	path := filepath.Join(s.basePath, filepath.Base(key))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

func (s *Storage) Remove(_ context.Context, key string) error {
	if err := os.Remove(filepath.Join(s.basePath, filepath.Base(key))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove scratch file: %w", err)
	}
	return nil
}
