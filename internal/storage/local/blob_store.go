// Package local writes crawl output to the local filesystem: a streaming JSON
// Lines dataset per run and whole-file artifacts such as stats.json.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for local output.
type Config struct {
	// BaseDir is the root output directory. Each run writes under BaseDir/<run id>.
	BaseDir string `mapstructure:"output_dir" yaml:"output_dir"`
}

// BlobStore writes artifacts to the local filesystem.
type BlobStore struct {
	baseDir string
}

// New creates a local filesystem-backed blob store, creating BaseDir if needed.
func New(cfg Config) (*BlobStore, error) {
	if err := ensureDir(cfg.BaseDir); err != nil {
		return nil, err
	}
	return &BlobStore{baseDir: cfg.BaseDir}, nil
}

// PutObject writes data to BaseDir/path and returns a file:// URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	fullPath, err := resolve(s.baseDir, path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read object data: %w", err)
	}
	if err := os.WriteFile(fullPath, byteData, 0o600); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return "file://" + fullPath, nil
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("output directory is required")
	}
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return fmt.Errorf("create output directory: %w", mkErr)
		}
	case err != nil:
		return fmt.Errorf("stat output directory: %w", err)
	case !info.IsDir():
		return fmt.Errorf("output path %s is not a directory", dir)
	}

	probe := filepath.Join(dir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("output directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return fmt.Errorf("clean up probe file: %w", err)
	}
	return nil
}

// resolve joins path under baseDir and rejects anything that escapes it.
func resolve(baseDir, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	cleanBase := filepath.Clean(baseDir)
	full := filepath.Clean(filepath.Join(cleanBase, path))
	if !strings.HasPrefix(full, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %s", path)
	}
	return full, nil
}
