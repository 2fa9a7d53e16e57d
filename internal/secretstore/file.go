package secretstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps a secret in a file readable only by its owner.
type FileStore struct {
	filePath string
}

// Compile-time check to ensure FileStore implements SecretStore
var _ SecretStore = (*FileStore)(nil)

// NewFileStore creates a FileStore for the given path. Parent directories are
// created with 0700 permissions on first Write.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	return &FileStore{filePath: filePath}, nil
}

// Read returns the stored secret with surrounding whitespace removed. Returns
// error if the file is missing, empty, or readable by anyone but its owner.
func (f *FileStore) Read(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := os.Stat(f.filePath)
	if err != nil {
		return "", err
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return "", fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", f.filePath, perm)
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return "", err
	}

	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("empty secret file %s", f.filePath)
	}
	return secret, nil
}

// Write atomically replaces the file contents using temp file + rename.
// The file ends up with 0600 permissions.
func (f *FileStore) Write(ctx context.Context, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return fmt.Errorf("refusing to store an empty secret")
	}

	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	// CreateTemp opens with 0600, so the secret is never world-readable on disk.
	tempFile, err := os.CreateTemp(dir, ".secret-*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.WriteString(secret + "\n"); err != nil {
		return err
	}
	if err := tempFile.Sync(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	if err := os.Rename(tempName, f.filePath); err != nil {
		return err
	}
	return os.Chmod(f.filePath, 0o600)
}
