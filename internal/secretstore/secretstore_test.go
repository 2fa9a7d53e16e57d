package secretstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "password")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Read(ctx); err == nil {
		t.Fatal("Read() on missing file succeeded")
	}

	if err := store.Write(ctx, "  hwoeDmZwyZ \n"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("permissions = %04o, want 0600", perm)
	}

	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != "hwoeDmZwyZ" {
		t.Errorf("Read() = %q, want hwoeDmZwyZ", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want only the secret file", len(entries))
	}
}

func TestFileStoreRejectsInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password")
	if err := os.WriteFile(path, []byte("secret"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	if _, err := store.Read(context.Background()); err == nil {
		t.Fatal("Read() accepted a world-readable secret file")
	}
}

func TestFileStoreRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "password")
	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store, _ := NewFileStore(path)
	if _, err := store.Read(context.Background()); err == nil {
		t.Error("Read() accepted an empty secret file")
	}
	if err := store.Write(context.Background(), " "); err == nil {
		t.Error("Write() accepted an empty secret")
	}
}

func TestEnvStore(t *testing.T) {
	ctx := context.Background()

	if _, err := NewEnvStore(""); err == nil {
		t.Error("NewEnvStore(\"\") succeeded")
	}

	store, err := NewEnvStore("CORREOS_TEST_PASSWORD")
	if err != nil {
		t.Fatalf("NewEnvStore() error = %v", err)
	}

	if _, err := store.Read(ctx); err == nil {
		t.Error("Read() of unset variable succeeded")
	}

	t.Setenv("CORREOS_TEST_PASSWORD", "")
	if _, err := store.Read(ctx); err == nil {
		t.Error("Read() of empty variable succeeded")
	}

	t.Setenv("CORREOS_TEST_PASSWORD", "from-env")
	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != "from-env" {
		t.Errorf("Read() = %q, want from-env", got)
	}

	if err := store.Write(ctx, "x"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Write() error = %v, want ErrReadOnly", err)
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	ctx := context.Background()

	if _, err := NewKeyringStore("", "user"); err == nil {
		t.Error("NewKeyringStore with empty service succeeded")
	}
	if _, err := NewKeyringStore(DefaultKeyringService, ""); err == nil {
		t.Error("NewKeyringStore with empty user succeeded")
	}

	store, err := NewKeyringStore(DefaultKeyringService, "ccrWS397761")
	if err != nil {
		t.Fatalf("NewKeyringStore() error = %v", err)
	}

	if _, err := store.Read(ctx); err == nil {
		t.Error("Read() of missing entry succeeded")
	}

	if err := store.Write(ctx, "from-keyring"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != "from-keyring" {
		t.Errorf("Read() = %q, want from-keyring", got)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	file, _ := NewFileStore(filepath.Join(t.TempDir(), "password"))
	env, _ := NewEnvStore("CORREOS_TEST_PASSWORD")

	for name, store := range map[string]SecretStore{"file": file, "env": env} {
		if _, err := store.Read(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("%s: Read() error = %v, want context.Canceled", name, err)
		}
		if err := store.Write(ctx, "x"); !errors.Is(err, context.Canceled) {
			t.Errorf("%s: Write() error = %v, want context.Canceled", name, err)
		}
	}
}
