package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Get(ctx, "auth_token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before set, got %v", err)
	}
	if err := store.Set(ctx, "auth_token", "tok-1"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "auth_token", "tok-2"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	got, err := store.Get(ctx, "auth_token")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "tok-2" {
		t.Fatalf("Get() = %q, want tok-2", got)
	}
	if err := store.Delete(ctx, "auth_token"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "auth_token"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, "auth_token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStorePlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.json")
	store, err := NewFileStore(path, "")
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	exerciseStore(t, store)

	if err := store.Set(context.Background(), "auth_token", "visible"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(data), "visible") {
		t.Fatalf("expected plain value in file: %s", data)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("unexpected file mode %v", perm)
	}
}

func TestFileStoreSealed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	store, err := NewFileStore(path, "correct horse")
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	exerciseStore(t, store)

	ctx := context.Background()
	if err := store.Set(ctx, "auth_token", "secret-token"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if strings.Contains(string(data), "secret-token") {
		t.Fatalf("expected sealed value, found plaintext: %s", data)
	}

	reopened, _ := NewFileStore(path, "correct horse")
	if got, err := reopened.Get(ctx, "auth_token"); err != nil || got != "secret-token" {
		t.Fatalf("reopened Get() = %q, %v", got, err)
	}

	wrong, _ := NewFileStore(path, "battery staple")
	if _, err := wrong.Get(ctx, "auth_token"); !errors.Is(err, ErrSealed) {
		t.Fatalf("expected ErrSealed with wrong passphrase, got %v", err)
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, "memory://", Options{})
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected *MemoryStore, got %T", store)
	}

	path := filepath.Join(t.TempDir(), "s.json")
	store, err = Open(ctx, path, Options{})
	if err != nil {
		t.Fatalf("Open(path) error = %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Fatalf("expected *FileStore, got %T", store)
	}

	store, err = Open(ctx, "redis://localhost:6379/0", Options{})
	if err != nil {
		t.Fatalf("Open(redis) error = %v", err)
	}
	if rs, ok := store.(*RedisStore); !ok {
		t.Fatalf("expected *RedisStore, got %T", store)
	} else {
		_ = rs.Close()
	}

	if _, err := Open(ctx, "ftp://example.com", Options{}); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
	if _, err := Open(ctx, "  ", Options{}); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("VIDINSIGHT_TEST_REDIS_URL")
	if url == "" {
		t.Skip("VIDINSIGHT_TEST_REDIS_URL not set")
	}
	store, err := NewRedisStoreFromURL(url)
	if err != nil {
		t.Fatalf("NewRedisStoreFromURL() error = %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}
