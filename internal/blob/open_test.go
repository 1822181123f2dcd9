package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "blobs")
	fsStore, err := Open(ctx, Config{Driver: "fs", FSRoot: root})
	if err != nil || fsStore.Driver() != DriverFilesystem {
		t.Fatalf("fs: %v", err)
	}
	defStore, err := Open(ctx, Config{FSRoot: root})
	if err != nil || defStore.Driver() != DriverFilesystem {
		t.Fatalf("default driver should be fs: %v", err)
	}
	mem, err := Open(ctx, Config{Driver: "memory"})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("memory: %v", err)
	}
	s3Store, err := Open(ctx, Config{Driver: "s3", S3Bucket: "b", S3Endpoint: "https://mock.s3.local", S3PathStyle: true, S3AccessKeyID: "AKIA", S3SecretAccessKey: "SECRET"})
	if err != nil || s3Store.Driver() != DriverS3 {
		t.Fatalf("s3: %v", err)
	}
	if _, err := Open(ctx, Config{Driver: "s3"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	if _, err := Open(ctx, Config{Driver: "gcs"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

// Every driver must honour the same contract.
func TestDriversShareContract(t *testing.T) {
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	stores := map[string]Store{
		"fs":     fsStore,
		"memory": NewMemory(),
		"s3":     NewMockS3ForTests(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Put(ctx, "exports/1/view.json", bytes.NewReader([]byte(`{"n":1}`)), PutOptions{ContentType: "application/json"}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := store.Put(ctx, "exports/1/view.json", bytes.NewReader([]byte(`{}`)), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
			info, rc, err := store.Get(ctx, "exports/1/view.json")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			body, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(body) != `{"n":1}` || info.Size != 7 {
				t.Fatalf("unexpected blob %q size %d", body, info.Size)
			}
			if _, err := store.Head(ctx, "exports/2/none"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			list, err := store.List(ctx, "exports/")
			if err != nil || len(list) != 1 {
				t.Fatalf("list: %v %+v", err, list)
			}
			if ok, err := store.Delete(ctx, "exports/1/view.json"); err != nil || !ok {
				t.Fatalf("delete: %v %v", ok, err)
			}
			if _, err := store.Put(ctx, "../escape", bytes.NewReader(nil), PutOptions{}); !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("expected ErrInvalidKey, got %v", err)
			}
		})
	}
}
