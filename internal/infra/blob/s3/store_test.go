package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"penguinboard/internal/blob/core"
)

func TestStoreMockedBasicFlow(t *testing.T) {
	store, rt := NewMockForTests()
	ctx := context.Background()
	info, err := store.Put(ctx, "exports/e1/view.csv", bytes.NewReader([]byte("species\nGentoo\n")), core.PutOptions{ContentType: "text/csv"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "exports/e1/view.csv" || info.ContentType != "text/csv" || info.Size != 15 || info.ETag == "" {
		t.Fatalf("unexpected info %#v", info)
	}
	head, err := store.Head(ctx, "exports/e1/view.csv")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.ETag == "" || head.ETag != info.ETag || head.Size != 15 {
		t.Fatalf("head should carry the stored etag and size: %#v vs %#v", head, info)
	}
	if _, err := store.Put(ctx, "exports/e1/view.csv", bytes.NewReader([]byte("ignored")), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	_, rc, err := store.Get(ctx, "exports/e1/view.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "species\nGentoo\n" {
		t.Fatalf("get mismatch: %q", string(data))
	}
	if keys := rt.Keys(); len(keys) != 1 || keys[0] != "exports/e1/view.csv" {
		t.Fatalf("unexpected stored keys %v", keys)
	}
	if url, err := store.PresignURL(ctx, "exports/e1/view.csv", core.SignedURLOptions{Expiry: 30 * time.Second}); err != nil || !strings.Contains(url, "X-Amz-Signature") {
		t.Fatalf("presign: %v %s", err, url)
	}
	if ok, err := store.Delete(ctx, "exports/e1/view.csv"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "exports/e1/view.csv"); err != nil || ok {
		t.Fatalf("second delete should report missing: %v %v", ok, err)
	}
}

func TestStoreNotFoundMapping(t *testing.T) {
	store, _ := NewMockForTests()
	ctx := context.Background()
	if _, err := store.Head(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from head, got %v", err)
	}
	if _, _, err := store.Get(ctx, "nope"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from get, got %v", err)
	}
	if _, err := store.PresignURL(ctx, "k", core.SignedURLOptions{Method: "PUT"}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected presign unsupported error, got %v", err)
	}
	if _, err := store.Put(ctx, "../x", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestStoreListPaginates(t *testing.T) {
	store, rt := NewMockForTests()
	rt.PageSize = 2
	ctx := context.Background()
	for _, k := range []string{"exports/c", "exports/a", "exports/b", "datasets/x"} {
		if _, err := store.Put(ctx, k, bytes.NewReader([]byte(k)), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	list, err := store.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].Key != "exports/a" || list[2].Key != "exports/c" {
		t.Fatalf("unexpected list %+v", list)
	}
	if empty, err := store.List(ctx, "none/"); err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list: %v %+v", err, empty)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
	if _, err := New(context.Background(), Config{Bucket: "b", AccessKeyID: "only-id"}); err == nil {
		t.Fatalf("expected error for half static credentials")
	}
	s, err := New(context.Background(), Config{Bucket: "bkt", Endpoint: "https://mock.s3.local", PathStyle: true, AccessKeyID: "AKIA", SecretAccessKey: "SECRET"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Driver() != core.DriverS3 || s.Bucket() != "bkt" {
		t.Fatalf("unexpected store")
	}
}

func TestObjectInfoNilBranches(t *testing.T) {
	etagVal := `"etagval"`
	info := objectInfo("k", 10, nil, &etagVal, map[string]string{"x": "y"}, nil)
	if info.ETag != "etagval" || info.ContentType != "" || info.Key != "k" || info.Size != 10 || info.LastModified.IsZero() {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestDecodeChunked(t *testing.T) {
	if _, ok := decodeChunked([]byte("not-chunked")); ok {
		t.Fatalf("expected plain body to be rejected")
	}
	if _, ok := decodeChunked([]byte("5\r\nabc\r\n0\r\n")); ok {
		t.Fatalf("size mismatch should fail")
	}
	if b, ok := decodeChunked([]byte("5\r\nhello\r\n0\r\nx-amz-checksum-crc32:abc=\r\n\r\n")); !ok || string(b) != "hello" {
		t.Fatalf("expected decode hello, got %q", b)
	}
}

func TestMockTransportUnsupported(t *testing.T) {
	rt := NewMockTransport()
	req, _ := http.NewRequest(http.MethodPatch, "https://mock.s3.local/bucket/key", nil)
	resp, _ := rt.RoundTrip(req)
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", resp.StatusCode)
	}
}
