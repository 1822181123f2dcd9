package core

import (
	"errors"
	"testing"
)

func TestCleanKey(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"exports/abc/view.csv", "exports/abc/view.csv", false},
		{"a//b/./c", "a/b/c", false},
		{`dir\file.txt`, "dir/file.txt", false},
		{"", "", true},
		{"   ", "", true},
		{"/etc/passwd", "", true},
		{"../up", "", true},
		{"a/../../b", "", true},
		{"name..with..dots", "name..with..dots", false},
	}
	for _, tc := range cases {
		got, err := CleanKey(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("CleanKey(%q): expected ErrInvalidKey, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestParseDriver(t *testing.T) {
	if d, err := ParseDriver(""); err != nil || d != DriverFilesystem {
		t.Fatalf("empty driver: %v %v", d, err)
	}
	if d, err := ParseDriver(" S3 "); err != nil || d != DriverS3 {
		t.Fatalf("s3 driver: %v %v", d, err)
	}
	if _, err := ParseDriver("gcs"); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestSentinelWrapping(t *testing.T) {
	if !errors.Is(NotFound("k"), ErrNotFound) || !errors.Is(Exists("k"), ErrExists) {
		t.Fatalf("sentinels not wrapped")
	}
	if CloneMetadata(nil) != nil {
		t.Fatalf("nil metadata should stay nil")
	}
	md := map[string]string{"a": "1"}
	cp := CloneMetadata(md)
	cp["a"] = "2"
	if md["a"] != "1" {
		t.Fatalf("clone shares storage")
	}
}
