package archive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"

	"tsencode/internal/config"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix string
		id     int64
		name   string
		want   string
	}{
		{"encoded/", 5, "foo.mkv", "encoded/5/foo.mkv"},
		{"", 7, "bar.mkv", "7/bar.mkv"},
		{"/a/b/", 9, "/out/dir/baz.mkv", "a/b/9/baz.mkv"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.prefix, tt.id, tt.name); got != tt.want {
			t.Fatalf("ObjectKey(%q, %d, %q) = %q, want %q", tt.prefix, tt.id, tt.name, got, tt.want)
		}
	}
}

func TestContentType(t *testing.T) {
	if got := contentType("/x/a.MKV"); got != "video/x-matroska" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := contentType("/x/a.ts"); got != "video/mp2t" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := contentType("/x/noext"); got != "application/octet-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
}

func TestNewDisabledReturnsNil(t *testing.T) {
	cfg := config.Default()
	up, err := New(context.Background(), &cfg)
	if err != nil || up != nil {
		t.Fatalf("expected nil uploader when disabled, got %v, %v", up, err)
	}
}

func TestS3UploadToCustomEndpoint(t *testing.T) {
	var mu sync.Mutex
	var gotMethod, gotPath string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotMethod, gotPath, gotBody = r.Method, r.URL.Path, body
		mu.Unlock()
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	local := filepath.Join(t.TempDir(), "foo.mkv")
	if err := os.WriteFile(local, []byte("matroska bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	up := NewS3(config.Archive{
		Backend:   config.ArchiveS3,
		Bucket:    "archive-bucket",
		Region:    "us-east-1",
		Endpoint:  srv.URL + "/",
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
	})
	url, err := up.Upload(context.Background(), local, "encoded/5/foo.mkv")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.Contains(url, "archive-bucket/encoded/5/foo.mkv") {
		t.Fatalf("unexpected object url %q", url)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotMethod != http.MethodPut {
		t.Fatalf("expected PUT, got %s", gotMethod)
	}
	if gotPath != "/archive-bucket/encoded/5/foo.mkv" {
		t.Fatalf("expected path-style request, got %s", gotPath)
	}
	if !strings.Contains(string(gotBody), "matroska bytes") {
		t.Fatalf("expected file contents in request body, got %q", gotBody)
	}
}

func TestS3UploadMissingFile(t *testing.T) {
	up := NewS3(config.Archive{Bucket: "b", Region: "us-east-1"})
	if _, err := up.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.mkv"), "k"); err == nil {
		t.Fatal("expected error for missing local file")
	}
}

func TestNewGCSWithoutAuthentication(t *testing.T) {
	up, err := NewGCS(context.Background(), config.Archive{Bucket: "b"}, option.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewGCS: %v", err)
	}
	if err := up.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
