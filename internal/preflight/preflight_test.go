package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()

	result := CheckDirectoryAccess("Output root", dir)
	if !result.Passed {
		t.Fatalf("expected pass: %s", result.Detail)
	}

	missing := CheckDirectoryAccess("Output root", filepath.Join(dir, "nope"))
	if missing.Passed {
		t.Fatal("missing directory should fail")
	}
	if !strings.Contains(missing.Detail, "does not exist") {
		t.Fatalf("detail = %q", missing.Detail)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	notDir := CheckDirectoryAccess("Output root", file)
	if notDir.Passed {
		t.Fatal("regular file should fail")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	result := CheckFreeSpace("Free space", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass: %s", result.Detail)
	}
	if result.Detail == "" {
		t.Fatal("expected humanized detail")
	}
}

func TestCheckRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := CheckRemote(context.Background(), server.URL, "stemfetch-test")
	if !result.Passed {
		t.Fatalf("expected pass: %s", result.Detail)
	}

	server.Close()
	down := CheckRemote(context.Background(), server.URL, "stemfetch-test")
	if down.Passed {
		t.Fatal("closed server should fail")
	}

	empty := CheckRemote(context.Background(), "", "")
	if empty.Passed || !strings.Contains(empty.Detail, "base_url") {
		t.Fatalf("empty url: %+v", empty)
	}
}
