package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreWriteRead(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "./jobs/generation_jobs.json", []byte(`[1]`))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if key != "jobs/generation_jobs.json" {
		t.Fatalf("key = %q", key)
	}
	if _, err := store.Write(ctx, key, []byte(`[1,2]`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != `[1,2]` {
		t.Fatalf("Read = %s, want [1,2]", data)
	}

	entries, err := os.ReadDir(filepath.Join(store.BasePath(), "jobs"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestFileStoreReadMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := store.Read(context.Background(), "absent.json"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Read err = %v, want ErrNotFound", err)
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "a/b.json", want: "a/b.json"},
		{in: "/a//b.json", want: "a/b.json"},
		{in: `a\b.json`, want: "a/b.json"},
		{in: "../escape.json", wantErr: true},
		{in: "a/../../escape.json", wantErr: true},
		{in: "..", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := sanitizeKey(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("sanitizeKey(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("sanitizeKey(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore(" "); err == nil {
		t.Fatalf("NewFileStore accepted an empty path")
	}
}
