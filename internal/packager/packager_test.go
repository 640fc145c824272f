package packager

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func TestNewResumesFromHighestArchive(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "package-1.7z"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "package-2.7z"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := New(dir, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := filepath.Join(dir, "package-3")
	if p.CurrentDir() != want {
		t.Errorf("got %q, want %q", p.CurrentDir(), want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected package-3 dir to exist: %v", err)
	}
}

func TestZstdArchiverRoundTrip(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "b.txt"), []byte("world"), 0o644); err != nil {
		t.Fatal(err)
	}

	archivePath := filepath.Join(t.TempDir(), "out.7z")
	if err := (ZstdArchiver{}).Archive(src, archivePath); err != nil {
		t.Fatalf("Archive: %v", err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	names := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar read: %v", err)
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("tar content: %v", err)
		}
		names[hdr.Name] = string(content)
	}
	if names["a.txt"] != "hello" || names["b.txt"] != "world" {
		t.Errorf("unexpected archive contents: %v", names)
	}
}

func TestTickRotatesOnFileCount(t *testing.T) {
	root := t.TempDir()
	p, err := New(root, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dir := p.CurrentDir()
	for i := 0; i < rotateFiles+1; i++ {
		name := filepath.Join(dir, "f"+strconv.Itoa(i)+".txt")
		if err := os.WriteFile(name, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	p.tick()

	if _, err := os.Stat(filepath.Join(root, "package-1.7z")); err != nil {
		t.Errorf("expected package-1.7z to exist after rotation: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("expected old package dir removed, err=%v", err)
	}
	if p.CurrentDir() != filepath.Join(root, "package-2") {
		t.Errorf("expected current dir to advance, got %q", p.CurrentDir())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	root := t.TempDir()
	p, err := New(root, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
