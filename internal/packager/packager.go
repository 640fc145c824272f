// Package packager runs the background roll-up of saved artifact
// directories into compressed archives, independent of the fetch loop.
package packager

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"

	"github.com/DimitriTimoz/open-finder/internal/metrics"
)

const (
	rotateBytes  = 512 * 1024 * 1024
	rotateFiles  = 1000
	pollInterval = 5 * time.Second
)

// Archiver compresses a directory's contents into a single archive file.
// The system's original compression library is an opaque external
// collaborator; Archiver is the seam a real 7z encoder would plug into.
type Archiver interface {
	Archive(dir, archivePath string) error
}

// Packager owns the current package directory index and rotates it on a
// timer, compressing and removing the directory that falls behind.
type Packager struct {
	root     string
	index    atomic.Int64
	archiver Archiver
	log      *slog.Logger
}

// New initializes a Packager rooted at dataDir ("data" in spec.md's
// on-disk layout), resuming the package index at one past the highest
// already-compressed package found on disk.
func New(dataDir string, archiver Archiver, log *slog.Logger) (*Packager, error) {
	if archiver == nil {
		archiver = ZstdArchiver{}
	}
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("packager: creating data dir: %w", err)
	}

	p := &Packager{root: dataDir, archiver: archiver, log: log}
	idx := int64(1)
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("packager: reading data dir: %w", err)
	}
	for _, e := range entries {
		var k int64
		if _, err := fmt.Sscanf(e.Name(), "package-%d.7z", &k); err == nil && k >= idx {
			idx = k + 1
		}
	}
	p.index.Store(idx)

	if err := os.MkdirAll(p.currentDirPath(), 0o755); err != nil {
		return nil, fmt.Errorf("packager: creating package dir: %w", err)
	}
	return p, nil
}

// CurrentDir reports the package directory currently open for writes.
// Fetchers call this once per artifact save; it is safe to call
// concurrently with Run's own rotation.
func (p *Packager) CurrentDir() string {
	return p.currentDirPath()
}

func (p *Packager) currentDirPath() string {
	return filepath.Join(p.root, fmt.Sprintf("package-%d", p.index.Load()))
}

func (p *Packager) archivePath(idx int64) string {
	return filepath.Join(p.root, fmt.Sprintf("package-%d.7z", idx))
}

// Run polls the current package directory every pollInterval and rotates
// it once size or file-count thresholds are crossed. It blocks until ctx
// is done.
func (p *Packager) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Packager) tick() {
	dir := p.currentDirPath()
	n, size, err := dirStats(dir)
	if err != nil {
		p.log.Warn("packager: stat failed", "dir", dir, "err", err)
		return
	}
	if size <= rotateBytes && n <= rotateFiles {
		return
	}

	rotated := p.index.Load()
	p.index.Add(1)
	nextDir := p.currentDirPath()
	if err := os.MkdirAll(nextDir, 0o755); err != nil {
		p.log.Error("packager: creating next package dir", "dir", nextDir, "err", err)
		p.index.Add(-1)
		return
	}

	archivePath := p.archivePath(rotated)
	if err := p.archiver.Archive(dir, archivePath); err != nil {
		p.log.Error("packager: archiving", "dir", dir, "err", err)
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		p.log.Warn("packager: removing rotated dir", "dir", dir, "err", err)
	}
	metrics.PackageRotationsTotal.Inc()
	p.log.Info("packager: rotated",
		"archive", archivePath,
		"files", n,
		"size", humanize.Bytes(uint64(size)))
}

func dirStats(dir string) (files int, size int64, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files++
		size += info.Size()
	}
	return files, size, nil
}

// ZstdArchiver streams a directory's files as a tar+zstd stream. It is the
// concrete stand-in for the system's opaque archive-compression
// collaborator; the output is still named "package-{k}.7z" to preserve
// the on-disk contract even though the bytes are tar+zstd rather than 7z.
type ZstdArchiver struct{}

func (ZstdArchiver) Archive(dir, archivePath string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("packager: creating archive: %w", err)
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return fmt.Errorf("packager: opening zstd stream: %w", err)
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("packager: reading dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := addFileToTar(tw, dir, e.Name()); err != nil {
			return err
		}
	}
	return nil
}

func addFileToTar(tw *tar.Writer, dir, name string) error {
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("packager: stat %s: %w", name, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("packager: open %s: %w", name, err)
	}
	defer f.Close()

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("packager: tar header for %s: %w", name, err)
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("packager: tar header write for %s: %w", name, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("packager: writing %s: %w", name, err)
	}
	return nil
}
