// Package csvbackend implements the queryable store's CSV backend: one
// row appended per fetched page.
package csvbackend

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/DimitriTimoz/open-finder/internal/store"
)

var _ store.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

var headers = []string{"url", "status", "kind", "hash", "content_preview", "fetched_at"}

// New creates a new CSV-backed store.Backend.
func New(filePath string) (store.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csvbackend: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csvbackend: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, rec *store.FetchRecord) error {
	record := []string{
		rec.URL,
		strconv.Itoa(rec.Status),
		rec.Kind,
		rec.Hash,
		rec.ContentPreview,
		rec.FetchedAt.Format(time.RFC3339Nano),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("csvbackend: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("csvbackend: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvbackend: %w", err)
	}
	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter store.Filter) ([]*store.FetchRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csvbackend: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return []*store.FetchRecord{}, nil
		}
		return nil, fmt.Errorf("csvbackend: %w", err)
	}

	var all []*store.FetchRecord
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvbackend: %w", err)
		}
		if len(record) != len(headers) {
			continue
		}

		status, _ := strconv.Atoi(record[1])
		fetchedAt, _ := time.Parse(time.RFC3339Nano, record[5])

		rec := &store.FetchRecord{
			URL:            record[0],
			Status:         status,
			Kind:           record[2],
			Hash:           record[3],
			ContentPreview: record[4],
			FetchedAt:      fetchedAt,
		}

		if filter.URL != "" && rec.URL != filter.URL {
			continue
		}
		if filter.Kind != "" && rec.Kind != filter.Kind {
			continue
		}
		if filter.Since != nil && rec.FetchedAt.Before(*filter.Since) {
			continue
		}

		all = append(all, rec)
	}

	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(all) {
			return []*store.FetchRecord{}, nil
		}
		all = all[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}

	return all, nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
