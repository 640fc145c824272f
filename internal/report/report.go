// Package report generates an end-of-run summary of a crawl: counts by
// HTTP status and content kind, byte totals, and elapsed time.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/DimitriTimoz/open-finder/internal/store"
)

// Summary aggregates one crawl's fetch records.
type Summary struct {
	TotalFetches int
	StatusCodes  map[int]int
	Kinds        map[string]int
	TotalBytes   int64
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}

// GenerateSummary processes a slice of persisted fetch records into a
// Summary. TotalBytes counts ContentPreview length, a proxy for extracted
// text size since the store does not retain raw response bodies.
func GenerateSummary(records []*store.FetchRecord) Summary {
	s := Summary{
		StatusCodes: make(map[int]int),
		Kinds:       make(map[string]int),
	}

	if len(records) == 0 {
		return s
	}

	s.StartTime = records[0].FetchedAt
	s.EndTime = records[0].FetchedAt

	for _, r := range records {
		s.TotalFetches++
		if r.Status > 0 {
			s.StatusCodes[r.Status]++
		}
		if r.Kind != "" {
			s.Kinds[r.Kind]++
		}
		s.TotalBytes += int64(len(r.ContentPreview))

		if r.FetchedAt.Before(s.StartTime) {
			s.StartTime = r.FetchedAt
		}
		if r.FetchedAt.After(s.EndTime) {
			s.EndTime = r.FetchedAt
		}
	}

	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to w as indented JSON.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

const textTmpl = `open-finder crawl summary
--------------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Total Fetched: {{.TotalFetches}} pages
Total Bytes:   {{.TotalBytes}} bytes

Status Codes:
{{- range $code, $count := .StatusCodes}}
  {{$code}}: {{$count}}
{{- else}}
  None
{{- end}}

Content Kinds:
{{- range $kind, $count := .Kinds}}
  {{$kind}}: {{$count}}
{{- else}}
  None
{{- end}}
`

// WriteText writes a human-readable text summary to w.
func WriteText(w io.Writer, summary Summary) error {
	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}
