// Package extract provides the plain-text extraction the crawler ships to
// the search sink and saves to disk. The source system treats HTML→text and
// PDF→text conversion as opaque external collaborators; this package is the
// concrete stand-in behind that boundary.
package extract

import "github.com/DimitriTimoz/open-finder/internal/classify"

// Extractor converts a classified body into plain text. Text extraction is
// only defined for HTML and PDF — every other Kind returns ("", nil).
type Extractor interface {
	ExtractText(kind classify.Kind, body []byte) (string, error)
}

// Default returns the Extractor used by the fetcher unless overridden:
// html-to-markdown for HTML, a fault-barriered PDF reader for PDF.
func Default() Extractor {
	return chain{html: htmlExtractor{}, pdf: pdfExtractor{}}
}

type chain struct {
	html htmlExtractor
	pdf  pdfExtractor
}

func (c chain) ExtractText(kind classify.Kind, body []byte) (string, error) {
	switch kind {
	case classify.HTML:
		return c.html.extract(body)
	case classify.PDF:
		return c.pdf.extract(body)
	default:
		return "", nil
	}
}
