// Package classify maps a URL's filename hint and a byte body to a content
// Kind, the way the crawler's content classifier does it: by trailing file
// extension first, falling back to sniffing the body for an HTML doctype.
package classify

import "strings"

// Kind enumerates the content classifications the crawler distinguishes.
type Kind int

const (
	Other Kind = iota
	HTML
	CSS
	JS
	PDF
	Image
	JSON
	XML
)

func (k Kind) String() string {
	switch k {
	case HTML:
		return "html"
	case CSS:
		return "css"
	case JS:
		return "js"
	case PDF:
		return "pdf"
	case Image:
		return "image"
	case JSON:
		return "json"
	case XML:
		return "xml"
	default:
		return "other"
	}
}

var imageExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "svg": true,
	"ico": true, "webp": true, "bmp": true, "tiff": true, "tif": true,
	"psd": true, "raw": true,
}

// Classify determines the Kind of a document given its URL-derived file
// name (a "?query" suffix, if present, is stripped first) and its body.
func Classify(fileName string, body []byte) Kind {
	fileName = strings.ToLower(fileName)
	if idx := strings.IndexByte(fileName, '?'); idx >= 0 {
		fileName = fileName[:idx]
	}

	ext := fileName
	if idx := strings.LastIndexByte(fileName, '.'); idx >= 0 {
		ext = fileName[idx+1:]
	}

	switch {
	case ext == "html" || ext == "htm":
		return HTML
	case ext == "pdf":
		return PDF
	case ext == "css":
		return CSS
	case ext == "js":
		return JS
	case ext == "json":
		return JSON
	case ext == "xml":
		return XML
	case imageExtensions[ext]:
		return Image
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(strings.ToLower(trimmed), "<!doctype html>") {
		return HTML
	}
	return Other
}
