package extract

import (
	"bytes"
	"strings"

	"github.com/dslipak/pdf"
)

// pdfExtractor renders PDF bodies to plain text, page by page. The
// underlying reader panics on some malformed documents instead of
// returning an error, so extract recovers and degrades to an empty
// string rather than aborting the caller's fetch.
type pdfExtractor struct{}

func (pdfExtractor) extract(body []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", nil
		}
	}()

	reader, rerr := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if rerr != nil {
		return "", nil
	}

	var sb strings.Builder
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, perr := page.GetPlainText(nil)
		if perr != nil {
			continue
		}
		sb.WriteString(content)
	}
	return sb.String(), nil
}
