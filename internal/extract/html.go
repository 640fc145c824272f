package extract

import (
	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// htmlExtractor renders HTML bodies down to markdown-flavored plain text.
// DOM structure (headings, tables, links) is preserved; styling is not.
type htmlExtractor struct{}

func (htmlExtractor) extract(body []byte) (string, error) {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	markdown, err := conv.ConvertString(string(body))
	if err != nil {
		return "", err
	}
	return markdown, nil
}
