package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractHTML parses the given HTML string and applies specs against the
// document root. It is the common entry point for the commands; callers that
// already hold a parsed document use Extract directly.
func ExtractHTML(html string, specs []FieldSpec, opts Options) (*Report, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return Extract(doc.Selection, specs, opts)
}
