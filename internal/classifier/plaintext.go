package classifier

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText strips HTML markup from scraped review bodies and collapses
// runs of whitespace. Text without a '<' is returned untouched. If the
// markup cannot be parsed the input is returned as is.
func PlainText(body string) string {
	if !strings.Contains(body, "<") {
		return body
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body
	}
	doc.Find("script, style").Remove()
	doc.Find("br, p, div, li").Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}
