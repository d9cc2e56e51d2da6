package view

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// InjectScript inserts script as an inline <script> element at the end of
// the document head, or at the start of the body when the source has no
// head element. The result is a complete document.
func InjectScript(html, script string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	tag := "<script>" + script + "</script>"
	if hasHead(html) {
		doc.Find("head").First().AppendHtml(tag)
	} else {
		doc.Find("body").First().PrependHtml(tag)
	}

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return out, nil
}

func hasHead(html string) bool {
	lower := strings.ToLower(html)
	return strings.Contains(lower, "<head>") || strings.Contains(lower, "<head ")
}
