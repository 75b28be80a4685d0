package content

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	htmlMarker   = regexp.MustCompile(`(?i)<(html|body|div|p|script|!doctype)[\s>]`)
	spaceRun     = regexp.MustCompile(`[ \t\f\v]+`)
	blankLineRun = regexp.MustCompile(`\n\s*\n+`)
)

// LooksLikeHTML reports whether body is markup rather than the reader's plain text.
func LooksLikeHTML(body string) bool {
	return htmlMarker.MatchString(body)
}

// Cleaner turns an HTML page into plain text, dropping page chrome.
type Cleaner struct {
	removeTags []string
}

func NewCleaner() *Cleaner {
	return &Cleaner{
		removeTags: []string{
			"script", "style", "noscript", "iframe", "object", "embed",
			"form", "button", "select", "textarea",
			"nav", "header", "footer", "aside", "menu",
			"svg", "meta", "link", "title",
		},
	}
}

func (c *Cleaner) Text(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	for _, tag := range c.removeTags {
		doc.Find(tag).Remove()
	}

	// block elements end a line
	doc.Find("p, div, li, br, h1, h2, h3, h4, h5, h6, tr, section, article").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	return normalizeWhitespace(text), nil
}

func normalizeWhitespace(text string) string {
	text = spaceRun.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")

	return strings.TrimSpace(blankLineRun.ReplaceAllString(text, "\n\n"))
}
