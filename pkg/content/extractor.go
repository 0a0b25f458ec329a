package content

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
)

// ReadabilityMode is the content selector value that extracts the main
// article with readability instead of a CSS selector.
const ReadabilityMode = "readability"

// ExtractTitle returns the trimmed text of the first <title> element.
// The title may be empty; a page without any <title> element is an error.
func ExtractTitle(doc *goquery.Document) (string, error) {
	title := doc.Find("title").First()
	if title.Length() == 0 {
		return "", fmt.Errorf("%w: no <title> element", ErrMetadataExtraction)
	}

	return strings.TrimSpace(title.Text()), nil
}

// ExtractBody returns the outer HTML of every element matching selector,
// concatenated in document order. An empty selector yields an empty body.
func ExtractBody(doc *goquery.Document, selector string) (string, error) {
	if strings.TrimSpace(selector) == "" {
		return "", nil
	}

	var (
		b       strings.Builder
		htmlErr error
	)
	doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		html, err := goquery.OuterHtml(s)
		if err != nil {
			htmlErr = err
			return false
		}
		b.WriteString(html)
		return true
	})
	if htmlErr != nil {
		return "", fmt.Errorf("%w: render %q: %w", ErrMetadataExtraction, selector, htmlErr)
	}

	return b.String(), nil
}

// ExtractArticle returns the main article HTML as found by readability.
func ExtractArticle(htmlContent string, pageURL string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid page URL: %w", ErrMetadataExtraction, err)
	}

	article, err := readability.FromReader(strings.NewReader(htmlContent), base)
	if err != nil {
		return "", fmt.Errorf("%w: failed to extract article: %w", ErrMetadataExtraction, err)
	}

	return strings.TrimSpace(article.Content), nil
}

// ExtractDate returns the date found by selector: the datetime or content
// attribute of the first match, otherwise its text. The boolean is false when
// nothing usable was found.
func ExtractDate(doc *goquery.Document, selector string) (string, bool) {
	if strings.TrimSpace(selector) == "" {
		return "", false
	}

	match := doc.Find(selector).First()
	if match.Length() == 0 {
		return "", false
	}

	for _, attr := range []string{"datetime", "content"} {
		if value, ok := match.Attr(attr); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), true
		}
	}

	text := strings.TrimSpace(match.Text())
	return text, text != ""
}
