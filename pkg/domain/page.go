package domain

import (
	"net/url"
	"strings"
)

// PageMetadata is what the page enricher extracts from a fetched page.
type PageMetadata struct {
	Title string
	Body  string
	Date  string
}

// PageDocument is the unit of export: one page with at least one comment.
type PageDocument struct {
	URL         string
	Title       string
	Slug        string
	PublishedAt string
	Body        string
	Comments    []Comment
}

// Assemble merges a page URL, its comments and its metadata into a document.
// The comment slice is copied so the document owns its comments.
func Assemble(pageURL string, comments []Comment, meta PageMetadata) PageDocument {
	return PageDocument{
		URL:         pageURL,
		Title:       meta.Title,
		Slug:        Slug(pageURL),
		PublishedAt: meta.Date,
		Body:        meta.Body,
		Comments:    append([]Comment(nil), comments...),
	}
}

// Slug derives the thread identifier from the final path segment of pageURL:
// trailing slashes are stripped and the segment is cut at its first dot.
// The result depends on pageURL alone, so every run yields the same slug.
//
//	https://example.com/blog/my-post/      -> my-post
//	https://example.com/blog/my-post.html  -> my-post
//	https://example.com/                   -> ""
func Slug(pageURL string) string {
	path := pageURL
	if u, err := url.Parse(pageURL); err == nil {
		path = u.Path
	}

	path = strings.TrimRight(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.Index(path, "."); i >= 0 {
		path = path[:i]
	}

	return path
}
