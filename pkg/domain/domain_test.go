package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	testCases := []struct {
		url  string
		want string
	}{
		{"https://example.com/blog/my-post/", "my-post"},
		{"https://example.com/blog/my-post", "my-post"},
		{"https://example.com/blog/my-post.html", "my-post"},
		{"https://example.com/2014/08/01/hello-world//", "hello-world"},
		{"https://example.com/archive.2014.html", "archive"},
		{"https://example.com/blog/post/?utm_source=fb#comments", "post"},
		{"https://example.com/", ""},
		{"https://example.com", ""},
		{"relative/path/page/", "page"},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			assert.Equal(t, tc.want, Slug(tc.url))
		})
	}
}

func TestSlug_IsStable(t *testing.T) {
	const url = "https://example.com/blog/some-long.post-name/"

	first := Slug(url)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Slug(url))
	}
}

func TestAssemble(t *testing.T) {
	comments := []Comment{
		{ID: "1", Author: "Ann", CreatedAt: "2014-08-01 12:30:00", Body: "<b>first</b>"},
		{ID: "2", Author: "", CreatedAt: "2014-08-01 12:31:00", Body: "second"},
	}
	meta := PageMetadata{Title: "Hello", Body: "<p>body</p>", Date: "2014-07-31 00:00:00"}

	doc := Assemble("https://example.com/blog/hello/", comments, meta)

	assert.Equal(t, "https://example.com/blog/hello/", doc.URL)
	assert.Equal(t, "Hello", doc.Title)
	assert.Equal(t, "hello", doc.Slug)
	assert.Equal(t, "2014-07-31 00:00:00", doc.PublishedAt)
	assert.Equal(t, "<p>body</p>", doc.Body)
	require.Equal(t, comments, doc.Comments)

	comments[0].Body = "changed"
	assert.Equal(t, "<b>first</b>", doc.Comments[0].Body, "document owns a copy of its comments")
}

func TestNormalizeDate(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"date only", "2024-01-15", "2024-01-15 00:00:00"},
		{"rfc3339 utc", "2024-01-15T10:20:30Z", "2024-01-15 10:20:30"},
		{"rfc3339 offset", "2024-01-15T10:20:30+02:00", "2024-01-15 08:20:30"},
		{"graph offset", "2014-08-01T12:30:00+0000", "2014-08-01 12:30:00"},
		{"already normalized", "2014-08-01 12:30:00", "2014-08-01 12:30:00"},
		{"human", "August 1, 2014", "2014-08-01 00:00:00"},
		{"unparsable", "  sometime last week ", "sometime last week"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeDate(tc.input))
		})
	}
}
