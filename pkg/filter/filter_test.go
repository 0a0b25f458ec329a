package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fb2disqus/pkg/sitemap"
)

func entries(locations ...string) []sitemap.Entry {
	out := make([]sitemap.Entry, len(locations))
	for i, loc := range locations {
		out[i] = sitemap.Entry{Location: loc}
	}
	return out
}

func locations(entries []sitemap.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Location
	}
	return out
}

func TestBaseURLFilter(t *testing.T) {
	f := NewBaseURLFilter()
	ctx := context.Background()

	testCases := []struct {
		url  string
		want bool
	}{
		{"https://example.com", false},
		{"https://example.com/", false},
		{"https://example.com//", false},
		{"https://example.com/blog/post/", true},
		{"https://example.com/about", true},
		{"://not a url", true},
	}

	for _, tc := range testCases {
		got, err := f.ShouldKeep(ctx, tc.url)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.url)
	}
}

func TestIncludeExcludeFilters(t *testing.T) {
	ctx := context.Background()
	input := entries(
		"https://example.com/blog/one/",
		"https://example.com/blog/drafts/two/",
		"https://example.com/about/",
		"https://example.com/news/three/",
	)

	got, err := FilterEntries(ctx, input,
		NewIncludeFilter("/blog/", "/news/"),
		NewExcludeFilter("/drafts/", ""),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://example.com/blog/one/",
		"https://example.com/news/three/",
	}, locations(got))
}

func TestIncludeFilter_NoPatternsKeepsEverything(t *testing.T) {
	keep, err := NewIncludeFilter("", "  ").ShouldKeep(context.Background(), "https://example.com/x/")
	require.NoError(t, err)
	assert.True(t, keep)
}

func TestDuplicateFilter(t *testing.T) {
	input := entries(
		"https://example.com/a/",
		"https://example.com/b/",
		"https://example.com/a/",
	)
	input[0].LastMod = "2024-01-01"

	got, err := FilterEntries(context.Background(), input, NewDuplicateFilter())
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-01", got[0].LastMod, "first occurrence is kept")
	assert.Equal(t, "https://example.com/b/", got[1].Location)
}

func TestBuild(t *testing.T) {
	assert.Len(t, Build(nil, nil, false), 1)
	assert.Len(t, Build([]string{"/blog/"}, []string{"/tag/"}, true), 4)

	got, err := FilterEntries(context.Background(),
		entries("https://example.com/", "https://example.com/blog/a/", "https://example.com/blog/a/"),
		Build([]string{"/blog/"}, nil, true)...,
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/blog/a/"}, locations(got))
}

type failingFilter struct{}

func (failingFilter) ShouldKeep(ctx context.Context, url string) (bool, error) {
	return false, errors.New("boom")
}

func TestFilterEntries_PropagatesErrors(t *testing.T) {
	_, err := FilterEntries(context.Background(), entries("https://example.com/a/"), failingFilter{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "https://example.com/a/")
}
