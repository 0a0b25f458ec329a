package filter

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"fb2disqus/pkg/sitemap"
)

// Filter defines the interface for URL filtering
type Filter interface {
	ShouldKeep(ctx context.Context, url string) (bool, error)
}

// Build returns the filters for a run. The duplicate filter is always
// present; the others only when configured.
func Build(include, exclude []string, skipRoot bool) []Filter {
	filters := []Filter{NewDuplicateFilter()}

	if skipRoot {
		filters = append(filters, NewBaseURLFilter())
	}
	if len(include) > 0 {
		filters = append(filters, NewIncludeFilter(include...))
	}
	if len(exclude) > 0 {
		filters = append(filters, NewExcludeFilter(exclude...))
	}

	return filters
}

// FilterEntries applies all filters to sitemap entries, keeping their order.
func FilterEntries(ctx context.Context, entries []sitemap.Entry, filters ...Filter) ([]sitemap.Entry, error) {
	filtered := make([]sitemap.Entry, 0, len(entries))

	for _, entry := range entries {
		keep := true
		for _, f := range filters {
			shouldKeep, err := f.ShouldKeep(ctx, entry.Location)
			if err != nil {
				return nil, fmt.Errorf("filter error for URL %s: %w", entry.Location, err)
			}
			if !shouldKeep {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, entry)
		}
	}

	return filtered, nil
}

// BaseURLFilter filters out base/root URLs
type BaseURLFilter struct{}

// NewBaseURLFilter creates a new base URL filter
func NewBaseURLFilter() *BaseURLFilter {
	return &BaseURLFilter{}
}

// ShouldKeep returns false if URL is a base/root URL
func (f *BaseURLFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		// If we can't parse it, don't filter it out (let it fail later if needed)
		return true, nil
	}

	path := strings.Trim(parsed.Path, "/")
	return path != "", nil
}

// DuplicateFilter drops a URL that was already seen earlier in the same run.
// Not safe for concurrent use.
type DuplicateFilter struct {
	seen map[string]bool
}

// NewDuplicateFilter creates an empty duplicate filter
func NewDuplicateFilter() *DuplicateFilter {
	return &DuplicateFilter{seen: make(map[string]bool)}
}

// ShouldKeep returns false for every occurrence of a URL after the first
func (f *DuplicateFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	if f.seen[urlStr] {
		return false, nil
	}
	f.seen[urlStr] = true
	return true, nil
}

// IncludeFilter keeps URLs containing at least one of the given substrings
type IncludeFilter struct {
	patterns []string
}

// NewIncludeFilter creates an include filter. Empty patterns are ignored.
func NewIncludeFilter(patterns ...string) *IncludeFilter {
	return &IncludeFilter{patterns: nonEmpty(patterns)}
}

func (f *IncludeFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	if len(f.patterns) == 0 {
		return true, nil
	}
	return containsAny(urlStr, f.patterns), nil
}

// ExcludeFilter drops URLs containing any of the given substrings
type ExcludeFilter struct {
	patterns []string
}

// NewExcludeFilter creates an exclude filter. Empty patterns are ignored.
func NewExcludeFilter(patterns ...string) *ExcludeFilter {
	return &ExcludeFilter{patterns: nonEmpty(patterns)}
}

func (f *ExcludeFilter) ShouldKeep(ctx context.Context, urlStr string) (bool, error) {
	return !containsAny(urlStr, f.patterns), nil
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
