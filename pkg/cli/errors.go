package cli

import (
	"errors"
	"fmt"

	"fb2disqus/pkg/comments"
	"fb2disqus/pkg/content"
	"fb2disqus/pkg/sitemap"
	"fb2disqus/pkg/wxr"
)

// Process exit codes.
const (
	ExitOK                 = 0
	ExitFailure            = 1
	ExitUsage              = 2
	ExitSourceUnreachable  = 3
	ExitMalformedSitemap   = 4
	ExitCommentFetch       = 5
	ExitMetadataExtraction = 6
	ExitSerialization      = 7
)

// UsageError reports a bad invocation or configuration.
type UsageError struct {
	msg string
}

func (e *UsageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &UsageError{msg: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	var usageErr *UsageError

	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &usageErr):
		return ExitUsage
	case errors.Is(err, sitemap.ErrSourceUnreachable):
		return ExitSourceUnreachable
	case errors.Is(err, sitemap.ErrMalformedSitemap):
		return ExitMalformedSitemap
	case errors.Is(err, comments.ErrCommentFetch):
		return ExitCommentFetch
	case errors.Is(err, content.ErrMetadataExtraction):
		return ExitMetadataExtraction
	case errors.Is(err, wxr.ErrSerialization):
		return ExitSerialization
	default:
		return ExitFailure
	}
}
