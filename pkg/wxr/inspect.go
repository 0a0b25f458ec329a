package wxr

import (
	"fmt"
	"io"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// ItemSummary describes one item of an existing export.
type ItemSummary struct {
	Title            string
	Link             string
	ThreadIdentifier string
	PostDate         string
	Comments         int
}

// Summary describes an existing export.
type Summary struct {
	Items    []ItemSummary
	Comments int
}

// Inspect parses an export and counts its threads and comments.
func Inspect(r io.Reader) (Summary, error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to parse export: %w", err)
	}

	var summary Summary
	for _, it := range feed.Items {
		s := ItemSummary{
			Title:            it.Title,
			Link:             it.Link,
			ThreadIdentifier: extensionValue(it.Extensions, "dsq", "thread_identifier"),
			PostDate:         extensionValue(it.Extensions, "wp", "post_date_gmt"),
			Comments:         len(it.Extensions["wp"]["comment"]),
		}
		summary.Items = append(summary.Items, s)
		summary.Comments += s.Comments
	}

	return summary, nil
}

func extensionValue(exts ext.Extensions, prefix, name string) string {
	values := exts[prefix][name]
	if len(values) == 0 {
		return ""
	}
	return values[0].Value
}
