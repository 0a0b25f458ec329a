package comments

import (
	"fmt"
	"slices"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"fb2disqus/pkg/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// feedResponse maps each queried URL to its record. The Graph API may echo
// the URL in a normalized form, so keys are not guaranteed to match the query.
type feedResponse map[string]feedRecord

type feedRecord struct {
	Comments *commentList `json:"comments"`
}

type commentList struct {
	Data []rawComment `json:"data"`
}

type rawComment struct {
	ID          string  `json:"id"`
	From        *author `json:"from"`
	CreatedTime string  `json:"created_time"`
	Message     string  `json:"message"`
}

type author struct {
	Name string `json:"name"`
}

// graphError is the envelope the Graph API uses to report a failed request.
type graphError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// decodeFeed parses a response body. A top-level "error" object is reported
// as an error unless "error" is itself one of the queried URLs.
func decodeFeed(data []byte, queried []string) (feedResponse, error) {
	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid feed JSON: %w", err)
	}

	if msg, ok := raw["error"]; ok && !slices.Contains(queried, "error") {
		var gerr graphError
		if err := json.Unmarshal(msg, &gerr); err == nil && gerr.Message != "" {
			return nil, fmt.Errorf("graph error %d (%s): %s", gerr.Code, gerr.Type, gerr.Message)
		}
		return nil, fmt.Errorf("graph error: %s", string(msg))
	}

	feed := make(feedResponse, len(raw))
	for key, value := range raw {
		var record feedRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return nil, fmt.Errorf("invalid record for %q: %w", key, err)
		}
		feed[key] = record
	}

	return feed, nil
}

// comments converts a record into domain comments, in feed order.
func (r feedRecord) comments() []domain.Comment {
	if r.Comments == nil {
		return nil
	}

	out := make([]domain.Comment, 0, len(r.Comments.Data))
	for _, c := range r.Comments.Data {
		var name string
		if c.From != nil {
			name = c.From.Name
		}
		out = append(out, domain.Comment{
			ID:        c.ID,
			Author:    name,
			CreatedAt: NormalizeTimestamp(c.CreatedTime),
			Body:      c.Message,
		})
	}
	return out
}

// NormalizeTimestamp rewrites a feed timestamp into "YYYY-MM-DD HH:MM:SS":
// the first "T" becomes a space and a trailing "+0000" is dropped. Anything
// else is left as is.
func NormalizeTimestamp(ts string) string {
	ts = strings.Replace(ts, "T", " ", 1)
	return strings.TrimSuffix(ts, "+0000")
}

// validate checks the id invariant of one URL's comment set.
func validate(pageURL string, comments []domain.Comment) error {
	seen := make(map[string]bool, len(comments))
	for i, c := range comments {
		if c.ID == "" {
			return fmt.Errorf("%w: comment %d for %s has no id", ErrCommentFetch, i, pageURL)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: %w: %q for %s", ErrCommentFetch, ErrDuplicateCommentID, c.ID, pageURL)
		}
		seen[c.ID] = true
	}
	return nil
}
