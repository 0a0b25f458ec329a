// Package comments retrieves the comment threads attached to page URLs from
// the Facebook Graph comments endpoint.
package comments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"fb2disqus/pkg/domain"
	"fb2disqus/pkg/httpclient"
	"fb2disqus/pkg/logging"
)

var (
	// ErrCommentFetch is returned when the comments of a URL could not be retrieved.
	ErrCommentFetch = errors.New("comment fetch failed")

	// ErrDuplicateCommentID is returned when one URL's comments repeat an id.
	ErrDuplicateCommentID = errors.New("duplicate comment id")
)

// Result is the outcome of fetching one URL as part of a batch.
type Result struct {
	Comments []domain.Comment
	Err      error
}

// Options configures a Fetcher.
type Options struct {
	Endpoint    string // base URL, ids are passed as a query parameter
	AccessToken string // optional Graph API token
}

// Fetcher retrieves comments for page URLs.
type Fetcher struct {
	client      *httpclient.HTTPClient
	endpoint    string
	accessToken string
	logger      *slog.Logger
}

// NewFetcher creates a fetcher sharing client with the rest of the run.
func NewFetcher(client *httpclient.HTTPClient, opts Options, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Fetcher{
		client:      client,
		endpoint:    opts.Endpoint,
		accessToken: opts.AccessToken,
		logger:      logger,
	}
}

// Fetch returns the comments of a single URL in feed order. Every key of the
// response is attributed to pageURL: the exact key first, then the others in
// sorted order.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) ([]domain.Comment, error) {
	feed, err := f.request(ctx, []string{pageURL})
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(feed))
	for key := range feed {
		if key != pageURL {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	if _, ok := feed[pageURL]; ok {
		keys = append([]string{pageURL}, keys...)
	} else if len(keys) > 0 {
		f.logger.Debug("Feed key differs from requested URL", "url", pageURL, "keys", keys)
	}

	var comments []domain.Comment
	for _, key := range keys {
		comments = append(comments, feed[key].comments()...)
	}

	if err := validate(pageURL, comments); err != nil {
		return nil, err
	}

	return comments, nil
}

// FetchBatch requests the comments of several URLs at once. Response keys are
// matched to URLs exactly and a URL absent from the response has no comments.
// If the batched request fails, each URL is fetched on its own so a single bad
// URL only fails itself. The returned map has one entry per input URL.
func (f *Fetcher) FetchBatch(ctx context.Context, pageURLs []string) map[string]Result {
	results := make(map[string]Result, len(pageURLs))

	// A comma inside a URL would be read as an id separator.
	var batch []string
	for _, u := range pageURLs {
		if strings.Contains(u, ",") || len(pageURLs) == 1 {
			results[u] = f.single(ctx, u)
			continue
		}
		batch = append(batch, u)
	}

	if len(batch) == 0 {
		return results
	}

	feed, err := f.request(ctx, batch)
	if err != nil {
		if ctx.Err() != nil {
			for _, u := range batch {
				results[u] = Result{Err: err}
			}
			return results
		}

		f.logger.Warn("Batch request failed, fetching URLs one by one", "urls", len(batch), "error", err)
		for _, u := range batch {
			results[u] = f.single(ctx, u)
		}
		return results
	}

	for _, u := range batch {
		comments := feed[u].comments()
		if err := validate(u, comments); err != nil {
			results[u] = Result{Err: err}
			continue
		}
		results[u] = Result{Comments: comments}
	}

	for key := range feed {
		if _, ok := results[key]; !ok {
			f.logger.Warn("Ignoring feed key that matches no requested URL", "key", key)
		}
	}

	return results
}

func (f *Fetcher) single(ctx context.Context, pageURL string) Result {
	comments, err := f.Fetch(ctx, pageURL)
	return Result{Comments: comments, Err: err}
}

// request performs one feed call for ids and decodes the response.
func (f *Fetcher) request(ctx context.Context, ids []string) (feedResponse, error) {
	endpoint, err := f.requestURL(ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCommentFetch, err)
	}

	f.logger.Debug("Requesting comments", "ids", len(ids))

	data, _, err := f.client.FetchBytes(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCommentFetch, strings.Join(ids, ","), f.scrub(err))
	}

	feed, err := decodeFeed(data, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCommentFetch, strings.Join(ids, ","), err)
	}

	return feed, nil
}

// scrub drops the request URL from transport errors so the access token
// never reaches the logs.
func (f *Fetcher) scrub(err error) error {
	if f.accessToken == "" {
		return err
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Errorf("%w: %d", httpclient.ErrUnexpectedStatus, statusErr.StatusCode)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request failed: %w", urlErr.Op, urlErr.Err)
	}

	return err
}

func (f *Fetcher) requestURL(ids []string) (string, error) {
	u, err := url.Parse(f.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", f.endpoint, err)
	}

	q := u.Query()
	q.Set("ids", strings.Join(ids, ","))
	if f.accessToken != "" {
		q.Set("access_token", f.accessToken)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
