// Package content fetches a page and extracts the metadata written next to
// its comments: title, optional body and publication date.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"fb2disqus/pkg/domain"
	"fb2disqus/pkg/httpclient"
	"fb2disqus/pkg/logging"
)

// ErrMetadataExtraction is returned when a page cannot be fetched or lacks a title.
var ErrMetadataExtraction = errors.New("metadata extraction failed")

// Options selects what is extracted besides the title.
type Options struct {
	// ContentSelector is a CSS selector for the body, or ReadabilityMode.
	// Empty means no body.
	ContentSelector string

	// DateSelector is a CSS selector for the publication date. Empty, or a
	// selector that matches nothing, falls back to the sitemap lastmod.
	DateSelector string
}

// Enricher fetches pages and extracts their metadata.
type Enricher struct {
	client *httpclient.HTTPClient
	opts   Options
	logger *slog.Logger
}

// NewEnricher creates an enricher using the shared HTTP client.
func NewEnricher(client *httpclient.HTTPClient, opts Options, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Enricher{client: client, opts: opts, logger: logger}
}

// Enrich fetches pageURL and returns its metadata. lastMod is the sitemap
// value used when no date selector applies.
func (e *Enricher) Enrich(ctx context.Context, pageURL, lastMod string) (domain.PageMetadata, error) {
	data, contentType, err := e.client.FetchBytes(ctx, pageURL)
	if err != nil {
		return domain.PageMetadata{}, fmt.Errorf("%w: %s: %w", ErrMetadataExtraction, pageURL, err)
	}

	htmlContent, err := decode(data, contentType)
	if err != nil {
		return domain.PageMetadata{}, fmt.Errorf("%w: %s: %w", ErrMetadataExtraction, pageURL, err)
	}

	return e.extract(htmlContent, pageURL, lastMod)
}

func (e *Enricher) extract(htmlContent, pageURL, lastMod string) (domain.PageMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return domain.PageMetadata{}, fmt.Errorf("%w: %s: failed to parse HTML: %w", ErrMetadataExtraction, pageURL, err)
	}

	title, err := ExtractTitle(doc)
	if err != nil {
		return domain.PageMetadata{}, fmt.Errorf("%s: %w", pageURL, err)
	}

	var body string
	if e.opts.ContentSelector == ReadabilityMode {
		body, err = ExtractArticle(htmlContent, pageURL)
	} else {
		body, err = ExtractBody(doc, e.opts.ContentSelector)
	}
	if err != nil {
		return domain.PageMetadata{}, fmt.Errorf("%s: %w", pageURL, err)
	}

	date := lastMod
	if e.opts.DateSelector != "" {
		if found, ok := ExtractDate(doc, e.opts.DateSelector); ok {
			date = found
		} else {
			e.logger.Debug("Date selector matched nothing, using lastmod", "url", pageURL, "selector", e.opts.DateSelector)
		}
	}

	return domain.PageMetadata{
		Title: title,
		Body:  body,
		Date:  domain.NormalizeDate(date),
	}, nil
}

// decode converts the page to UTF-8 using the Content-Type header and any
// <meta charset> in the document.
func decode(data []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		return "", fmt.Errorf("failed to detect charset: %w", err)
	}

	utf8, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to decode page: %w", err)
	}

	return string(utf8), nil
}
