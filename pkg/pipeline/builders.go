package pipeline

import (
	"io"
	"log/slog"

	"fb2disqus/pkg/comments"
	"fb2disqus/pkg/config"
	"fb2disqus/pkg/content"
	"fb2disqus/pkg/filter"
	"fb2disqus/pkg/httpclient"
	"fb2disqus/pkg/sitemap"
	"fb2disqus/pkg/wxr"
)

// FromConfig builds the pipeline for a validated configuration.
// Every stage shares one HTTP client. Status lines go to stdout, per-URL
// progress only when the configuration is verbose.
// Pipeline: Source → [Sitemap Loader] → [Filters] → [Comment Fetcher] → [Page Enricher] → [WXR file]
func FromConfig(cfg *config.Config, logger *slog.Logger, stdout io.Writer) *Pipeline {
	client := httpclient.NewClient(httpclient.ClientType(cfg.HTTP.ClientType), httpclient.Options{
		Timeout:    cfg.HTTP.Timeout,
		MaxRetries: cfg.HTTP.Retries,
	})

	loader := sitemap.NewLoader(client, logger)

	fetcher := comments.NewFetcher(client, comments.Options{
		Endpoint:    cfg.Comments.Endpoint,
		AccessToken: cfg.Comments.AccessToken,
	}, logger)

	enricher := content.NewEnricher(client, content.Options{
		ContentSelector: cfg.Page.ContentSelector,
		DateSelector:    cfg.Page.DateSelector,
	}, logger)

	opts := Options{
		Workers:   cfg.Workers,
		BatchSize: cfg.Comments.BatchSize,
		FailFast:  cfg.FailFast,
		Filters:   filter.Build(cfg.Filter.Include, cfg.Filter.Exclude, cfg.Filter.SkipRoot),
		Output:    cfg.Output,
		Export: wxr.Options{
			CommentStatus: cfg.Export.CommentStatus,
			Approved:      cfg.Export.Approved,
		},
		Status: stdout,
	}
	if cfg.Verbose {
		opts.Progress = stdout
	}

	return NewPipeline(loader, fetcher, enricher, opts, logger)
}
