package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"fb2disqus/pkg/comments"
	"fb2disqus/pkg/domain"
	"fb2disqus/pkg/filter"
	"fb2disqus/pkg/logging"
	"fb2disqus/pkg/sitemap"
	"fb2disqus/pkg/worker"
	"fb2disqus/pkg/wxr"
)

// EntryLoader reads the sitemap a run starts from
type EntryLoader interface {
	Load(ctx context.Context, source string) ([]sitemap.Entry, error)
}

// CommentFetcher retrieves the comments of a group of URLs.
// The returned map must hold one result per requested URL.
type CommentFetcher interface {
	FetchBatch(ctx context.Context, pageURLs []string) map[string]comments.Result
}

// PageEnricher fetches the metadata of one page
type PageEnricher interface {
	Enrich(ctx context.Context, pageURL, lastMod string) (domain.PageMetadata, error)
}

// Options controls how a run is executed
type Options struct {
	Workers   int  // concurrent URL workers, 1 is sequential
	BatchSize int  // URLs per comments request
	FailFast  bool // abort on the first per-URL failure instead of skipping the URL

	Filters []filter.Filter

	Output string      // export path, written only when at least one page has comments
	Export wxr.Options // fixed values written into the export

	// Status receives the lines printed on every run. Nil disables them.
	Status io.Writer
	// Progress receives human readable per-URL lines. Nil disables them.
	Progress io.Writer
}

// Failure records a URL that was skipped.
type Failure struct {
	URL   string
	Stage string // "comments" or "metadata"
	Err   error
}

// Summary describes a finished run.
type Summary struct {
	Source    string
	Entries   int // sitemap entries after filtering
	Filtered  int // sitemap entries dropped by filters
	Comments  int // comments exported
	Documents []domain.PageDocument
	Failures  []Failure
	Written   bool // whether Output was written
}

// Pipeline runs the stages of an export in order:
// sitemap → filters → comments → page metadata → assembly → export file.
type Pipeline struct {
	loader   EntryLoader
	fetcher  CommentFetcher
	enricher PageEnricher
	opts     Options
	logger   *slog.Logger
}

// NewPipeline creates a new pipeline from its stages
func NewPipeline(loader EntryLoader, fetcher CommentFetcher, enricher PageEnricher, opts Options, logger *slog.Logger) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	if opts.Status == nil {
		opts.Status = io.Discard
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	if logger == nil {
		logger = logging.Discard()
	}

	return &Pipeline{
		loader:   loader,
		fetcher:  fetcher,
		enricher: enricher,
		opts:     opts,
		logger:   logger,
	}
}

// commentOutcome is the comment stage result for one entry.
type commentOutcome struct {
	entry    sitemap.Entry
	comments []domain.Comment
	err      error
}

// pageOutcome is the metadata stage result for one entry with comments.
type pageOutcome struct {
	doc domain.PageDocument
	err error
}

// Run executes the pipeline for source. Sitemap and export failures are
// always returned as errors. Per-URL failures are returned only with
// FailFast; otherwise the URL is logged, recorded in the summary and left out.
// Nothing is written when no page has comments or when Run fails.
func (p *Pipeline) Run(ctx context.Context, source string) (*Summary, error) {
	summary := &Summary{Source: source}

	entries, err := p.loader.Load(ctx, source)
	if err != nil {
		return summary, err
	}
	fmt.Fprintf(p.opts.Status, "Successfully parsed %s\n", source)
	p.logger.Info("Loaded sitemap", "source", source, "entries", len(entries))

	kept, err := filter.FilterEntries(ctx, entries, p.opts.Filters...)
	if err != nil {
		return summary, err
	}
	summary.Entries = len(kept)
	summary.Filtered = len(entries) - len(kept)
	if summary.Filtered > 0 {
		p.logger.Info("Filtered sitemap entries", "kept", len(kept), "dropped", summary.Filtered)
	}

	withComments, err := p.fetchComments(ctx, kept, summary)
	if err != nil {
		return summary, err
	}

	docs, err := p.enrich(ctx, withComments, summary)
	if err != nil {
		return summary, err
	}

	summary.Documents = docs
	for _, d := range docs {
		summary.Comments += len(d.Comments)
	}
	fmt.Fprintf(p.opts.Progress, "%d URLS retrieved\n", len(docs))

	if len(docs) == 0 {
		p.logger.Info("No pages with comments, nothing to write", "source", source)
		return summary, nil
	}

	if p.opts.Output == "" {
		return summary, nil
	}

	if err := wxr.WriteFile(p.opts.Output, docs, p.opts.Export); err != nil {
		return summary, err
	}
	summary.Written = true
	p.logger.Info("Wrote export", "output", p.opts.Output, "pages", len(docs), "comments", summary.Comments)

	return summary, nil
}

// fetchComments returns, in sitemap order, the entries that have at least
// one comment.
func (p *Pipeline) fetchComments(ctx context.Context, entries []sitemap.Entry, summary *Summary) ([]commentOutcome, error) {
	batches := worker.Chunk(entries, p.opts.BatchSize)

	results, err := worker.Map(ctx, batches, p.opts.Workers, func(ctx context.Context, _ int, batch []sitemap.Entry) ([]commentOutcome, error) {
		urls := make([]string, len(batch))
		for i, e := range batch {
			urls[i] = e.Location
		}

		fetched := p.fetcher.FetchBatch(ctx, urls)

		outcomes := make([]commentOutcome, len(batch))
		for i, e := range batch {
			res, ok := fetched[e.Location]
			if !ok {
				res.Err = fmt.Errorf("%w: no result for %s", comments.ErrCommentFetch, e.Location)
			}
			if res.Err != nil && p.opts.FailFast {
				return nil, res.Err
			}
			outcomes[i] = commentOutcome{entry: e, comments: res.Comments, err: res.Err}
		}
		return outcomes, nil
	})
	if err != nil {
		return nil, err
	}

	var withComments []commentOutcome
	for _, batch := range results {
		for _, o := range batch {
			if o.err != nil {
				p.skip(summary, o.entry.Location, "comments", o.err)
				continue
			}

			fmt.Fprintf(p.opts.Progress, "Retrieved %d comments for %s\n", len(o.comments), o.entry.Location)
			p.logger.Debug("Fetched comments", "url", o.entry.Location, "count", len(o.comments))

			if len(o.comments) > 0 {
				withComments = append(withComments, o)
			}
		}
	}

	return withComments, nil
}

// enrich fetches page metadata and assembles documents in input order.
func (p *Pipeline) enrich(ctx context.Context, pending []commentOutcome, summary *Summary) ([]domain.PageDocument, error) {
	results, err := worker.Map(ctx, pending, p.opts.Workers, func(ctx context.Context, _ int, o commentOutcome) (pageOutcome, error) {
		meta, err := p.enricher.Enrich(ctx, o.entry.Location, o.entry.LastMod)
		if err != nil {
			if p.opts.FailFast {
				return pageOutcome{}, err
			}
			return pageOutcome{err: err}, nil
		}
		return pageOutcome{doc: domain.Assemble(o.entry.Location, o.comments, meta)}, nil
	})
	if err != nil {
		return nil, err
	}

	docs := make([]domain.PageDocument, 0, len(results))
	for i, r := range results {
		if r.err != nil {
			p.skip(summary, pending[i].entry.Location, "metadata", r.err)
			continue
		}
		docs = append(docs, r.doc)
	}

	return docs, nil
}

func (p *Pipeline) skip(summary *Summary, pageURL, stage string, err error) {
	p.logger.Warn("Skipping URL", "url", pageURL, "stage", stage, "error", err)
	summary.Failures = append(summary.Failures, Failure{URL: pageURL, Stage: stage, Err: err})
}
