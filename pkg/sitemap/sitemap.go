// Package sitemap loads the ordered list of page URLs an export works on.
//
// A source is either a local file or an absolute URL. Both plain sitemaps
// (<urlset>) and sitemap indexes (<sitemapindex>) are understood. Elements are
// matched by local name, so documents with a default namespace, a prefixed
// namespace or no namespace at all parse the same way.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html/charset"

	"fb2disqus/pkg/httpclient"
	"fb2disqus/pkg/logging"
)

// maxIndexDepth bounds how many sitemap indexes may be nested below the source.
const maxIndexDepth = 3

var (
	// ErrSourceUnreachable is returned when the sitemap file or URL cannot be read.
	ErrSourceUnreachable = errors.New("sitemap source unreachable")

	// ErrMalformedSitemap is returned when the source is not well-formed XML.
	ErrMalformedSitemap = errors.New("malformed sitemap")
)

// Entry represents a single URL entry from a sitemap
type Entry struct {
	Location string // URL of the page
	LastMod  string // Last modification date, verbatim (optional)
}

// document is the result of parsing one sitemap file.
type document struct {
	root     string   // local name of the root element
	entries  []Entry  // <url> children of a <urlset>
	sitemaps []string // <sitemap><loc> children of a <sitemapindex>
	skipped  int      // <url> elements without a <loc>
}

func (d *document) isIndex() bool {
	return d.root == "sitemapindex"
}

// Loader reads sitemaps from disk or over HTTP.
type Loader struct {
	client *httpclient.HTTPClient
	logger *slog.Logger
}

// NewLoader creates a loader. client is used for remote sources only.
func NewLoader(client *httpclient.HTTPClient, logger *slog.Logger) *Loader {
	if client == nil {
		client = httpclient.NewClient(httpclient.DefaultClient, httpclient.Options{})
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Loader{client: client, logger: logger}
}

// IsRemote reports whether source should be fetched over the network rather
// than opened as a file. It requires a scheme and a host.
func IsRemote(source string) bool {
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// Load returns the entries of source in document order. A sitemap index is
// expanded in place: each child sitemap is loaded in order and its entries
// appended. Children that fail are logged and skipped.
func (l *Loader) Load(ctx context.Context, source string) ([]Entry, error) {
	return l.load(ctx, source, 0)
}

func (l *Loader) load(ctx context.Context, source string, depth int) ([]Entry, error) {
	data, err := l.read(ctx, source)
	if err != nil {
		return nil, err
	}

	doc, err := parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedSitemap, source, err)
	}

	if doc.skipped > 0 {
		l.logger.Warn("Skipped sitemap entries without <loc>", "source", source, "count", doc.skipped)
	}

	if !doc.isIndex() {
		if doc.root != "urlset" {
			l.logger.Warn("Unexpected sitemap root element", "source", source, "root", doc.root)
		}
		return doc.entries, nil
	}

	if depth >= maxIndexDepth {
		l.logger.Warn("Sitemap index nested too deep, ignoring", "source", source, "depth", depth)
		return nil, nil
	}

	var all []Entry
	for _, child := range doc.sitemaps {
		child = resolveChild(source, child)

		entries, err := l.load(ctx, child, depth+1)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.logger.Warn("Skipping child sitemap", "sitemap", child, "error", err)
			continue
		}

		l.logger.Debug("Loaded child sitemap", "sitemap", child, "entries", len(entries))
		all = append(all, entries...)
	}

	return all, nil
}

func (l *Loader) read(ctx context.Context, source string) ([]byte, error) {
	if IsRemote(source) {
		data, _, err := l.client.FetchBytes(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSourceUnreachable, err)
		}
		return data, nil
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreachable, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreachable, err)
	}
	return data, nil
}

// resolveChild makes a child sitemap location from an index usable. Absolute
// URLs are returned as is; relative ones are resolved against the parent.
func resolveChild(parent, child string) string {
	if IsRemote(child) {
		return child
	}

	if IsRemote(parent) {
		base, err := url.Parse(parent)
		if err != nil {
			return child
		}
		ref, err := url.Parse(child)
		if err != nil {
			return child
		}
		return base.ResolveReference(ref).String()
	}

	if filepath.IsAbs(child) {
		return child
	}
	return filepath.Join(filepath.Dir(parent), child)
}

// parse walks the token stream once. Only <loc> and <lastmod> elements that
// are direct children of a <url> or <sitemap> are read, so extension elements
// such as <image:loc> are ignored. Elements or text after the root element
// are rejected.
func parse(r io.Reader) (*document, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var (
		doc       document
		depth     int
		itemDepth = -1 // depth of the open <url>/<sitemap>, -1 if none
		field     string
		text      strings.Builder
		loc       string
		lastMod   string
		closed    bool // root element has ended
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if closed {
				return nil, fmt.Errorf("extra element <%s> after the root element", t.Name.Local)
			}
			depth++
			name := t.Name.Local

			switch {
			case depth == 1:
				doc.root = name
			case depth == 2 && (name == "url" || name == "sitemap"):
				itemDepth = depth
				loc, lastMod = "", ""
			case itemDepth > 0 && depth == itemDepth+1 && (name == "loc" || name == "lastmod"):
				field = name
				text.Reset()
			}

		case xml.CharData:
			if closed && len(bytes.TrimSpace(t)) > 0 {
				return nil, errors.New("extra content after the root element")
			}
			if field != "" {
				text.Write(t)
			}

		case xml.EndElement:
			if field != "" && depth == itemDepth+1 {
				value := strings.TrimSpace(text.String())
				if field == "loc" {
					loc = value
				} else {
					lastMod = value
				}
				field = ""
			}

			if depth == itemDepth {
				switch {
				case loc == "":
					doc.skipped++
				case t.Name.Local == "sitemap":
					doc.sitemaps = append(doc.sitemaps, loc)
				default:
					doc.entries = append(doc.entries, Entry{Location: loc, LastMod: lastMod})
				}
				itemDepth = -1
			}
			depth--
			closed = depth == 0
		}
	}

	if doc.root == "" {
		return nil, errors.New("no root element")
	}

	return &doc, nil
}
