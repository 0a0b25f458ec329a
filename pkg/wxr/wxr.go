// Package wxr renders page documents as a WordPress eXtended RSS file in the
// shape the Disqus importer accepts.
package wxr

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"fb2disqus/pkg/domain"
)

// ErrSerialization is returned when the export cannot be rendered or written.
var ErrSerialization = errors.New("serialization failed")

// Namespaces declared on the root element.
const (
	NamespaceContent = "http://purl.org/rss/1.0/modules/content/"
	NamespaceDisqus  = "http://www.disqus.com/"
	NamespaceDC      = "http://purl.org/dc/elements/1.1/"
	NamespaceWP      = "http://wordpress.org/export/1.0/"
)

// Options holds the fixed values written for every item and comment.
type Options struct {
	CommentStatus string // "open" or "closed"
	Approved      int    // 1 approved, 0 pending
}

// DefaultOptions returns the values used when nothing is configured.
func DefaultOptions() Options {
	return Options{CommentStatus: "open", Approved: 1}
}

type rss struct {
	XMLName   xml.Name `xml:"rss"`
	Version   string   `xml:"version,attr"`
	NSContent string   `xml:"xmlns:content,attr"`
	NSDisqus  string   `xml:"xmlns:dsq,attr"`
	NSDC      string   `xml:"xmlns:dc,attr"`
	NSWP      string   `xml:"xmlns:wp,attr"`
	Channel   channel  `xml:"channel"`
}

type channel struct {
	Items []item `xml:"item"`
}

type item struct {
	Title            string    `xml:"title"`
	Link             string    `xml:"link"`
	Content          cdata     `xml:"content:encoded"`
	ThreadIdentifier string    `xml:"dsq:thread_identifier"`
	PostDateGMT      string    `xml:"wp:post_date_gmt"`
	CommentStatus    string    `xml:"wp:comment_status"`
	Comments         []comment `xml:"wp:comment"`
}

type comment struct {
	ID          string `xml:"wp:comment_id"`
	Author      string `xml:"wp:comment_author"`
	AuthorEmail string `xml:"wp:comment_author_email"`
	AuthorURL   string `xml:"wp:comment_author_url"`
	AuthorIP    string `xml:"wp:comment_author_IP"`
	DateGMT     string `xml:"wp:comment_date_gmt"`
	Content     cdata  `xml:"wp:comment_content"`
	Approved    int    `xml:"wp:comment_approved"`
	Parent      string `xml:"wp:comment_parent"`
}

// cdata wraps its text in a CDATA section. A "]]>" inside the text is split
// across two sections by the encoder.
type cdata struct {
	Text string `xml:",cdata"`
}

func newCDATA(text string) cdata {
	return cdata{Text: strings.Map(xmlChar, text)}
}

// xmlChar replaces runes that may not appear in an XML document, including
// invalid UTF-8, with U+FFFD. The encoder does this for text nodes but not
// for CDATA sections.
func xmlChar(r rune) rune {
	switch {
	case r == '\t' || r == '\n' || r == '\r':
		return r
	case r >= 0x20 && r <= 0xD7FF:
		return r
	case r >= 0xE000 && r <= 0xFFFD:
		return r
	case r >= 0x10000 && r <= utf8.MaxRune:
		return r
	}
	return utf8.RuneError
}

func build(docs []domain.PageDocument, opts Options) rss {
	doc := rss{
		Version:   "2.0",
		NSContent: NamespaceContent,
		NSDisqus:  NamespaceDisqus,
		NSDC:      NamespaceDC,
		NSWP:      NamespaceWP,
	}

	doc.Channel.Items = make([]item, 0, len(docs))
	for _, d := range docs {
		it := item{
			Title:            d.Title,
			Link:             d.URL,
			Content:          newCDATA(d.Body),
			ThreadIdentifier: d.Slug,
			PostDateGMT:      d.PublishedAt,
			CommentStatus:    opts.CommentStatus,
			Comments:         make([]comment, 0, len(d.Comments)),
		}
		for _, c := range d.Comments {
			it.Comments = append(it.Comments, comment{
				ID:       c.ID,
				Author:   c.Author,
				DateGMT:  c.CreatedAt,
				Content:  newCDATA(c.Body),
				Approved: opts.Approved,
			})
		}
		doc.Channel.Items = append(doc.Channel.Items, it)
	}

	return doc
}

// Encode writes the export for docs to w: one item per document and one
// wp:comment per comment, both in input order.
func Encode(w io.Writer, docs []domain.PageDocument, opts Options) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	if err := enc.Encode(build(docs, opts)); err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return nil
}

// WriteFile renders docs in memory and then replaces path with the result.
// The file is written to a temporary name in the same directory and renamed
// into place, so path never holds a partial export.
func WriteFile(path string, docs []domain.PageDocument, opts Options) error {
	var buf bytes.Buffer
	if err := Encode(&buf, docs, opts); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	tmpName := tmp.Name()

	cleanup := func(cause error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrSerialization, path, cause)
	}

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		return cleanup(err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		return cleanup(err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrSerialization, path, err)
	}

	return nil
}
