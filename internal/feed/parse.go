// Package feed reads upstream RSS 2.0 / Atom 1.0 documents and writes RSS 2.0.
//
// The format is detected from the XML root element:
//   - <rss ...> or <rdf:RDF ...> is read as RSS 2.0
//   - <feed ...> is read as Atom 1.0
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/chapterfeed/internal/model"
	"golang.org/x/net/html/charset"
)

// Document is a parsed upstream feed
type Document struct {
	Title   string
	Link    string
	Entries []model.RawEntry
}

// Parse auto-detects and parses RSS 2.0 or Atom 1.0 XML
func Parse(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("feed: empty document")
	}

	switch detectFormat(trimmed) {
	case "rss":
		return parseRSS(trimmed)
	case "atom":
		return parseAtom(trimmed)
	default:
		return nil, fmt.Errorf("feed: unknown format (expected <rss> or <feed>)")
	}
}

// newDecoder returns a lenient decoder: upstream feeds may use HTML entities
// or legacy encodings. No HTML auto-closing, since <link> carries text in RSS.
func newDecoder(data []byte) *xml.Decoder {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.CharsetReader = charset.NewReaderLabel
	d.Strict = false
	d.Entity = xml.HTMLEntity
	return d
}

func detectFormat(data []byte) string {
	d := newDecoder(data)
	for {
		tok, err := d.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			switch strings.ToLower(se.Name.Local) {
			case "rss", "rdf":
				return "rss"
			case "feed":
				return "atom"
			default:
				return ""
			}
		}
	}
}

// --- RSS 2.0 ---

type rssRoot struct {
	Channel rssChannel `xml:"channel"`
	Items   []rssItem  `xml:"item"` // RSS 1.0 keeps items beside the channel
}

type rssChannel struct {
	Title string    `xml:"title"`
	Link  string    `xml:"link"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	GUID    string `xml:"guid"`
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	Date    string `xml:"date"` // dc:date
}

func parseRSS(data []byte) (*Document, error) {
	var root rssRoot
	if err := newDecoder(data).Decode(&root); err != nil {
		return nil, fmt.Errorf("feed: parse rss: %w", err)
	}

	items := root.Channel.Items
	if len(items) == 0 {
		items = root.Items
	}

	doc := &Document{
		Title:   strings.TrimSpace(root.Channel.Title),
		Link:    strings.TrimSpace(root.Channel.Link),
		Entries: make([]model.RawEntry, 0, len(items)),
	}

	for _, item := range items {
		published := strings.TrimSpace(item.PubDate)
		if published == "" {
			published = normalizeISODate(item.Date)
		}

		doc.Entries = append(doc.Entries, model.RawEntry{
			GUID:      strings.TrimSpace(item.GUID),
			Title:     strings.TrimSpace(item.Title),
			Link:      strings.TrimSpace(item.Link),
			Published: published,
		})
	}

	return doc, nil
}

// --- Atom 1.0 ---

type atomFeed struct {
	Title   string      `xml:"title"`
	Links   []atomLink  `xml:"link"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

type atomEntry struct {
	ID        string     `xml:"id"`
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

func parseAtom(data []byte) (*Document, error) {
	var root atomFeed
	if err := newDecoder(data).Decode(&root); err != nil {
		return nil, fmt.Errorf("feed: parse atom: %w", err)
	}

	doc := &Document{
		Title:   strings.TrimSpace(root.Title),
		Link:    alternateLink(root.Links),
		Entries: make([]model.RawEntry, 0, len(root.Entries)),
	}

	for _, entry := range root.Entries {
		published := entry.Published
		if strings.TrimSpace(published) == "" {
			published = entry.Updated
		}

		doc.Entries = append(doc.Entries, model.RawEntry{
			GUID:      strings.TrimSpace(entry.ID),
			Title:     strings.TrimSpace(entry.Title),
			Link:      alternateLink(entry.Links),
			Published: normalizeISODate(published),
		})
	}

	return doc, nil
}

// alternateLink prefers rel="alternate" (or no rel), then the first href
func alternateLink(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "alternate" || l.Rel == "" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

// normalizeISODate rewrites an RFC 3339 timestamp in the RSS date format so
// every entry reaches the emitter in one layout. Other text is returned as is.
func normalizeISODate(s string) string {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(time.RFC1123Z)
	}
	return s
}
