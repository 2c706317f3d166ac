package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

const atomNamespace = "http://www.w3.org/2005/Atom"

// Channel is an RSS 2.0 channel ready for serialization
type Channel struct {
	Title         string   `xml:"title"`
	Link          string   `xml:"link"`
	Description   string   `xml:"description"`
	AtomLink      AtomLink `xml:"atom:link"`
	Generator     string   `xml:"generator,omitempty"`
	LastBuildDate string   `xml:"lastBuildDate"`
	Items         []Item   `xml:"item"`
}

// AtomLink is the self-reference recommended for RSS 2.0 channels
type AtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr,omitempty"`
}

// Item is one RSS 2.0 item
type Item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Category    string `xml:"category,omitempty"`
	GUID        GUID   `xml:"guid"`
	PubDate     string `xml:"pubDate"`
}

// GUID is an item identifier. IsPermaLink is serialized as "true"/"false".
type GUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

type rssDocument struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	AtomNS  string   `xml:"xmlns:atom,attr"`
	Channel *Channel `xml:"channel"`
}

// Write serializes the channel as an indented RSS 2.0 document
func Write(w io.Writer, ch *Channel) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	doc := rssDocument{
		Version: "2.0",
		AtomNS:  atomNamespace,
		Channel: ch,
	}
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode rss: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush rss: %w", err)
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("write trailer: %w", err)
	}
	return nil
}

// Marshal returns the serialized document
func Marshal(ch *Channel) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, ch); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
