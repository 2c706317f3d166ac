// Package emit maps ordered chapter records onto an RSS 2.0 channel.
package emit

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/chapterfeed/internal/feed"
	"github.com/ppiankov/chapterfeed/internal/model"
	"go.uber.org/zap"
)

// Generator is written into the channel's <generator> element
const Generator = "chapterfeed"

// pubDateLayouts are the RFC 2822 shapes seen in upstream feeds once named
// zones have been replaced by their offsets
var pubDateLayouts = []string{
	time.RFC1123Z,                    // Mon, 02 Jan 2006 15:04:05 -0700
	"Mon, 2 Jan 2006 15:04:05 -0700", // single-digit day
}

// rfc2822Zones are the zone names RFC 2822 allows. time.Parse would accept
// any abbreviation and silently place it at offset zero.
var rfc2822Zones = map[string]string{
	"GMT": "+0000",
	"UT":  "+0000",
	"UTC": "+0000",
	"Z":   "+0000",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
	"PST": "-0800",
	"PDT": "-0700",
}

// Emitter builds the output feed
type Emitter struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewEmitter creates an emitter. now is the clock used for lastBuildDate and
// for items whose publication date is missing; nil means time.Now.
func NewEmitter(logger *zap.Logger, now func() time.Time) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Emitter{logger: logger, now: now}
}

// Emit maps records to items, keeping their order
func (e *Emitter) Emit(records []model.ChapterRecord, meta model.FeedMeta) *feed.Channel {
	built := e.now().UTC()

	ch := &feed.Channel{
		Title:       meta.Title,
		Link:        meta.SelfLink,
		Description: meta.Description,
		AtomLink: feed.AtomLink{
			Href: meta.SelfLink,
			Rel:  "self",
			Type: "application/rss+xml",
		},
		Generator:     Generator,
		LastBuildDate: built.Format(time.RFC1123Z),
		Items:         make([]feed.Item, 0, len(records)),
	}

	for i, r := range records {
		ch.Items = append(ch.Items, e.item(i, r, built))
	}

	return ch
}

func (e *Emitter) item(index int, r model.ChapterRecord, built time.Time) feed.Item {
	var src model.RawEntry
	if r.Source != nil {
		src = *r.Source
	}

	guid := src.GUID
	if guid == "" {
		guid = src.Link
	}

	pub, err := parsePubDate(src.Published)
	if err != nil {
		e.logger.Warn("publication date unusable, using build time",
			zap.Int("index", index+1),
			zap.String("title", r.SeriesTitle),
			zap.Int("chapter", r.ChapterNumber),
			zap.String("published", src.Published),
			zap.Error(err),
		)
		pub = built
	}

	return feed.Item{
		Title:       r.SeriesTitle,
		Link:        src.Link,
		Description: "Chapter " + strconv.Itoa(r.ChapterNumber),
		Category:    r.ArcTitle,
		GUID:        feed.GUID{Value: guid, IsPermaLink: false},
		PubDate:     pub.Format(time.RFC1123Z),
	}
}

// parsePubDate parses an upstream RFC 2822 style date
func parsePubDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("publication date missing")
	}
	if i := strings.LastIndexByte(s, ' '); i >= 0 {
		zone := s[i+1:]
		if !strings.HasPrefix(zone, "+") && !strings.HasPrefix(zone, "-") {
			offset, ok := rfc2822Zones[strings.ToUpper(zone)]
			if !ok {
				return time.Time{}, fmt.Errorf("publication date %q has unknown time zone %q", s, zone)
			}
			s = s[:i+1] + offset
		}
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("publication date %q not in RFC 1123 format", s)
}

// WriteFile serializes the channel to path. The document is written to a
// temporary file in the same directory and renamed into place, so readers
// never observe a partial feed.
func (e *Emitter) WriteFile(ch *feed.Channel, path string) (err error) {
	data, err := feed.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".chapterfeed-*.xml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}

	return nil
}
