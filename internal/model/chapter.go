package model

// ArcUnknown is the arc label used when a title carries no arc
const ArcUnknown = "N/A"

// RawEntry is one item of the upstream feed, as returned by the feed reader
type RawEntry struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Published string `json:"published,omitempty"` // RFC 1123 style date text, empty when absent
	GUID      string `json:"guid,omitempty"`
}

// ChapterRecord is the structured view of one upstream entry
type ChapterRecord struct {
	ChapterNumber int    `json:"chapter_number"` // 0 when the entry could not be parsed
	SeriesTitle   string `json:"series_title"`
	ArcTitle      string `json:"arc_title"` // ArcUnknown when the entry could not be parsed

	// Source points back at the entry the record was built from.
	// Only Link, Published and GUID are read from it.
	Source *RawEntry `json:"-"`
}

// OutcomeKind classifies how an entry went through extraction
type OutcomeKind string

const (
	OutcomeMatched  OutcomeKind = "matched"  // Title (and link, when required) parsed
	OutcomeFallback OutcomeKind = "fallback" // Title did not parse, degraded record kept
	OutcomeSkipped  OutcomeKind = "skipped"  // Entry dropped by the strict policy
	OutcomeFiltered OutcomeKind = "filtered" // Entry excluded by the series filter
)

// Outcome is the tagged result of extracting a single entry.
// Record is only meaningful for OutcomeMatched and OutcomeFallback.
type Outcome struct {
	Kind   OutcomeKind
	Record ChapterRecord
	Reason string
}

// Kept reports whether the outcome produced a record for the output feed
func (o Outcome) Kept() bool {
	return o.Kind == OutcomeMatched || o.Kind == OutcomeFallback
}

// FeedMeta carries the channel-level fields of the generated feed
type FeedMeta struct {
	Title       string
	SelfLink    string
	Description string
}
