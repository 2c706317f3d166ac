package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ppiankov/chapterfeed/internal/model"
	"go.uber.org/zap"
)

// dashes are the separators accepted between title parts: hyphen, en dash, em dash
const dashes = "-–—"

var (
	// <series> <dash>+ Chapter <n> <dash>+ <arc>
	// The trailing separator is often doubled upstream ("- -").
	titlePattern = regexp.MustCompile(`^(.*?)\s*(?:[` + dashes + `]\s*)+Chapter\s*(\d+)\s*(?:[` + dashes + `]\s*)+(.*)$`)

	// .../chapter-<n> with an optional trailing slash
	linkPattern = regexp.MustCompile(`/chapter-(\d+)/?$`)
)

// Extractor turns raw feed entries into chapter records
type Extractor struct {
	policy       model.Policy
	seriesFilter string
	logger       *zap.Logger
}

// NewExtractor creates an extractor for the given policy.
// An empty seriesFilter disables series filtering.
func NewExtractor(policy model.Policy, seriesFilter string, logger *zap.Logger) *Extractor {
	if policy == "" {
		policy = model.PolicyDegrade
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		policy:       policy,
		seriesFilter: seriesFilter,
		logger:       logger,
	}
}

// Policy returns the active extraction policy
func (e *Extractor) Policy() model.Policy {
	return e.policy
}

// Extract classifies a single entry. It never fails: malformed input
// degrades to a fallback record or is skipped, depending on the policy.
func (e *Extractor) Extract(entry *model.RawEntry) model.Outcome {
	if entry == nil {
		return model.Outcome{Kind: model.OutcomeSkipped, Reason: "nil entry"}
	}

	if e.seriesFilter != "" && !strings.Contains(entry.Title, e.seriesFilter) {
		return model.Outcome{
			Kind:   model.OutcomeFiltered,
			Reason: "title does not contain series " + strconv.Quote(e.seriesFilter),
		}
	}

	series, number, arc, ok := parseTitle(entry.Title)

	if e.policy == model.PolicyStrict {
		if !ok {
			return model.Outcome{Kind: model.OutcomeSkipped, Reason: "title does not match chapter pattern"}
		}
		linkNumber, ok := parseLink(entry.Link)
		if !ok {
			return model.Outcome{Kind: model.OutcomeSkipped, Reason: "link does not match chapter pattern"}
		}
		return model.Outcome{
			Kind:   model.OutcomeMatched,
			Record: newRecord(linkNumber, series, arc, entry),
		}
	}

	if !ok {
		return model.Outcome{
			Kind:   model.OutcomeFallback,
			Record: newRecord(0, entry.Title, model.ArcUnknown, entry),
			Reason: "title does not match chapter pattern",
		}
	}

	return model.Outcome{
		Kind:   model.OutcomeMatched,
		Record: newRecord(number, series, arc, entry),
	}
}

// Stats counts extraction outcomes for one batch
type Stats struct {
	Total    int
	Matched  int
	Fallback int
	Skipped  int
	Filtered int
}

// Kept returns how many records survived extraction
func (s Stats) Kept() int {
	return s.Matched + s.Fallback
}

// ExtractAll extracts every entry and returns the kept records in input order.
// Records reference entries by pointer, so entries must outlive them.
func (e *Extractor) ExtractAll(entries []model.RawEntry) ([]model.ChapterRecord, Stats) {
	stats := Stats{Total: len(entries)}
	records := make([]model.ChapterRecord, 0, len(entries))

	for i := range entries {
		entry := &entries[i]
		out := e.Extract(entry)

		switch out.Kind {
		case model.OutcomeMatched:
			stats.Matched++
		case model.OutcomeFallback:
			stats.Fallback++
			e.logger.Warn("entry did not match title pattern, keeping degraded record",
				zap.Int("index", i+1),
				zap.String("title", entry.Title),
				zap.String("reason", out.Reason),
			)
		case model.OutcomeSkipped:
			stats.Skipped++
			e.logger.Warn("entry skipped",
				zap.Int("index", i+1),
				zap.String("title", entry.Title),
				zap.String("link", entry.Link),
				zap.String("reason", out.Reason),
			)
		case model.OutcomeFiltered:
			stats.Filtered++
			e.logger.Debug("entry filtered out",
				zap.Int("index", i+1),
				zap.String("title", entry.Title),
			)
		}

		if out.Kept() {
			records = append(records, out.Record)
		}
	}

	return records, stats
}

// parseTitle splits a title into series, chapter number and arc
func parseTitle(title string) (series string, number int, arc string, ok bool) {
	m := titlePattern.FindStringSubmatch(plainText(title))
	if m == nil {
		return "", 0, "", false
	}

	series = strings.TrimSpace(m[1])
	number = toChapterNumber(m[2])
	arc = strings.TrimLeft(strings.TrimSpace(m[3]), dashes+" \t")
	if arc == "" {
		arc = model.ArcUnknown
	}
	return series, number, arc, true
}

// parseLink extracts the chapter number from a chapter URL
func parseLink(link string) (int, bool) {
	m := linkPattern.FindStringSubmatch(strings.TrimSpace(link))
	if m == nil {
		return 0, false
	}
	return toChapterNumber(m[1]), true
}

// toChapterNumber converts captured digits, falling back to 0 on overflow
func toChapterNumber(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func newRecord(number int, series, arc string, entry *model.RawEntry) model.ChapterRecord {
	return model.ChapterRecord{
		ChapterNumber: number,
		SeriesTitle:   series,
		ArcTitle:      arc,
		Source:        entry,
	}
}
