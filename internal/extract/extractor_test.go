package extract

import (
	"testing"

	"github.com/ppiankov/chapterfeed/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestExtract_CanonicalTitles(t *testing.T) {
	tests := []struct {
		title   string
		series  string
		chapter int
		arc     string
	}{
		{"Foo - Chapter 10 - - Arc A", "Foo", 10, "Arc A"},
		{"Quick Transmigration: Villain - Chapter 158 - - The Disfigured Prince", "Quick Transmigration: Villain", 158, "The Disfigured Prince"},
		{"  Foo   -   Chapter 7   -   -   Arc B  ", "Foo", 7, "Arc B"},
		{"Foo – Chapter 3 – The En Dash Arc", "Foo", 3, "The En Dash Arc"},
		{"Foo — Chapter 4 —— Em Dash Arc", "Foo", 4, "Em Dash Arc"},
		{"Foo - Chapter 5 - -- –Leading Dashes", "Foo", 5, "Leading Dashes"},
		{"Re-Zero - Chapter 12 - - Arc - With - Dashes", "Re-Zero", 12, "Arc - With - Dashes"},
		{"Foo -Chapter12- - Tight", "Foo", 12, "Tight"},
		{"Foo &#8211; Chapter 9 &#8211; &#8211; Encoded", "Foo", 9, "Encoded"},
		{"<b>Foo</b> - Chapter 11 - - <i>Markup</i>", "Foo", 11, "Markup"},
		{"Foo\u00a0- Chapter\u00a0158 - - The Disfigured Prince", "Foo", 158, "The Disfigured Prince"},
		{"Foo&nbsp;-&nbsp;Chapter&nbsp;6&nbsp;-&nbsp;-&nbsp;Entity Spaces", "Foo", 6, "Entity Spaces"},
		{"Foo - Chapter 5 - - <Untitled Arc>", "Foo", 5, "<Untitled Arc>"},
		{"Foo - Chapter 8 - - &lt;b&gt; Is Not Markup", "Foo", 8, "<b> Is Not Markup"},
	}

	e := NewExtractor(model.PolicyDegrade, "", nil)
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			entry := &model.RawEntry{Title: tt.title, Link: "https://example.com/x"}
			out := e.Extract(entry)

			require.Equal(t, model.OutcomeMatched, out.Kind)
			assert.Equal(t, tt.series, out.Record.SeriesTitle)
			assert.Equal(t, tt.chapter, out.Record.ChapterNumber)
			assert.Equal(t, tt.arc, out.Record.ArcTitle)
			assert.Same(t, entry, out.Record.Source)
		})
	}
}

func TestExtract_EmptyArcUsesSentinel(t *testing.T) {
	e := NewExtractor(model.PolicyDegrade, "", nil)
	out := e.Extract(&model.RawEntry{Title: "Foo - Chapter 2 - - "})

	require.Equal(t, model.OutcomeMatched, out.Kind)
	assert.Equal(t, 2, out.Record.ChapterNumber)
	assert.Equal(t, model.ArcUnknown, out.Record.ArcTitle)
}

func TestExtract_OverflowingNumberFallsBackToZero(t *testing.T) {
	e := NewExtractor(model.PolicyDegrade, "", nil)
	out := e.Extract(&model.RawEntry{Title: "Foo - Chapter 99999999999999999999999 - - Arc"})

	require.Equal(t, model.OutcomeMatched, out.Kind)
	assert.Equal(t, 0, out.Record.ChapterNumber)
	assert.Equal(t, "Foo", out.Record.SeriesTitle)
	assert.Equal(t, "Arc", out.Record.ArcTitle)
}

func TestExtract_DegradeFallback(t *testing.T) {
	titles := []string{
		"Random unrelated post",
		"Foo - Chapter 10",
		"Foo Chapter 10 - - Arc",
		"Foo - chapter 10 - - lowercase",
		"",
		"  padded title  ",
	}

	e := NewExtractor(model.PolicyDegrade, "", nil)
	for _, title := range titles {
		t.Run(title, func(t *testing.T) {
			out := e.Extract(&model.RawEntry{Title: title})

			require.Equal(t, model.OutcomeFallback, out.Kind)
			assert.True(t, out.Kept())
			assert.Equal(t, title, out.Record.SeriesTitle, "fallback keeps the title verbatim")
			assert.Equal(t, 0, out.Record.ChapterNumber)
			assert.Equal(t, model.ArcUnknown, out.Record.ArcTitle)
			assert.NotEmpty(t, out.Reason)
		})
	}
}

func TestExtract_DegradeIgnoresLinkNumber(t *testing.T) {
	e := NewExtractor(model.PolicyDegrade, "", nil)
	out := e.Extract(&model.RawEntry{
		Title: "Foo - Chapter 10 - - Arc",
		Link:  "https://example.com/foo/chapter-11/",
	})

	require.Equal(t, model.OutcomeMatched, out.Kind)
	assert.Equal(t, 10, out.Record.ChapterNumber)
}

func TestExtract_StrictPrefersLinkNumber(t *testing.T) {
	e := NewExtractor(model.PolicyStrict, "", nil)

	for _, link := range []string{
		"https://example.com/foo/chapter-11/",
		"https://example.com/foo/chapter-11",
	} {
		out := e.Extract(&model.RawEntry{Title: "Foo - Chapter 10 - - Arc", Link: link})
		require.Equal(t, model.OutcomeMatched, out.Kind, link)
		assert.Equal(t, 11, out.Record.ChapterNumber, link)
		assert.Equal(t, "Foo", out.Record.SeriesTitle)
		assert.Equal(t, "Arc", out.Record.ArcTitle)
	}
}

func TestExtract_StrictSkips(t *testing.T) {
	tests := []struct {
		name   string
		entry  model.RawEntry
		reason string
	}{
		{
			name:   "title mismatch",
			entry:  model.RawEntry{Title: "Random unrelated post", Link: "https://example.com/foo/chapter-3/"},
			reason: "title",
		},
		{
			name:   "link mismatch",
			entry:  model.RawEntry{Title: "Foo - Chapter 3 - - Arc", Link: "https://example.com/foo/3/"},
			reason: "link",
		},
		{
			name:   "empty link",
			entry:  model.RawEntry{Title: "Foo - Chapter 3 - - Arc"},
			reason: "link",
		},
	}

	e := NewExtractor(model.PolicyStrict, "", nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := e.Extract(&tt.entry)
			assert.Equal(t, model.OutcomeSkipped, out.Kind)
			assert.False(t, out.Kept())
			assert.Contains(t, out.Reason, tt.reason)
		})
	}
}

func TestExtract_SeriesFilterRunsFirst(t *testing.T) {
	e := NewExtractor(model.PolicyDegrade, "Quick Transmigration", nil)

	out := e.Extract(&model.RawEntry{Title: "Other Series - Chapter 4 - - Arc"})
	assert.Equal(t, model.OutcomeFiltered, out.Kind)

	// Filtered entries are excluded even when they would otherwise degrade
	out = e.Extract(&model.RawEntry{Title: "Random unrelated post"})
	assert.Equal(t, model.OutcomeFiltered, out.Kind)

	out = e.Extract(&model.RawEntry{Title: "Quick Transmigration - Chapter 4 - - Arc"})
	assert.Equal(t, model.OutcomeMatched, out.Kind)
}

func TestExtract_NilEntry(t *testing.T) {
	e := NewExtractor(model.PolicyDegrade, "", nil)
	out := e.Extract(nil)
	assert.Equal(t, model.OutcomeSkipped, out.Kind)
}

func TestExtractAll_KeepsOrderAndCounts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := NewExtractor(model.PolicyDegrade, "Foo", zap.New(core))

	entries := []model.RawEntry{
		{Title: "Foo - Chapter 10 - - Arc A"},
		{Title: "Bar - Chapter 99 - - Elsewhere"},
		{Title: "Foo announcement"},
		{Title: "Foo - Chapter 2 - - Arc B"},
	}

	records, stats := e.ExtractAll(entries)

	require.Len(t, records, 3)
	assert.Equal(t, 10, records[0].ChapterNumber)
	assert.Equal(t, "Foo announcement", records[1].SeriesTitle)
	assert.Equal(t, 2, records[2].ChapterNumber)
	assert.Same(t, &entries[3], records[2].Source)

	assert.Equal(t, Stats{Total: 4, Matched: 2, Fallback: 1, Filtered: 1}, stats)
	assert.Equal(t, 3, stats.Kept())

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "Foo announcement", warnings[0].ContextMap()["title"])
	assert.Equal(t, int64(3), warnings[0].ContextMap()["index"])

	assert.Equal(t, 1, logs.FilterMessage("entry filtered out").Len())
}

func TestExtractAll_StrictLogsSkips(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	e := NewExtractor(model.PolicyStrict, "", zap.New(core))

	entries := []model.RawEntry{
		{Title: "Foo - Chapter 1 - - A", Link: "https://example.com/chapter-1/"},
		{Title: "Foo - Chapter 2 - - B", Link: "https://example.com/two/"},
	}

	records, stats := e.ExtractAll(entries)

	require.Len(t, records, 1)
	assert.Equal(t, 1, stats.Skipped)
	skipped := logs.FilterMessage("entry skipped").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "https://example.com/two/", skipped[0].ContextMap()["link"])
}

func TestExtractAll_Empty(t *testing.T) {
	e := NewExtractor(model.PolicyDegrade, "", nil)
	records, stats := e.ExtractAll(nil)
	assert.Empty(t, records)
	assert.Equal(t, 0, stats.Kept())
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a &amp; b", "a & b"},
		{"<b>bold</b>  text", "bold text"},
		{"Foo &#8211; Bar", "Foo – Bar"},
		{"x < y", "x < y"},
		{"a\u00a0b\u00a0\u00a0c", "a b c"},
		{"a&nbsp;b", "a b"},
		{"<Untitled Arc>", "<Untitled Arc>"},
		{"<I Am Arc>", "<I Am Arc>"},
		{"&lt;b&gt;", "<b>"},
		{"<span class=\"x\">Foo</span><br/>Bar", "Foo Bar"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, plainText(tt.in), tt.in)
	}
}
