// Package order sorts chapter records newest-first.
package order

import (
	"cmp"
	"slices"

	"github.com/ppiankov/chapterfeed/internal/model"
)

// ByChapterDesc returns a copy of records sorted by chapter number, highest
// first. Records with equal numbers keep their input order, which matters for
// the many unparsed entries that all carry chapter 0. The input is not modified.
func ByChapterDesc(records []model.ChapterRecord) []model.ChapterRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b model.ChapterRecord) int {
		return cmp.Compare(b.ChapterNumber, a.ChapterNumber)
	})
	return sorted
}

// IsDescending reports whether records are already in newest-first order
func IsDescending(records []model.ChapterRecord) bool {
	return slices.IsSortedFunc(records, func(a, b model.ChapterRecord) int {
		return cmp.Compare(b.ChapterNumber, a.ChapterNumber)
	})
}
