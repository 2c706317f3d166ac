package pipeline

import "errors"

var (
	// ErrFetch marks a failure to retrieve or parse the upstream feed
	ErrFetch = errors.New("feed unavailable")

	// ErrEmptyResult is returned when no entry produced a chapter record.
	// No output file is written in that case.
	ErrEmptyResult = errors.New("no valid chapters found")
)
