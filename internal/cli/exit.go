package cli

import (
	"errors"

	"github.com/ppiankov/chapterfeed/internal/pipeline"
)

// Process exit codes
const (
	ExitOK           = 0
	ExitFailure      = 1 // configuration or output write failure
	ExitEmptyResult  = 2 // no valid chapters, nothing written
	ExitFetchFailure = 3 // upstream feed could not be fetched or parsed
)

// ExitCode maps a command error to the process exit code. When err joins
// several failures, a fetch failure outranks an empty result.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, pipeline.ErrFetch):
		return ExitFetchFailure
	case errors.Is(err, pipeline.ErrEmptyResult):
		return ExitEmptyResult
	default:
		return ExitFailure
	}
}
