package classify

import (
	"errors"
	"fmt"
)

// ErrInvalidURL is returned for input that does not normalize to an
// http(s) URL with a host.
var ErrInvalidURL = errors.New("invalid url")

// Pipeline stages reported by StageError.
const (
	StageTaxonomy = "taxonomy"
	StageExtract  = "extract"
	StagePrompt   = "prompt"
	StageComplete = "complete"
	StageParse    = "parse"
	StageStore    = "store"
)

// StageError records which pipeline stage failed for a URL.
type StageError struct {
	Stage string
	URL   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("classify %s: %s: %v", e.URL, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
