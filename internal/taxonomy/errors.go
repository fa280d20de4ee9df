package taxonomy

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. FormatError and SizeError match these through errors.Is.
var (
	ErrFormat  = errors.New("taxonomy format error")
	ErrSize    = errors.New("taxonomy size error")
	ErrNoIndex = errors.New("no taxonomy index available")
	ErrSource  = errors.New("taxonomy source not allowed")
)

// FormatError reports that the source header lacks required columns.
type FormatError struct {
	Source  string
	Missing []string
	Header  []string
}

// Error leaves the header cells out; they are source content and are logged
// by the builder instead.
func (e *FormatError) Error() string {
	return fmt.Sprintf("taxonomy %s: missing required columns %s (%d header columns)",
		e.Source, strings.Join(e.Missing, ", "), len(e.Header))
}

// Is makes errors.Is(err, ErrFormat) true.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// SizeError reports that a build produced fewer entries than the configured floor.
type SizeError struct {
	Source string
	Count  int
	Min    int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("taxonomy %s: built %d entries, below minimum %d", e.Source, e.Count, e.Min)
}

// Is makes errors.Is(err, ErrSize) true.
func (e *SizeError) Is(target error) bool { return target == ErrSize }

// SourceError reports a location that is not the default source and not in
// the configured allowlist.
type SourceError struct {
	Source string
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("taxonomy source %q is not configured", e.Source)
}

// Is makes errors.Is(err, ErrSource) true.
func (e *SourceError) Is(target error) bool { return target == ErrSource }
