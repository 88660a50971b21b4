package fluency

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTimeline is matched by every *MalformedTimelineError.
	ErrMalformedTimeline = errors.New("fluency: malformed timeline")

	// ErrInvalidConfig is returned by New and Config.Validate.
	ErrInvalidConfig = errors.New("fluency: invalid config")
)

// MalformedTimelineError reports word timing from the transcription provider
// that violates ordering or non-negativity. Analysis cannot proceed.
type MalformedTimelineError struct {
	Index  int
	Word   string
	Reason string
}

func (e *MalformedTimelineError) Error() string {
	return fmt.Sprintf("fluency: malformed timeline at word %d (%q): %s", e.Index, e.Word, e.Reason)
}

func (e *MalformedTimelineError) Is(target error) bool {
	return target == ErrMalformedTimeline
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
