package interp

import "strings"

// ---------------------------------------------------------------------------
// Output sink: captured, size-capped program output
// ---------------------------------------------------------------------------

// DefaultOutputLimit caps captured output at 100KB; writes past the cap are
// dropped and the sink is marked truncated.
const DefaultOutputLimit = 100 * 1024

// Sink captures everything a program prints. The host reads it back from
// the ExecutionResult instead of the program writing to a terminal.
type Sink struct {
	buf       strings.Builder
	limit     int
	truncated bool
}

// NewSink creates a sink with the given byte limit; limit <= 0 means
// DefaultOutputLimit.
func NewSink(limit int) *Sink {
	if limit <= 0 {
		limit = DefaultOutputLimit
	}
	return &Sink{limit: limit}
}

// WriteString appends s, truncating at the limit.
func (s *Sink) WriteString(str string) {
	if s.truncated {
		return
	}
	remaining := s.limit - s.buf.Len()
	if len(str) > remaining {
		s.buf.WriteString(str[:remaining])
		s.truncated = true
		return
	}
	s.buf.WriteString(str)
}

// String returns everything captured so far.
func (s *Sink) String() string { return s.buf.String() }

// Truncated reports whether output was cut at the limit.
func (s *Sink) Truncated() bool { return s.truncated }
