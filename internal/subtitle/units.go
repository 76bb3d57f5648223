package subtitle

import "strings"

// Format selects the subtitle document format produced by a rendering pass.
type Format string

const (
	// FormatSRT is the plain sequential block format with comma-millisecond
	// timestamps.
	FormatSRT Format = "srt"
	// FormatASS is the styled format with per-word karaoke reveal tags and
	// period-centisecond timestamps.
	FormatASS Format = "ass"
)

// ParseFormat converts a configuration string into a known Format.
func ParseFormat(value string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatSRT:
		return FormatSRT, true
	case FormatASS:
		return FormatASS, true
	default:
		return "", false
	}
}

// Granularity identifies the timestamp resolution of transcript units.
type Granularity string

const (
	// GranularitySegment marks units that span multi-word phrases.
	GranularitySegment Granularity = "segment"
	// GranularityWord marks units that each hold a single token.
	GranularityWord Granularity = "word"
)

// Unit is one speech-recognition unit. Units are ordered by Start,
// non-overlapping, with End >= Start.
type Unit struct {
	Start float64
	End   float64
	Text  string
}

// Duration returns the time span covered by the unit in seconds.
func (u Unit) Duration() float64 {
	return u.End - u.Start
}

// Cue is a single display subtitle entry. Index is 1-based and contiguous
// within a rendering pass; Start < End always holds after planning.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}
