package subtitle

import (
	"fmt"
	"math"
	"strings"
)

// EmitSRT serializes planned cues as sequential index / time-range / text
// blocks separated by blank lines. Text is rendered upper case.
func EmitSRT(cues []Cue) string {
	var sb strings.Builder
	for i, cue := range cues {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n",
			cue.Index,
			FormatTime(cue.Start, FormatSRT),
			FormatTime(cue.End, FormatSRT),
			strings.ToUpper(cue.Text))
		if i < len(cues)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// EmitASS renders segment-level transcript units as a karaoke document: a
// single-style header followed by one Dialogue line per segment, each word
// prefixed with a {\k<cs>} reveal tag whose duration in centiseconds comes
// from the planner's timing policy. Segments with no words are skipped.
func EmitASS(segments []Unit, style StyleProfile, policy Policy) string {
	lines := assHeader(style)
	for _, segment := range segments {
		timed := timeWords(segment, policy)
		if len(timed) == 0 {
			continue
		}
		parts := make([]string, 0, len(timed))
		for _, word := range timed {
			centis := int(math.Round(word.Duration() * 100))
			parts = append(parts, fmt.Sprintf("{\\k%d}%s", centis, strings.ToUpper(word.Text)))
		}
		lines = append(lines, fmt.Sprintf("Dialogue: 0,%s,%s,Default,,0,0,0,,%s",
			FormatTime(segment.Start, FormatASS),
			FormatTime(segment.End, FormatASS),
			strings.Join(parts, " ")))
	}
	return strings.Join(lines, "\n")
}

func assHeader(style StyleProfile) []string {
	bold := 0
	if style.Bold {
		bold = -1
	}
	return []string{
		"[Script Info]",
		"ScriptType: v4.00+",
		"WrapStyle: 0",
		"PlayResX: 384",
		"PlayResY: 288",
		"ScaledBorderAndShadow: yes",
		"",
		"[V4+ Styles]",
		"Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding",
		fmt.Sprintf("Style: Default,%s,%d,%s,%s,%s,%s,%d,0,0,0,100,100,0,0,%d,%d,%d,%d,10,10,%d,1",
			style.FontName,
			style.FontSize,
			style.Primary.ASS(),
			style.Secondary.ASS(),
			style.Outline.ASS(),
			style.Back.ASS(),
			bold,
			style.BorderStyle,
			style.OutlineWidth,
			style.Shadow,
			style.Alignment,
			style.MarginV),
		"",
		"[Events]",
		"Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text",
	}
}
