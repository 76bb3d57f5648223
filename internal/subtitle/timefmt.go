package subtitle

import (
	"fmt"
	"math"
)

// FormatTime converts a non-negative second offset into the timestamp
// notation of the given format: SRT uses HH:MM:SS,mmm with zero-padded hours,
// ASS uses H:MM:SS.cc with unpadded hours. The offset is rounded to the
// resolution each format can express; rounding in the format's smallest unit
// keeps binary-float inputs like 3.07 from landing one unit low.
func FormatTime(seconds float64, format Format) string {
	if format == FormatASS {
		total := int64(math.Round(seconds * 100))
		return fmt.Sprintf("%d:%02d:%02d.%02d",
			total/360000, total/6000%60, total/100%60, total%100)
	}
	total := int64(math.Round(seconds * 1000))
	return fmt.Sprintf("%02d:%02d:%02d,%03d",
		total/3600000, total/60000%60, total/1000%60, total%1000)
}
