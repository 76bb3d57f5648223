package subtitle

import "strings"

// karaokeLeadIn is subtracted from syllable-weighted cue starts so the
// highlight lands slightly before the word is spoken. Clamped to the segment
// start.
const karaokeLeadIn = 0.05

// TimedWord is one display word with its computed share of the owning
// segment's time span.
type TimedWord struct {
	Text  string
	Start float64
	End   float64
}

// Duration returns the word's time share in seconds.
func (w TimedWord) Duration() float64 {
	return w.End - w.Start
}

// timeWords distributes a segment's duration across its whitespace-separated
// words. Equal division gives every word duration/word_count; the
// syllable-weighted policy sizes each word's share proportionally to its
// estimated syllable count. Returns nil for segments with no words.
func timeWords(segment Unit, policy Policy) []TimedWord {
	words := strings.Fields(segment.Text)
	if len(words) == 0 {
		return nil
	}

	duration := segment.Duration()
	timed := make([]TimedWord, 0, len(words))
	cursor := segment.Start

	if policy == PolicySyllableWeighted {
		total := 0
		for _, word := range words {
			total += EstimateSyllables(word)
		}
		perSyllable := duration / float64(total)
		for _, word := range words {
			share := float64(EstimateSyllables(word)) * perSyllable
			timed = append(timed, TimedWord{Text: word, Start: cursor, End: cursor + share})
			cursor += share
		}
		return timed
	}

	perWord := duration / float64(len(words))
	for _, word := range words {
		timed = append(timed, TimedWord{Text: word, Start: cursor, End: cursor + perWord})
		cursor += perWord
	}
	return timed
}

// EstimateSyllables counts vowel runs in the lowercased word, minimum 1.
// Accented vowels cover the Spanish-language transcripts the pipeline
// processes most often.
func EstimateSyllables(word string) int {
	count := 0
	previousVowel := false
	for _, r := range strings.ToLower(word) {
		vowel := strings.ContainsRune("aeiouáéíóúü", r)
		if vowel && !previousVowel {
			count++
		}
		previousVowel = vowel
	}
	if count < 1 {
		return 1
	}
	return count
}
