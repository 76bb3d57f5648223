package subtitle

import (
	"strings"

	"reelay/internal/services"
)

// Policy selects the chunking heuristic used to group transcript words into
// display cues.
type Policy string

const (
	// PolicyFixedWordCount merges adjacent short words greedily. On word
	// granularity a word is combined with its successor when the combined
	// text stays within fixedCombineLimit characters and the current word is
	// not longer than fixedLongWord; the final unit is always its own cue.
	PolicyFixedWordCount Policy = "fixed_word_count"
	// PolicyEqualDivision splits each segment's span evenly across its words
	// and groups them into fixed-size windows.
	PolicyEqualDivision Policy = "equal_division"
	// PolicySyllableWeighted works like PolicyEqualDivision but sizes each
	// word's share by estimated syllable count, with a small lead-in applied
	// to cue starts.
	PolicySyllableWeighted Policy = "syllable_weighted"
)

const (
	fixedCombineLimit = 12
	fixedLongWord     = 7

	defaultWordsPerCue   = 2
	maxWordsPerCue       = 3
	defaultMinCueSeconds = 0.5
)

// ParsePolicy converts a configuration string into a known Policy.
func ParsePolicy(value string) (Policy, bool) {
	switch Policy(strings.ToLower(strings.TrimSpace(value))) {
	case PolicyFixedWordCount:
		return PolicyFixedWordCount, true
	case PolicyEqualDivision:
		return PolicyEqualDivision, true
	case PolicySyllableWeighted:
		return PolicySyllableWeighted, true
	default:
		return "", false
	}
}

// Planner transforms ordered transcript units into display cues.
type Planner struct {
	policy      Policy
	wordsPerCue int
	minCue      float64
}

// NewPlanner builds a planner. wordsPerCue is clamped to [1,3]; zero values
// select the defaults (2 words per cue, 0.5s minimum cue duration).
func NewPlanner(policy Policy, wordsPerCue int, minCueSeconds float64) *Planner {
	if wordsPerCue <= 0 {
		wordsPerCue = defaultWordsPerCue
	}
	if wordsPerCue > maxWordsPerCue {
		wordsPerCue = maxWordsPerCue
	}
	if minCueSeconds <= 0 {
		minCueSeconds = defaultMinCueSeconds
	}
	if policy == "" {
		policy = PolicyEqualDivision
	}
	return &Planner{policy: policy, wordsPerCue: wordsPerCue, minCue: minCueSeconds}
}

// Policy returns the chunking policy the planner applies.
func (p *Planner) Policy() Policy {
	return p.policy
}

// Plan groups the transcript units into cues. Cue text is upper-cased, cue
// indexes are contiguous starting at 1, starts are non-decreasing, and every
// cue is at least the minimum duration long (the end is extended when the
// computed span falls short; the next cue's start is not shifted).
func (p *Planner) Plan(units []Unit, granularity Granularity) ([]Cue, error) {
	if len(units) == 0 {
		return nil, services.Wrap(services.ErrValidation, "planner", "plan", "empty transcript", nil)
	}

	var cues []Cue
	if granularity == GranularityWord {
		cues = p.planWordUnits(units)
	} else {
		cues = p.planSegments(units)
	}
	if len(cues) == 0 {
		return nil, services.Wrap(services.ErrValidation, "planner", "plan", "no usable words in transcript", nil)
	}

	for i := range cues {
		cues[i].Index = i + 1
		if cues[i].End-cues[i].Start < p.minCue {
			cues[i].End = cues[i].Start + p.minCue
		}
	}
	return cues, nil
}

// planWordUnits consumes word-level units. Under the fixed word-count policy
// adjacent words merge when short enough; the other policies group words into
// windows using their native timestamps.
func (p *Planner) planWordUnits(words []Unit) []Cue {
	if p.policy != PolicyFixedWordCount {
		return p.planWordWindows(words)
	}

	cues := make([]Cue, 0, len(words))
	for i := 0; i < len(words); {
		current := words[i]
		// The final unit is always its own cue, so a merge may not consume it.
		if i+2 < len(words) {
			next := words[i+1]
			combined := len([]rune(current.Text)) + 1 + len([]rune(next.Text))
			if combined <= fixedCombineLimit && len([]rune(current.Text)) <= fixedLongWord {
				cues = append(cues, Cue{
					Start: current.Start,
					End:   next.End,
					Text:  strings.ToUpper(current.Text + " " + next.Text),
				})
				i += 2
				continue
			}
		}
		cues = append(cues, Cue{Start: current.Start, End: current.End, Text: strings.ToUpper(current.Text)})
		i++
	}
	return cues
}

// planWordWindows groups word-level units into fixed-size windows spanning
// the first word's start to the last word's end.
func (p *Planner) planWordWindows(words []Unit) []Cue {
	cues := make([]Cue, 0, (len(words)+p.wordsPerCue-1)/p.wordsPerCue)
	for i := 0; i < len(words); i += p.wordsPerCue {
		j := i + p.wordsPerCue
		if j > len(words) {
			j = len(words)
		}
		texts := make([]string, 0, j-i)
		for _, w := range words[i:j] {
			texts = append(texts, w.Text)
		}
		cues = append(cues, Cue{
			Start: words[i].Start,
			End:   words[j-1].End,
			Text:  strings.ToUpper(strings.Join(texts, " ")),
		})
	}
	return cues
}

// planSegments splits each segment into timed words per the policy and groups
// them into windows. Segments with no words produce no cue.
func (p *Planner) planSegments(segments []Unit) []Cue {
	var cues []Cue
	for _, segment := range segments {
		timed := timeWords(segment, p.policy)
		if len(timed) == 0 {
			continue
		}
		for i := 0; i < len(timed); i += p.wordsPerCue {
			j := i + p.wordsPerCue
			if j > len(timed) {
				j = len(timed)
			}
			start := timed[i].Start
			end := timed[j-1].End
			if p.policy == PolicySyllableWeighted {
				start -= karaokeLeadIn
				if start < segment.Start {
					start = segment.Start
				}
				if end > segment.End {
					end = segment.End
				}
			}
			texts := make([]string, 0, j-i)
			for _, w := range timed[i:j] {
				texts = append(texts, w.Text)
			}
			cues = append(cues, Cue{Start: start, End: end, Text: strings.ToUpper(strings.Join(texts, " "))})
		}
	}
	return cues
}
