package prompt

import (
	"regexp"
	"strconv"
	"strings"
)

// SentienceYear is the in-universe year the bartender came online. Material
// from after it can be a memory; everything earlier she can only have read.
const SentienceYear = 2436

// Knowledge framing classes.
const (
	FramingPersonalExperience = "personal_experience"
	FramingLearnedKnowledge   = "learned_knowledge"
	FramingUnknown            = "unknown"
)

var eraYearRe = regexp.MustCompile(`\b(2[2-4]\d{2})\b`)

// TemporalFramer classifies retrieved material against the bartender's
// personal timeline.
type TemporalFramer struct {
	contacts []string
}

// NewTemporalFramer returns a framer for the given personal contacts
// (typically the Stardancer crew plus individually configured names).
func NewTemporalFramer(contacts []string) *TemporalFramer {
	return &TemporalFramer{contacts: contacts}
}

// Classify buckets content into a framing class: post-sentience material
// involving a personal contact is a memory; anything else dated is learned;
// undated material is unknown.
func (f *TemporalFramer) Classify(content string) string {
	years := extractEraYears(content)
	if len(years) == 0 {
		return FramingUnknown
	}

	postSentience := false
	for _, y := range years {
		if y >= SentienceYear {
			postSentience = true
			break
		}
	}
	if postSentience && f.mentionsContact(content) {
		return FramingPersonalExperience
	}
	return FramingLearnedKnowledge
}

// Instruction renders the framing directive injected into the prompt.
func (f *TemporalFramer) Instruction(class string) string {
	switch class {
	case FramingPersonalExperience:
		return "Frame this material as your own memory (\"I remember...\"); you were present for these events."
	case FramingLearnedKnowledge:
		return "Frame this material as something you have read or studied (\"I've read about...\"); do not claim to have been there."
	}
	return "Speak naturally about this material without claiming a specific source."
}

func (f *TemporalFramer) mentionsContact(content string) bool {
	lower := strings.ToLower(content)
	for _, c := range f.contacts {
		if strings.Contains(lower, strings.ToLower(c)) {
			return true
		}
	}
	return false
}

func extractEraYears(content string) []int {
	var out []int
	for _, m := range eraYearRe.FindAllString(content, -1) {
		y, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		out = append(out, y)
	}
	return out
}
