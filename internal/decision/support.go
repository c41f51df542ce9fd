package decision

import (
	"regexp"
	"strings"
)

// SupportSignal is the support-opportunity outcome.
type SupportSignal struct {
	NeedsSupport bool
	Confidence   float64

	// ExpectationsOverride marks the "everyone's expectations" special
	// case: the word everyone is a contextual mention, not an audience,
	// so emotional support beats group addressing in conflict resolution.
	ExpectationsOverride bool
}

var supportPatterns = []compiledWeighted{
	{regexp.MustCompile(`(?i)\bi can'?t (live up to|keep up|go on|do this)\b`), 0.45},
	{regexp.MustCompile(`(?i)\b(struggling|falling apart|at my limit)\b`), 0.4},
	{regexp.MustCompile(`(?i)\bdon'?t know what to do\b`), 0.4},
	{regexp.MustCompile(`(?i)\b(nobody understands|no one listens)\b`), 0.35},
	{regexp.MustCompile(`(?i)\b(tired of|exhausted by)\b`), 0.3},
	{regexp.MustCompile(`(?i)\bwish i (could|was|were)\b`), 0.25},
}

var expectationsRe = regexp.MustCompile(`(?i)\beveryone(?:'s)? expect(?:s|ations)?\b`)

var emotionalActionRe = regexp.MustCompile(`(?i)\*[^*]*(sigh|slump|tremble|shake|tear|sob|stare into)[^*]*\*`)

// Support-bonus weights.
const (
	bonusCloseRelationship = 0.15
	bonusIntimacy          = 0.10
	bonusEmotionalAction   = 0.10
	bonusExpectations      = 0.30
)

const supportThreshold = 0.4

// DetectSupportNeed scores the message for an emotional-support opportunity,
// with relationship and scene bonuses from cues.
func DetectSupportNeed(cues *ContextualCues) SupportSignal {
	msg := cues.CurrentMessage

	var confidence float64
	for _, p := range supportPatterns {
		if p.re.MatchString(msg) {
			confidence += p.weight
		}
	}

	sig := SupportSignal{}
	if expectationsRe.MatchString(msg) {
		sig.ExpectationsOverride = true
		confidence += bonusExpectations
	}
	if profile, ok := cues.KnownCharacters[cues.CurrentSpeaker]; ok {
		if strings.Contains(profile.Relationship, "close") {
			confidence += bonusCloseRelationship
		}
	}
	switch cues.Dynamics.IntimacyLevel {
	case "personal", "intimate":
		confidence += bonusIntimacy
	}
	if emotionalActionRe.MatchString(msg) {
		confidence += bonusEmotionalAction
	}

	sig.Confidence = clamp01(confidence)
	sig.NeedsSupport = sig.Confidence >= supportThreshold
	return sig
}
