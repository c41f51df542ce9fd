package decision

import (
	"regexp"
	"strings"
)

// Tone is a detected emotional register.
type Tone string

const (
	ToneHappy       Tone = "happy"
	ToneSad         Tone = "sad"
	ToneFrustrated  Tone = "frustrated"
	ToneAnxious     Tone = "anxious"
	ToneOverwhelmed Tone = "overwhelmed"
	ToneVulnerable  Tone = "vulnerable"
	ToneGrateful    Tone = "grateful"
	ToneNeutral     Tone = "neutral"
)

// Vulnerability levels derived from first-person-inability phrasing.
const (
	VulnerabilityNone     = "none"
	VulnerabilityMild     = "mild"
	VulnerabilityModerate = "moderate"
	VulnerabilityHigh     = "high"
)

// EmotionalState is the outcome of emotional analysis.
type EmotionalState struct {
	Primary       Tone
	Secondary     Tone
	Intensity     float64
	Vulnerability string
}

// Keyword weights per tone. Single words score low, phrases high; contextual
// words lowest.
var toneKeywords = map[Tone][]weighted{
	ToneHappy: {
		{`\b(great|wonderful|fantastic|amazing|love it)\b`, 0.5},
		{`\b(glad|happy|excited|fun)\b`, 0.4},
		{`\b(nice|good)\b`, 0.2},
	},
	ToneSad: {
		{`\b(heartbroken|devastated|miss (him|her|them) so much)\b`, 0.6},
		{`\b(sad|lonely|crying|grief|lost)\b`, 0.4},
		{`\b(down|blue|rough day)\b`, 0.25},
	},
	ToneFrustrated: {
		{`\b(sick of|fed up|had enough)\b`, 0.6},
		{`\b(frustrated|annoyed|angry|furious)\b`, 0.45},
		{`\b(ugh|argh|again\?)`, 0.25},
	},
	ToneAnxious: {
		{`\b(terrified|panicking|panic)\b`, 0.6},
		{`\b(anxious|worried|nervous|scared|afraid)\b`, 0.45},
		{`\b(what if|not sure i)\b`, 0.25},
	},
	ToneOverwhelmed: {
		{`\b(can't (take|handle|do) (this|it) anymore)\b`, 0.7},
		{`\b(overwhelmed|too much|drowning|buried)\b`, 0.5},
		{`\b(so much (to do|going on))\b`, 0.3},
	},
	ToneVulnerable: {
		{`\b(i can't live up to|i'?m not (good )?enough|i always fail)\b`, 0.65},
		{`\b(i can'?t\b|i'?m failing|never be able)`, 0.45},
		{`\b(hard for me|struggle with)\b`, 0.3},
	},
	ToneGrateful: {
		{`\b(thank you so much|can't thank you enough)\b`, 0.6},
		{`\b(thanks|thank you|grateful|appreciate)\b`, 0.4},
	},
}

type weighted struct {
	pattern string
	weight  float64
}

var compiledTones = compileTones()

func compileTones() map[Tone][]compiledWeighted {
	out := make(map[Tone][]compiledWeighted, len(toneKeywords))
	for tone, ws := range toneKeywords {
		for _, w := range ws {
			out[tone] = append(out[tone], compiledWeighted{
				re: regexp.MustCompile(`(?i)` + w.pattern), weight: w.weight,
			})
		}
	}
	return out
}

type compiledWeighted struct {
	re     *regexp.Regexp
	weight float64
}

var (
	magnifierRe    = regexp.MustCompile(`(?i)\b(so|really|very|extremely|absolutely|completely|totally)\b`)
	inabilityRe    = regexp.MustCompile(`(?i)\bi (can'?t|cannot|couldn'?t|don'?t think i can|won'?t be able to|never)\b`)
	inabilityHiRe  = regexp.MustCompile(`(?i)\b(i can'?t (take|handle|do) (this|it)|i give up|no point anymore)\b`)
	inabilityLowRe = regexp.MustCompile(`(?i)\b(hard for me|struggle with)\b`)
)

// hasRepeatedChar reports whether any character (other than newline) appears
// three or more times in a row, e.g. "sooo" or "!!!". Go's RE2 engine has no
// backreferences, so `(.)\1{2,}` cannot be expressed as a regexp.
func hasRepeatedChar(s string) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r != '\n' && r == prev {
			run++
			if run >= 3 {
				return true
			}
		} else {
			prev, run = r, 1
		}
	}
	return false
}

// AnalyzeEmotion scores message against the tone bank and derives intensity
// and vulnerability.
func AnalyzeEmotion(message string) EmotionalState {
	scores := make(map[Tone]float64)
	for tone, ws := range compiledTones {
		for _, w := range ws {
			if w.re.MatchString(message) {
				scores[tone] += w.weight
			}
		}
	}

	state := EmotionalState{
		Primary:       ToneNeutral,
		Secondary:     ToneNeutral,
		Vulnerability: VulnerabilityNone,
	}
	var best, second float64
	for tone, score := range scores {
		switch {
		case score > best:
			state.Secondary, second = state.Primary, best
			state.Primary, best = tone, score
		case score > second:
			state.Secondary, second = tone, score
		}
	}
	if best == 0 {
		state.Primary = ToneNeutral
	}

	state.Intensity = clamp01(best + intensityBoost(message))
	state.Vulnerability = vulnerabilityLevel(message)
	return state
}

// intensityBoost reads magnifiers, exclamation, caps and letter repetition.
func intensityBoost(message string) float64 {
	var boost float64
	if magnifierRe.MatchString(message) {
		boost += 0.15
	}
	if strings.Count(message, "!") >= 2 {
		boost += 0.15
	} else if strings.Contains(message, "!") {
		boost += 0.05
	}
	if capsRatio(message) > 0.5 && len(message) > 8 {
		boost += 0.2
	}
	if hasRepeatedChar(message) {
		boost += 0.1
	}
	return boost
}

func vulnerabilityLevel(message string) string {
	switch {
	case inabilityHiRe.MatchString(message):
		return VulnerabilityHigh
	case inabilityRe.MatchString(message):
		return VulnerabilityModerate
	case inabilityLowRe.MatchString(message):
		return VulnerabilityMild
	}
	return VulnerabilityNone
}

func capsRatio(s string) float64 {
	var upper, letters int
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			upper++
			letters++
		case r >= 'a' && r <= 'z':
			letters++
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
