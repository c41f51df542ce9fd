// Package roleplay detects when a message belongs to an in-character scene
// and parses game-master control tags.
//
// Detection is a weighted sum over lexical signals with a fixed threshold;
// the weights are tuned against the fleet's transcript corpus and treated as
// contracts by the tests.
package roleplay

import (
	"regexp"
	"strings"
)

// Signal weights.
const (
	weightBrackets        = 0.7
	weightEmote           = 0.6
	weightQuotes          = 0.3
	weightQuotesBracketed = 0.4
	weightImperative      = 0.25
	weightNarrativeLow    = 0.15
	weightNarrativeHigh   = 0.20
	weightThreadBonus     = 0.10
	weightThreadRPVerbs   = 0.25
)

// Confidence thresholds.
const (
	threshold       = 0.25
	threadThreshold = 0.20
)

// Result is the detection outcome.
type Result struct {
	IsRoleplay bool
	Confidence float64
	Triggers   []string

	// CharacterName is the bracketed speaker when one was present.
	CharacterName string
}

var (
	bracketNameRe  = regexp.MustCompile(`^\s*\[([^\[\]]+)\]`)
	emoteRe        = regexp.MustCompile(`\*[^*\n]+\*`)
	quotedRe       = regexp.MustCompile(`"[^"\n]+"|“[^”\n]+”`)
	imperativeRe   = regexp.MustCompile(`(?i)^(look|take|give|pour|bring|hand|come|sit|stand|walk|follow|wait|listen|watch|tell)\b`)
	narrativeRe    = regexp.MustCompile(`(?i)\b(she|he|they)\s+(walks?|enters?|leans?|smiles?|nods?|sighs?|glances?|turns?|sits?|raises?|sets?)\b`)
	rpThreadVerbRe = regexp.MustCompile(`(?i)\b(says|looks at|whispers|murmurs|gestures|replies|asks quietly)\b`)
)

// substantialLen marks a message long enough for the thread-context bonus.
const substantialLen = 60

// Detector scores messages. Stateless and safe for concurrent use.
type Detector struct{}

// NewDetector returns a Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// ChannelContext is the slice of channel identity the gate needs.
type ChannelContext struct {
	Type     string
	IsThread bool
	IsDM     bool
	Name     string
}

// ChannelAllowsRoleplay applies the channel gate: DMs, threads, private and
// unknown channels allow scenes; named general or announcement channels do
// not. DGM tags bypass this gate entirely.
func ChannelAllowsRoleplay(ch ChannelContext) bool {
	if ch.IsDM || ch.IsThread {
		return true
	}
	switch strings.ToLower(ch.Type) {
	case "private", "":
		return true
	}
	name := strings.ToLower(ch.Name)
	if strings.Contains(name, "general") || strings.Contains(name, "announcement") {
		return false
	}
	return true
}

// Detect scores message against the signal bank. The channel gate applies
// first; a blocked channel scores zero regardless of content.
func (d *Detector) Detect(message string, ch ChannelContext) Result {
	if !ChannelAllowsRoleplay(ch) {
		return Result{}
	}

	var (
		confidence float64
		triggers   []string
		res        Result
	)
	hit := func(w float64, name string) {
		confidence += w
		triggers = append(triggers, name)
	}

	bracketed := bracketNameRe.FindStringSubmatch(message)
	if bracketed != nil && !isControlTag(bracketed[1]) {
		res.CharacterName = strings.TrimSpace(bracketed[1])
		hit(weightBrackets, "character_brackets")
	}
	if emoteRe.MatchString(message) {
		hit(weightEmote, "emote")
	}
	if quotedRe.MatchString(message) {
		if bracketed != nil {
			hit(weightQuotesBracketed, "quoted_dialogue_bracketed")
		} else {
			hit(weightQuotes, "quoted_dialogue")
		}
	}
	if imperativeRe.MatchString(message) {
		hit(weightImperative, "imperative")
	}
	if narrativeRe.MatchString(message) {
		if len(message) >= substantialLen {
			hit(weightNarrativeHigh, "narrative_prose")
		} else {
			hit(weightNarrativeLow, "narrative_prose")
		}
	}
	if ch.IsThread {
		if rpThreadVerbRe.MatchString(message) {
			hit(weightThreadRPVerbs, "thread_rp_verbs")
		} else if len(message) >= substantialLen {
			hit(weightThreadBonus, "thread_substantial")
		}
	}

	limit := threshold
	if ch.IsThread {
		limit = threadThreshold
	}

	res.Confidence = confidence
	res.Triggers = triggers
	res.IsRoleplay = confidence >= limit
	return res
}

// isControlTag filters brackets that are tags, not character names.
func isControlTag(name string) bool {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DGM", "OOC", "GM":
		return true
	}
	return false
}
