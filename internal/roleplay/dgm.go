package roleplay

import (
	"regexp"
	"strings"
)

// DGMAction classifies a game-master control message.
type DGMAction int

const (
	// DGMNone: the message carries no DGM tag.
	DGMNone DGMAction = iota

	// DGMControlledElsie: the GM speaks as the bartender; the content goes
	// into history as her words and the bot stays silent this turn.
	DGMControlledElsie

	// DGMEndScene: the GM closed the scene.
	DGMEndScene

	// DGMSceneSetting: any other GM content; starts a session with the
	// characters mentioned in the description.
	DGMSceneSetting
)

// DGMResult is the parsed control message.
type DGMResult struct {
	Action     DGMAction
	Content    string
	Characters []string
}

var (
	dgmTagRe      = regexp.MustCompile(`(?i)^\s*\[DGM\]\s*`)
	dgmElsieRe    = regexp.MustCompile(`(?i)^\s*\[Elsie\]\s*`)
	dgmEndRe      = regexp.MustCompile(`(?i)\*(end scene|scene end|roll credits|fin|curtain)\*`)
	titledOrCapRe = regexp.MustCompile(`\b(?:(?:Captain|Commander|Lieutenant|Ensign|Doctor|Counselor|Chief)\s+)?([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\b`)
)

// Words that look like names in scene descriptions but never are.
var sceneStopWords = map[string]bool{
	"The": true, "A": true, "An": true, "It": true, "As": true, "At": true,
	"In": true, "On": true, "Ten": true, "Forward": true, "Elsie": true,
	"Deck": true, "Bridge": true, "Bar": true, "Holodeck": true,
}

// ParseDGM interprets a message beginning with the [DGM] tag. Action is
// DGMNone when the tag is absent.
func ParseDGM(message string) DGMResult {
	loc := dgmTagRe.FindStringIndex(message)
	if loc == nil {
		return DGMResult{Action: DGMNone}
	}
	rest := message[loc[1]:]

	if m := dgmElsieRe.FindStringIndex(rest); m != nil {
		return DGMResult{
			Action:  DGMControlledElsie,
			Content: strings.TrimSpace(rest[m[1]:]),
		}
	}
	if dgmEndRe.MatchString(rest) {
		return DGMResult{Action: DGMEndScene, Content: strings.TrimSpace(rest)}
	}
	return DGMResult{
		Action:     DGMSceneSetting,
		Content:    strings.TrimSpace(rest),
		Characters: extractSceneCharacters(rest),
	}
}

// extractSceneCharacters pulls character names out of a scene description
// via proper-noun patterns, rank-title aware, order-preserving and deduped.
func extractSceneCharacters(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range titledOrCapRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if sceneStopWords[firstWord(name)] || sceneStopWords[name] {
			continue
		}
		if seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		out = append(out, name)
	}
	return out
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

// Exit-condition patterns: explicit stop commands, OOC brackets, and
// technical questions about the system itself.
var (
	exitCommandRe = regexp.MustCompile(`(?i)\b(stop|end|exit|quit|pause)\s+(the\s+)?(roleplay|rp|scene|session)\b`)
	oocMarkerRe   = regexp.MustCompile(`(?i)^\s*(\(\(|//|\[ooc\b|ooc:)`)
	metaQueryRe   = regexp.MustCompile(`(?i)\b(are you (a|an)\s+(bot|ai|llm)|what model|system prompt|your (code|source|database))\b`)
)

// IsExitCondition reports whether message signals leaving the scene, with
// the trigger name for session accounting.
func IsExitCondition(message string) (bool, string) {
	switch {
	case exitCommandRe.MatchString(message):
		return true, "exit_command"
	case oocMarkerRe.MatchString(message):
		return true, "ooc_marker"
	case metaQueryRe.MatchString(message):
		return true, "meta_query"
	}
	return false, ""
}
