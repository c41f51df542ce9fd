package decision

import (
	"regexp"
	"strings"
)

// AddressingKind classifies who the message is aimed at.
type AddressingKind string

const (
	AddressDirectGroup       AddressingKind = "direct_group"
	AddressContextualMention AddressingKind = "contextual_mention"
	AddressIndividual        AddressingKind = "individual_address"
	AddressNone              AddressingKind = "no_addressing"
)

// AddressingResult is the lexical fallback classification with its source.
type AddressingResult struct {
	Kind       AddressingKind
	Confidence float64
	Source     string // contextual_cues or lexical
}

var (
	groupVocativeRe = regexp.MustCompile(`(?i)\b(everyone|everybody|you all|all of you|you guys|folks)\b`)
	// Possessive or object use of a group word is a mention, not an
	// audience: "everyone's expectations", "what everyone thinks".
	groupPossessiveRe = regexp.MustCompile(`(?i)\beveryone'?s?\s+(expectations?|opinions?|standards?|needs?|thinks?|wants?|says?|expects?)\b`)
	elsieAddressRe    = regexp.MustCompile(`(?i)(^|\W)elsie\b`)
	serviceRequestRe  = regexp.MustCompile(`(?i)\b(another (round|drink)|top (me|us) up|refill|can (i|we) get|pour (me|us)|what do you have)\b`)
)

// distinguishGroupVsContextual is the lexical fallback when the router
// supplied no addressing facts.
func distinguishGroupVsContextual(message string) AddressingResult {
	if groupPossessiveRe.MatchString(message) {
		return AddressingResult{Kind: AddressContextualMention, Confidence: 0.7, Source: "lexical"}
	}
	if elsieAddressRe.MatchString(message) {
		return AddressingResult{Kind: AddressIndividual, Confidence: 0.8, Source: "lexical"}
	}
	if groupVocativeRe.MatchString(message) {
		// Vocative use: group word near the start or with second person.
		trimmed := strings.ToLower(strings.TrimSpace(message))
		if strings.HasPrefix(trimmed, "everyone") || strings.HasPrefix(trimmed, "everybody") ||
			strings.Contains(trimmed, "you all") || strings.Contains(trimmed, "all of you") {
			return AddressingResult{Kind: AddressDirectGroup, Confidence: 0.7, Source: "lexical"}
		}
		return AddressingResult{Kind: AddressContextualMention, Confidence: 0.5, Source: "lexical"}
	}
	return AddressingResult{Kind: AddressNone, Confidence: 0.0, Source: "lexical"}
}

// analyzeAddressing prefers facts the router extracted over lexical guesses.
func analyzeAddressing(cues *ContextualCues) AddressingResult {
	switch {
	case len(cues.Addressing.DirectMentions) > 0:
		return AddressingResult{Kind: AddressIndividual, Confidence: 0.9, Source: "contextual_cues"}
	case cues.Addressing.GroupAddressing:
		return AddressingResult{Kind: AddressDirectGroup, Confidence: 0.8, Source: "contextual_cues"}
	}
	return distinguishGroupVsContextual(cues.CurrentMessage)
}

// questionWords may follow a character name without making the name an
// addressee; "Maeve, can you..." inside quotes asks Elsie about Maeve as
// often as it addresses her, so these never count as character addressing.
var questionWords = map[string]bool{
	"can": true, "could": true, "would": true, "do": true, "does": true,
	"what": true, "where": true, "when": true, "why": true, "who": true,
	"how": true,
}

var quotedVocativeRe = regexp.MustCompile(`"\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\s*,\s*(\w+)`)

// detectCharacterToCharacter reports whether the current speaker directly
// addresses another character (not the bartender) inside quoted dialogue.
func detectCharacterToCharacter(cues *ContextualCues) (string, bool) {
	m := quotedVocativeRe.FindStringSubmatch(cues.CurrentMessage)
	if m == nil {
		return "", false
	}
	target, next := m[1], strings.ToLower(m[2])
	if strings.EqualFold(target, "Elsie") {
		return "", false
	}
	if questionWords[next] {
		return "", false
	}
	if _, known := cues.KnownCharacters[target]; !known && !isParticipant(cues, target) {
		return "", false
	}
	return target, true
}

func isParticipant(cues *ContextualCues, name string) bool {
	for _, e := range cues.RecentActivity {
		if strings.EqualFold(e.Speaker, name) {
			return true
		}
	}
	return false
}

// hasServiceRequest folds the router-provided and lexical service signals.
func hasServiceRequest(cues *ContextualCues) bool {
	return len(cues.Addressing.ServiceRequests) > 0 || serviceRequestRe.MatchString(cues.CurrentMessage)
}
