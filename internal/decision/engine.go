package decision

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Selector thresholds.
const (
	emotionalSupportThreshold = 0.4
	groupAddressingThreshold  = 0.6
)

// Conflict-resolver priority weights; support outranks an ambiguous
// audience when both cross their thresholds.
const (
	prioritySupport = 0.9
	priorityGroup   = 0.8

	overrideBoost = 0.3
)

// Expertise domains that trigger the technical register.
var technicalDomains = map[string]bool{
	"stellar_cartography": true,
	"ship_operations":     true,
}

// Engine produces response decisions. Safe for concurrent use.
type Engine struct {
	fabricationControls bool
}

// Option is a functional option for [NewEngine].
type Option func(*Engine)

// WithFabricationControls toggles the accuracy guard (default on).
func WithFabricationControls(on bool) Option {
	return func(e *Engine) { e.fabricationControls = on }
}

// NewEngine returns an Engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{fabricationControls: true}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Decide runs the pipeline. It never panics out: an unexpected internal
// failure yields a safe silent decision with the cause in Reasoning.
func (e *Engine) Decide(cues *ContextualCues) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("decision engine failure", "cause", r)
			d = Decision{
				ShouldRespond: false,
				ResponseType:  ResponseNone,
				Reasoning:     fmt.Sprintf("internal error: %v", r),
			}
		}
	}()
	return e.decide(cues)
}

func (e *Engine) decide(cues *ContextualCues) Decision {
	emotion := AnalyzeEmotion(cues.CurrentMessage)
	support := DetectSupportNeed(cues)
	addressing := analyzeAddressing(cues)

	d := e.selectPrimary(cues, emotion, support, addressing)
	if e.fabricationControls {
		e.applyFabricationControls(cues, &d)
	}
	return d
}

// selectPrimary walks the fixed priority order and builds the decision.
func (e *Engine) selectPrimary(cues *ContextualCues, emotion EmotionalState, support SupportSignal, addressing AddressingResult) Decision {
	// Conflict: support and group addressing both cross their thresholds.
	groupConf := 0.0
	if addressing.Kind == AddressDirectGroup {
		groupConf = addressing.Confidence
	}
	if support.Confidence >= emotionalSupportThreshold && groupConf >= emotionalSupportThreshold {
		if resolveSupportVsGroup(support, groupConf) {
			groupConf = 0
		} else {
			support.NeedsSupport = false
		}
	}

	switch {
	case cues.IsSimpleImplicitResponse:
		return Decision{
			ShouldRespond:    true,
			ResponseType:     ResponseActiveDialogue,
			Confidence:       0.85,
			Reasoning:        "simple_implicit_response",
			ResponseStyle:    "warm",
			Tone:             string(emotion.Primary),
			Approach:         "conversational",
			AddressCharacter: cues.AddressedCharacter,
			EstimatedLength:  "short",
			SceneImpact:      "low",
		}

	case addressing.Kind == AddressIndividual:
		return Decision{
			ShouldRespond:    true,
			ResponseType:     ResponseActiveDialogue,
			Confidence:       addressing.Confidence,
			Reasoning:        "individual_addressing (" + addressing.Source + ")",
			ResponseStyle:    "engaged",
			Tone:             string(emotion.Primary),
			Approach:         "conversational",
			AddressCharacter: cues.CurrentSpeaker,
			EstimatedLength:  "medium",
			SceneImpact:      "medium",
		}

	case hasServiceRequest(cues):
		return Decision{
			ShouldRespond:    true,
			ResponseType:     ResponseSubtleService,
			Confidence:       0.8,
			Reasoning:        "service_request",
			ResponseStyle:    "attentive",
			Tone:             "warm",
			Approach:         "service",
			AddressCharacter: cues.CurrentSpeaker,
			EstimatedLength:  "short",
			SceneImpact:      "low",
		}

	case support.NeedsSupport && support.Confidence >= emotionalSupportThreshold:
		return Decision{
			ShouldRespond:    true,
			ResponseType:     ResponseSupportiveListen,
			Confidence:       resolvedSupportConfidence(support),
			Reasoning:        "emotional_support",
			ResponseStyle:    "gentle",
			Tone:             "empathetic",
			Approach:         "supportive",
			AddressCharacter: cues.CurrentSpeaker,
			SuggestedThemes:  []string{"validation", "presence"},
			EstimatedLength:  "medium",
			Urgency:          vulnerabilityUrgency(emotion.Vulnerability),
			SceneImpact:      "medium",
		}

	case groupConf >= groupAddressingThreshold:
		return Decision{
			ShouldRespond:   true,
			ResponseType:    ResponseGroupAcknowledgment,
			Confidence:      groupConf,
			Reasoning:       "group_addressing",
			ResponseStyle:   "light",
			Tone:            "friendly",
			Approach:        "inclusive",
			EstimatedLength: "short",
			SceneImpact:     "low",
		}

	case e.technicalMatch(cues):
		return Decision{
			ShouldRespond:   true,
			ResponseType:    ResponseTechnicalExpertise,
			Confidence:      0.7,
			Reasoning:       "technical_expertise",
			ResponseStyle:   "precise",
			Tone:            "professional",
			Approach:        "informative",
			SuggestedThemes: cues.Dynamics.Themes,
			EstimatedLength: "medium",
			SceneImpact:     "medium",
		}
	}

	if target, ok := detectCharacterToCharacter(cues); ok {
		return Decision{
			ShouldRespond: false,
			ResponseType:  ResponseNone,
			Confidence:    0.7,
			Reasoning:     "character_to_character: " + cues.CurrentSpeaker + " -> " + target,
			SceneImpact:   "none",
		}
	}

	return Decision{
		ShouldRespond:   true,
		ResponseType:    ResponseActiveDialogue,
		Confidence:      0.3,
		Reasoning:       "standard",
		ResponseStyle:   "relaxed",
		Tone:            string(emotion.Primary),
		Approach:        "conversational",
		EstimatedLength: "medium",
		SceneImpact:     "low",
	}
}

// resolveSupportVsGroup runs the specialised conflict resolver: weighted
// candidate scores capped at 1.0, with the expectations override boosting
// support and penalising group addressing. True means support wins.
func resolveSupportVsGroup(support SupportSignal, groupConf float64) bool {
	supportScore := prioritySupport * support.Confidence
	groupScore := priorityGroup * groupConf
	if support.ExpectationsOverride {
		supportScore += overrideBoost
		groupScore -= overrideBoost
	}
	return clamp01(supportScore) >= clamp01(groupScore)
}

func resolvedSupportConfidence(support SupportSignal) float64 {
	score := prioritySupport * support.Confidence
	if support.ExpectationsOverride {
		score += overrideBoost
	}
	return clamp01(score)
}

func (e *Engine) technicalMatch(cues *ContextualCues) bool {
	inExpertise := false
	for _, exp := range cues.CurrentExpertise {
		if technicalDomains[exp] {
			inExpertise = true
			break
		}
	}
	if !inExpertise {
		return false
	}
	for _, theme := range cues.Dynamics.Themes {
		if technicalDomains[theme] {
			return true
		}
	}
	return false
}

func vulnerabilityUrgency(level string) string {
	switch level {
	case VulnerabilityHigh:
		return "high"
	case VulnerabilityModerate:
		return "medium"
	}
	return "low"
}

// ─────────────────────────────────────────────────────────────────────────────
// Fabrication controls
// ─────────────────────────────────────────────────────────────────────────────

var (
	saidQueryRe  = regexp.MustCompile(`(?i)\bwhat (did|does|has)\s+([A-Z][\w'-]*)\s+(say|said|mention|mentioned|think|thought)\b`)
	earlierRefRe = regexp.MustCompile(`(?i)\b(earlier|before|a while ago|last time)\b`)
	sciEntityRe  = regexp.MustCompile(`\b[A-Z]{2,}-\d+|\b(class [A-Z]\b|subspace [a-z]+ field)`)
)

const (
	accuracyInstruction   = "Only reference statements that actually appear in the conversation context. Do not invent quotes or events."
	limitationInstruction = "You have no reliable record of what was said. Admit that you do not recall rather than invent an answer."
)

// applyFabricationControls tightens the decision when the message asks for
// facts the scene may not contain.
func (e *Engine) applyFabricationControls(cues *ContextualCues, d *Decision) {
	msg := cues.CurrentMessage

	said := saidQueryRe.FindStringSubmatch(msg)
	risky := said != nil ||
		(earlierRefRe.MatchString(msg) && len(cues.RecentActivity) == 0) ||
		(sciEntityRe.MatchString(msg) && len(cues.Dynamics.Themes) == 0)
	if !risky {
		return
	}

	d.KnowledgeToUse = append(d.KnowledgeToUse, accuracyInstruction)
	d.Tone = "honest_and_accurate"

	if said != nil {
		target := said[2]
		if !hasClearStatement(cues.RecentActivity, target) {
			d.KnowledgeToUse = append(d.KnowledgeToUse, limitationInstruction)
		}
	} else if earlierRefRe.MatchString(msg) {
		d.KnowledgeToUse = append(d.KnowledgeToUse, limitationInstruction)
	}
}

// hasClearStatement checks that speaker appears in the activity window with
// at least one substantive line.
func hasClearStatement(activity []ActivityEntry, speaker string) bool {
	for _, a := range activity {
		if strings.EqualFold(a.Speaker, speaker) && len(strings.TrimSpace(a.Content)) >= 10 {
			return true
		}
	}
	return false
}
