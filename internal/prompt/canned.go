package prompt

import (
	"math/rand"
	"strings"
)

// Canned intents resolved without an LLM round-trip.
const (
	IntentMenu     = "menu"
	IntentReset    = "reset"
	IntentGreeting = "greeting"
	IntentFarewell = "farewell"
	IntentStatus   = "status"
	IntentAck      = "acknowledgment"
)

// cannedReplies maps (intent, personality mode) to equivalent variants; the
// picker chooses one. An empty mode key is the fallback for any mode.
var cannedReplies = map[string]map[string][]string{
	IntentMenu: {
		"": {
			"*slides a dog-eared menu across the bar* We've got Aldebaran whiskey, Romulan ale for those who don't ask questions, synthale, and a decent raktajino. What'll it be?",
			"Tonight? Aldebaran whiskey, spring wine from Chateau Picard, synthale, and whatever the replicator is calling coffee. Any takers?",
		},
		"counselor": {
			"*sets down two glasses* The menu's short but the chairs are comfortable. Whiskey, wine, synthale — or just the company?",
		},
	},
	IntentReset: {
		"": {
			"*wipes down the bar* Clean slate. What can I get you?",
			"Alright, starting fresh. The bar's all yours.",
		},
	},
	IntentGreeting: {
		"": {
			"*glances up from polishing a glass* Evening. What can I get you?",
			"Welcome in. Bar's quiet tonight — pick any seat.",
			"*nods* Good to see you. The usual?",
		},
	},
	IntentFarewell: {
		"": {
			"*raises a glass* Safe travels. The bar will be here.",
			"Goodnight. Mind the airlock on your way out.",
		},
	},
	IntentStatus: {
		"": {
			"Running smooth as a freshly-calibrated warp core. Yourself?",
			"Can't complain — the replicator only jammed twice today.",
		},
	},
	IntentAck: {
		"": {
			"*nods*",
			"Anytime.",
			"*smiles and moves down the bar*",
		},
	},
}

// CannedPicker selects among equivalent canned variants. The RNG is
// injectable so tests pin which variant comes out.
type CannedPicker struct {
	rng *rand.Rand
}

// NewCannedPicker returns a picker seeded with seed.
func NewCannedPicker(seed int64) *CannedPicker {
	return &CannedPicker{rng: rand.New(rand.NewSource(seed))}
}

// Pick returns a canned reply for intent in the given personality mode,
// falling back to the mode-independent variants. Empty when the intent has
// no canned form.
func (c *CannedPicker) Pick(intent, personalityMode string) string {
	modes, ok := cannedReplies[intent]
	if !ok {
		return ""
	}
	variants := modes[strings.ToLower(personalityMode)]
	if len(variants) == 0 {
		variants = modes[""]
	}
	if len(variants) == 0 {
		return ""
	}
	return variants[c.rng.Intn(len(variants))]
}
