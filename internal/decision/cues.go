// Package decision turns conversational context into a response decision:
// whether the bartender speaks, in what register, and to whom.
//
// The engine is a fixed pipeline of pure analyses (emotion, support
// opportunity, addressing) feeding a priority selector. Weights and
// thresholds are tuned against scene transcripts and pinned by tests.
package decision

// ResponseType is how the bartender participates in the scene.
type ResponseType string

const (
	ResponseNone                ResponseType = "none"
	ResponseActiveDialogue      ResponseType = "active_dialogue"
	ResponseSubtleService       ResponseType = "subtle_service"
	ResponseGroupAcknowledgment ResponseType = "group_acknowledgment"
	ResponseImplicitResponse    ResponseType = "implicit_response"
	ResponseSupportiveListen    ResponseType = "supportive_listen"
	ResponseTechnicalExpertise  ResponseType = "technical_expertise"
)

// CharacterProfile is what the scene knows about a character.
type CharacterProfile struct {
	Relationship string // e.g. close_friend, regular, stranger
	Notes        string
	Preferences  []string
}

// AddressingContext carries addressing facts the router already extracted
// from the conversation. When present these outrank lexical fallbacks.
type AddressingContext struct {
	DirectMentions    []string
	GroupAddressing   bool
	ServiceRequests   []string
	OtherInteractions []string
}

// ConversationDynamics summarises the scene's recent drift.
type ConversationDynamics struct {
	EmotionalTone string
	Direction     string
	Intensity     float64
	IntimacyLevel string // casual, personal, intimate
	Themes        []string
	RecentEvents  []string
}

// ActivityEntry is one recent conversation turn, used by the fabrication
// controls to verify that a referenced character actually said something.
type ActivityEntry struct {
	Speaker string
	Content string
}

// ContextualCues is the engine input, produced per request by the router.
type ContextualCues struct {
	CurrentMessage  string
	CurrentSpeaker  string
	KnownCharacters map[string]CharacterProfile

	Addressing AddressingContext
	Dynamics   ConversationDynamics

	PersonalityMode  string
	CurrentExpertise []string

	SceneSetting string
	SessionMode  string
	SceneControl string

	RecentActivity []ActivityEntry

	// Session-derived signals.
	IsSimpleImplicitResponse bool
	AddressedCharacter       string
}

// Decision is the engine output.
type Decision struct {
	ShouldRespond bool
	ResponseType  ResponseType
	Confidence    float64
	Reasoning     string

	ResponseStyle string
	Tone          string
	Approach      string

	AddressCharacter string

	SuggestedThemes  []string
	ContinuationCues []string
	KnowledgeToUse   []string

	EstimatedLength string
	Urgency         string
	SceneImpact     string
}
