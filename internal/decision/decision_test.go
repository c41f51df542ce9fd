package decision_test

import (
	"strings"
	"testing"

	"github.com/daedalus-fleet/elsie/internal/decision"
)

func TestImplicitResponseChain(t *testing.T) {
	e := decision.NewEngine()
	d := e.Decide(&decision.ContextualCues{
		CurrentMessage:           `"Thanks, Elsie."`,
		CurrentSpeaker:           "Maeve",
		IsSimpleImplicitResponse: true,
		AddressedCharacter:       "Maeve",
	})

	if !d.ShouldRespond || d.ResponseType != decision.ResponseActiveDialogue {
		t.Errorf("decision = %+v", d)
	}
	if d.AddressCharacter != "Maeve" {
		t.Errorf("AddressCharacter = %q", d.AddressCharacter)
	}
	if d.Reasoning != "simple_implicit_response" {
		t.Errorf("Reasoning = %q", d.Reasoning)
	}
}

func TestExpectationsOverrideSelectsSupport(t *testing.T) {
	e := decision.NewEngine()
	d := e.Decide(&decision.ContextualCues{
		CurrentMessage: "I can't live up to everyone's expectations.",
		CurrentSpeaker: "Zarina",
		KnownCharacters: map[string]decision.CharacterProfile{
			"Zarina": {Relationship: "close_friend"},
		},
		Dynamics: decision.ConversationDynamics{IntimacyLevel: "personal"},
	})

	if d.ResponseType != decision.ResponseSupportiveListen {
		t.Fatalf("ResponseType = %q, want supportive_listen (%+v)", d.ResponseType, d)
	}
	if d.Confidence <= 0.6 {
		t.Errorf("Confidence = %v, want > 0.6", d.Confidence)
	}
	if d.Tone != "empathetic" {
		t.Errorf("Tone = %q", d.Tone)
	}
}

func TestExpectationsIsContextualMentionNotGroup(t *testing.T) {
	e := decision.NewEngine()
	d := e.Decide(&decision.ContextualCues{
		CurrentMessage: "I can't live up to everyone's expectations.",
		CurrentSpeaker: "Zarina",
	})
	if d.ResponseType == decision.ResponseGroupAcknowledgment {
		t.Error("possessive 'everyone's' must not read as group addressing")
	}
}

func TestGroupAddressing(t *testing.T) {
	e := decision.NewEngine()
	d := e.Decide(&decision.ContextualCues{
		CurrentMessage: "Everyone, raise your glasses!",
		CurrentSpeaker: "Fallo",
	})
	if d.ResponseType != decision.ResponseGroupAcknowledgment {
		t.Errorf("ResponseType = %q, want group_acknowledgment (%+v)", d.ResponseType, d)
	}
}

func TestServiceRequest(t *testing.T) {
	e := decision.NewEngine()
	d := e.Decide(&decision.ContextualCues{
		CurrentMessage: "Another round for the table, please.",
		CurrentSpeaker: "Fallo",
	})
	if d.ResponseType != decision.ResponseSubtleService || !d.ShouldRespond {
		t.Errorf("decision = %+v", d)
	}
}

func TestCharacterToCharacterIsSilent(t *testing.T) {
	e := decision.NewEngine()
	d := e.Decide(&decision.ContextualCues{
		CurrentMessage: `[Fallo] "Maeve, your shift report is overdue."`,
		CurrentSpeaker: "Fallo",
		KnownCharacters: map[string]decision.CharacterProfile{
			"Maeve": {Relationship: "regular"},
		},
	})
	if d.ShouldRespond {
		t.Errorf("character-to-character must not respond: %+v", d)
	}
	if d.ResponseType != decision.ResponseNone {
		t.Errorf("ResponseType = %q, want none", d.ResponseType)
	}
}

func TestQuestionWordsAreNotAddressing(t *testing.T) {
	e := decision.NewEngine()
	d := e.Decide(&decision.ContextualCues{
		CurrentMessage: `[Fallo] "Maeve, can you believe this place?"`,
		CurrentSpeaker: "Fallo",
		KnownCharacters: map[string]decision.CharacterProfile{
			"Maeve": {Relationship: "regular"},
		},
	})
	if !d.ShouldRespond {
		t.Error("a question word after a name is not character addressing")
	}
}

func TestTechnicalExpertise(t *testing.T) {
	e := decision.NewEngine()
	d := e.Decide(&decision.ContextualCues{
		CurrentMessage:   "those sensor echoes keep drifting off the charts",
		CurrentSpeaker:   "Zarina",
		CurrentExpertise: []string{"stellar_cartography"},
		Dynamics: decision.ConversationDynamics{
			Themes: []string{"stellar_cartography"},
		},
	})
	if d.ResponseType != decision.ResponseTechnicalExpertise {
		t.Errorf("ResponseType = %q, want technical_expertise (%+v)", d.ResponseType, d)
	}
}

func TestFactualQueryWithoutHistory(t *testing.T) {
	e := decision.NewEngine()
	d := e.Decide(&decision.ContextualCues{
		CurrentMessage: "What did Zarina say earlier?",
		CurrentSpeaker: "Fallo",
	})

	if d.ResponseType != decision.ResponseActiveDialogue {
		t.Errorf("ResponseType = %q, want active_dialogue", d.ResponseType)
	}
	if d.Tone != "honest_and_accurate" {
		t.Errorf("Tone = %q", d.Tone)
	}
	joined := strings.Join(d.KnowledgeToUse, " ")
	if !strings.Contains(joined, "do not recall") && !strings.Contains(joined, "Do not invent") {
		t.Errorf("KnowledgeToUse missing admonition: %v", d.KnowledgeToUse)
	}
	if !strings.Contains(joined, "Admit") && !strings.Contains(joined, "admit") {
		t.Errorf("KnowledgeToUse missing limitation instruction: %v", d.KnowledgeToUse)
	}
}

func TestFactualQueryWithHistoryKeepsAccuracyOnly(t *testing.T) {
	e := decision.NewEngine()
	d := e.Decide(&decision.ContextualCues{
		CurrentMessage: "What did Zarina say earlier?",
		CurrentSpeaker: "Fallo",
		RecentActivity: []decision.ActivityEntry{
			{Speaker: "Zarina", Content: "The nebula survey finishes tomorrow."},
		},
	})
	joined := strings.Join(d.KnowledgeToUse, " ")
	if !strings.Contains(joined, "Do not invent") {
		t.Errorf("accuracy instruction missing: %v", d.KnowledgeToUse)
	}
	if strings.Contains(joined, "do not recall") {
		t.Errorf("limitation instruction should be absent when the statement exists: %v", d.KnowledgeToUse)
	}
}

func TestFabricationControlsCanBeDisabled(t *testing.T) {
	e := decision.NewEngine(decision.WithFabricationControls(false))
	d := e.Decide(&decision.ContextualCues{
		CurrentMessage: "What did Zarina say earlier?",
	})
	if len(d.KnowledgeToUse) != 0 {
		t.Errorf("controls disabled, KnowledgeToUse = %v", d.KnowledgeToUse)
	}
}

func TestEmotionAnalysis(t *testing.T) {
	st := decision.AnalyzeEmotion("I'm so frustrated, this is too much!!")
	if st.Primary != decision.ToneFrustrated && st.Primary != decision.ToneOverwhelmed {
		t.Errorf("Primary = %q", st.Primary)
	}
	if st.Intensity <= 0.4 {
		t.Errorf("Intensity = %v, want boosted by magnifier and punctuation", st.Intensity)
	}

	neutral := decision.AnalyzeEmotion("the shipment arrives on dock four")
	if neutral.Primary != decision.ToneNeutral {
		t.Errorf("neutral Primary = %q", neutral.Primary)
	}
}

func TestVulnerabilityLevels(t *testing.T) {
	if st := decision.AnalyzeEmotion("I can't handle this anymore"); st.Vulnerability != decision.VulnerabilityHigh {
		t.Errorf("Vulnerability = %q, want high", st.Vulnerability)
	}
	if st := decision.AnalyzeEmotion("I can't sleep lately"); st.Vulnerability != decision.VulnerabilityModerate {
		t.Errorf("Vulnerability = %q, want moderate", st.Vulnerability)
	}
	if st := decision.AnalyzeEmotion("lovely evening"); st.Vulnerability != decision.VulnerabilityNone {
		t.Errorf("Vulnerability = %q, want none", st.Vulnerability)
	}
}
