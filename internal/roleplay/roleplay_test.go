package roleplay_test

import (
	"math"
	"testing"

	"github.com/daedalus-fleet/elsie/internal/roleplay"
)

var thread = roleplay.ChannelContext{Type: "text", IsThread: true, Name: "stardancer-rp"}
var dm = roleplay.ChannelContext{Type: "dm", IsDM: true}
var general = roleplay.ChannelContext{Type: "text", Name: "general"}

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSignalWeights(t *testing.T) {
	d := roleplay.NewDetector()

	cases := []struct {
		message string
		want    float64
	}{
		{"[Maeve Blaine] walks in", 0.7},
		{"*pours a drink slowly*", 0.6},
		{`"Another round, please."`, 0.3},
		{`[Maeve] "Another round, please."`, 0.7 + 0.4},
		{"pour me something strong", 0.25},
	}
	for _, tc := range cases {
		got := d.Detect(tc.message, dm)
		if !almost(got.Confidence, tc.want) {
			t.Errorf("Detect(%q).Confidence = %v, want %v (triggers %v)",
				tc.message, got.Confidence, tc.want, got.Triggers)
		}
	}
}

func TestThresholds(t *testing.T) {
	d := roleplay.NewDetector()

	// Imperative alone (0.25) meets the base threshold.
	if got := d.Detect("pour me something strong", dm); !got.IsRoleplay {
		t.Error("0.25 should meet the 0.25 threshold")
	}
	// Short narrative alone (0.15) does not.
	if got := d.Detect("she nods", dm); got.IsRoleplay {
		t.Errorf("0.15 should miss the base threshold, got %v", got.Confidence)
	}
	// In a thread, RP verbs (0.25) clear the lowered 0.20 threshold.
	if got := d.Detect("Maeve looks at the viewport", thread); !got.IsRoleplay {
		t.Errorf("thread threshold is 0.20, got confidence %v", got.Confidence)
	}
}

func TestChannelGate(t *testing.T) {
	d := roleplay.NewDetector()

	if got := d.Detect("[Maeve] *sits at the bar*", general); got.IsRoleplay || got.Confidence != 0 {
		t.Error("general channels must block roleplay scoring")
	}
	for _, ch := range []roleplay.ChannelContext{dm, thread, {Type: "private"}, {}} {
		if !roleplay.ChannelAllowsRoleplay(ch) {
			t.Errorf("channel %+v should allow roleplay", ch)
		}
	}
	if roleplay.ChannelAllowsRoleplay(roleplay.ChannelContext{Type: "text", Name: "announcements"}) {
		t.Error("announcement channels must block roleplay")
	}
}

func TestBracketedSpeakerExtraction(t *testing.T) {
	d := roleplay.NewDetector()
	got := d.Detect(`[Zarina Dryellia] "Evening, Elsie."`, dm)
	if got.CharacterName != "Zarina Dryellia" {
		t.Errorf("CharacterName = %q", got.CharacterName)
	}

	// Control tags are not character names.
	got = d.Detect(`[OOC] back in five`, dm)
	if got.CharacterName != "" {
		t.Errorf("OOC bracket treated as character: %q", got.CharacterName)
	}
}

func TestParseDGMControlledElsie(t *testing.T) {
	got := roleplay.ParseDGM(`[DGM][Elsie] "On the house tonight."`)
	if got.Action != roleplay.DGMControlledElsie {
		t.Fatalf("Action = %v", got.Action)
	}
	if got.Content != `"On the house tonight."` {
		t.Errorf("Content = %q", got.Content)
	}
}

func TestParseDGMEndScene(t *testing.T) {
	for _, msg := range []string{
		"[DGM] *end scene*",
		"[DGM] and that's a wrap, *roll credits*",
	} {
		if got := roleplay.ParseDGM(msg); got.Action != roleplay.DGMEndScene {
			t.Errorf("ParseDGM(%q).Action = %v, want end scene", msg, got.Action)
		}
	}
}

func TestParseDGMSceneSetting(t *testing.T) {
	got := roleplay.ParseDGM("[DGM] The bar is quiet tonight. Captain Maeve and Zarina Dryellia enter from the corridor.")
	if got.Action != roleplay.DGMSceneSetting {
		t.Fatalf("Action = %v", got.Action)
	}
	want := map[string]bool{"Maeve": true, "Zarina Dryellia": true}
	for _, c := range got.Characters {
		delete(want, c)
	}
	if len(want) != 0 {
		t.Errorf("missing characters %v in %v", want, got.Characters)
	}
	for _, c := range got.Characters {
		if c == "The" || c == "Elsie" {
			t.Errorf("scene noise extracted as character: %q", c)
		}
	}
}

func TestParseDGMAbsent(t *testing.T) {
	if got := roleplay.ParseDGM("no tags here"); got.Action != roleplay.DGMNone {
		t.Errorf("Action = %v, want none", got.Action)
	}
}

func TestExitConditions(t *testing.T) {
	cases := []struct {
		message string
		want    bool
	}{
		{"stop the roleplay please", true},
		{"((gotta run))", true},
		{"// pausing here", true},
		{"ooc: lunch break", true},
		{"are you an AI?", true},
		{"pour me another", false},
	}
	for _, tc := range cases {
		got, _ := roleplay.IsExitCondition(tc.message)
		if got != tc.want {
			t.Errorf("IsExitCondition(%q) = %v, want %v", tc.message, got, tc.want)
		}
	}
}
