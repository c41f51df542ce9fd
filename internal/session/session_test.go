package session

import "testing"

func TestRegistryLazyCreationAndReset(t *testing.T) {
	r := NewRegistry()

	st, release := r.Acquire("chan-1", ChannelContext{Type: "thread", IsThread: true})
	id := st.SessionID
	release()
	if id == "" {
		t.Fatal("session id should be assigned on creation")
	}

	st2, release2 := r.Acquire("chan-1", ChannelContext{Type: "thread", IsThread: true})
	if st2.SessionID != id {
		t.Error("same channel must return the same state")
	}
	release2()

	r.Reset("chan-1")
	st3, release3 := r.Acquire("chan-1", ChannelContext{})
	if st3.SessionID == id {
		t.Error("reset must drop the old state")
	}
	release3()
}

func TestParticipantsCaseInsensitive(t *testing.T) {
	s := &State{}
	s.AddParticipant("Maeve Blaine", "brackets", 1)
	s.AddParticipant("maeve blaine", "brackets", 4)
	s.AddParticipant("Fallo", "dgm_scene", 2)

	ps := s.Participants()
	if len(ps) != 2 {
		t.Fatalf("participants = %+v", ps)
	}
	if ps[0].FirstTurn != 1 || ps[0].LastTurn != 4 {
		t.Errorf("re-adding must only refresh LastTurn: %+v", ps[0])
	}
}

func TestTurnHistoryBounded(t *testing.T) {
	s := &State{}
	for i := 1; i <= 25; i++ {
		s.MarkCharacterTurn(i, "Maeve")
	}
	h := s.TurnHistory()
	if len(h) != 10 {
		t.Fatalf("history length = %d, want 10", len(h))
	}
	if h[0].No != 16 || h[9].No != 25 {
		t.Errorf("history window = [%d..%d], want [16..25]", h[0].No, h[9].No)
	}
}

func TestStartSessionWithDGMCharacters(t *testing.T) {
	s := &State{}
	s.StartSession(3, ChannelContext{IsThread: true}, []string{"Maeve", "Fallo"})

	if !s.IsRoleplaying || !s.DGMInitiated {
		t.Error("DGM scene setting must start a DGM session")
	}
	if len(s.Participants()) != 2 {
		t.Errorf("participants = %+v", s.Participants())
	}
}

func TestEndSessionClearsSceneState(t *testing.T) {
	s := &State{}
	s.StartSession(1, ChannelContext{}, []string{"Maeve"})
	s.MarkCharacterTurn(2, "Maeve")
	s.UpdateConfidence(0.9)
	s.EndSession("explicit exit")

	if s.IsRoleplaying || len(s.Participants()) != 0 || len(s.TurnHistory()) != 0 {
		t.Error("scene state must be cleared on end")
	}
}

func TestSustainedTopicShift(t *testing.T) {
	s := &State{}
	s.UpdateConfidence(0.5)
	s.UpdateConfidence(0.1)
	s.UpdateConfidence(0.1)
	if s.CheckSustainedTopicShift() {
		t.Error("two low scores are not sustained")
	}
	s.UpdateConfidence(0.05)
	if !s.CheckSustainedTopicShift() {
		t.Error("three consecutive scores under 0.15 are a sustained shift")
	}
	if !s.ShouldExitFromSustainedShift() {
		t.Error("sustained shift should exit")
	}
}

func TestExitConditionCount(t *testing.T) {
	s := &State{}
	s.RecordExitCondition()
	if s.ShouldExitFromSustainedShift() {
		t.Error("one exit condition is not enough")
	}
	s.RecordExitCondition()
	if !s.ShouldExitFromSustainedShift() {
		t.Error("two exit conditions should exit")
	}
}

func TestSimpleImplicitResponse(t *testing.T) {
	s := &State{}
	s.SetLastCharacterAddressed("Maeve Blaine")
	s.MarkResponseTurn(10)

	if !s.IsSimpleImplicitResponse(11, "Just the usual, thanks.") {
		t.Error("short bare reply right after addressing should be implicit")
	}
	if s.IsSimpleImplicitResponse(11, "[Fallo] waves from the corner") {
		t.Error("bracketed or emoted messages are never implicit replies")
	}
	if s.IsSimpleImplicitResponse(15, "Just the usual.") {
		t.Error("implicit window closes after a couple of turns")
	}

	s2 := &State{}
	if s2.IsSimpleImplicitResponse(1, "hello") {
		t.Error("no addressed character means no implicit response")
	}
}

func TestForcedInterjectionAfterSilence(t *testing.T) {
	s := &State{}
	s.StartSession(1, ChannelContext{}, nil)
	s.MarkResponseTurn(1)

	if s.ShouldInterjectSubtleAction(5) && s.ShouldInterjectSubtleAction(6) {
		// Cadence may or may not fire inside the window; the hard
		// guarantee is below.
	}
	if !s.ShouldInterjectSubtleAction(21) {
		t.Error("20 turns of silence must force an interjection")
	}
}

func TestDGMCadenceIsFaster(t *testing.T) {
	dgm := &State{}
	dgm.StartSession(0, ChannelContext{}, []string{"Maeve"})
	dgm.MarkResponseTurn(0)
	if !dgm.ShouldInterjectSubtleAction(15) {
		t.Error("15 turns of silence must force an interjection in a DGM scene")
	}

	plain := &State{}
	plain.StartSession(0, ChannelContext{}, nil)
	plain.MarkResponseTurn(0)
	if plain.ShouldInterjectSubtleAction(4) {
		t.Error("plain cadence must not fire before 8 turns")
	}
}
