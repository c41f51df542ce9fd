// Package session tracks per-channel roleplay state: who is in the scene,
// whose turn history matters, and when the bartender should interject.
//
// The [Registry] creates state lazily per channel and hands out the entry
// under its own lock, so handlers for different channels never contend.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Bounds on in-memory history.
const (
	turnHistorySize       = 10
	confidenceHistorySize = 5
)

// Interjection cadence. DGM-run scenes move faster, so the bartender chimes
// in more often; either way a long silence forces a subtle action.
const (
	interjectEveryDGM  = 5
	interjectEvery     = 8
	forceInterjectDGM  = 15
	forceInterject     = 20
	interjectJitterDGM = 3 // window extends to every 5-8 turns
	interjectJitter    = 2 // window extends to every 8-10 turns
)

// Sustained-shift exit: three consecutive low-confidence turns, or two
// explicit exit conditions.
const (
	sustainedShiftWindow    = 3
	sustainedShiftThreshold = 0.15
	exitConditionLimit      = 2
)

// ChannelContext describes where a message arrived.
type ChannelContext struct {
	Type      string
	IsThread  bool
	IsDM      bool
	Name      string
	SessionID string
}

// Participant is one character present in the scene.
type Participant struct {
	Name      string
	Source    string
	FirstTurn int
	LastTurn  int
}

// Turn is one history entry.
type Turn struct {
	No      int
	Speaker string
}

// State is the per-channel session state. All methods require the caller to
// hold the entry via [Registry.Acquire].
type State struct {
	mu sync.Mutex

	SessionID string
	Channel   ChannelContext

	IsRoleplaying    bool
	SessionStartTurn int

	participants []Participant
	turnHistory  []Turn

	LastCharacterElsieAddressed string
	LastCharacterSpoke          string

	confidenceHistory  []float64
	exitConditionCount int

	ListeningMode        bool
	ListeningTurnCount   int
	LastInterjectionTurn int
	LastResponseTurn     int

	DGMInitiated  bool
	DGMCharacters []string

	StartedAt time.Time

	turnCounter int
}

// NextTurn advances and returns the channel's monotonic turn number.
func (s *State) NextTurn() int {
	s.turnCounter++
	return s.turnCounter
}

// Registry hands out per-channel state.
type Registry struct {
	mu       sync.Mutex
	channels map[string]*State
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*State)}
}

// Acquire returns the state for channelID, creating it on first use, locked.
// The caller must call the returned release function when done.
func (r *Registry) Acquire(channelID string, ch ChannelContext) (*State, func()) {
	r.mu.Lock()
	st, ok := r.channels[channelID]
	if !ok {
		st = &State{
			SessionID: uuid.NewString(),
			Channel:   ch,
			StartedAt: time.Now(),
		}
		r.channels[channelID] = st
	}
	r.mu.Unlock()

	st.mu.Lock()
	st.Channel = ch
	return st, st.mu.Unlock
}

// Reset drops all state for channelID.
func (r *Registry) Reset(channelID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, channelID)
}

// StartSession begins a roleplay session at turn. dgmChars is non-empty only
// for DGM scene setting; those characters join the scene immediately.
func (s *State) StartSession(turn int, ch ChannelContext, dgmChars []string) {
	s.IsRoleplaying = true
	s.SessionStartTurn = turn
	s.Channel = ch
	s.exitConditionCount = 0
	s.confidenceHistory = nil
	s.DGMInitiated = len(dgmChars) > 0
	s.DGMCharacters = dgmChars
	for _, c := range dgmChars {
		s.AddParticipant(c, "dgm_scene", turn)
	}
}

// EndSession ends the roleplay session, keeping channel identity but
// dropping scene state.
func (s *State) EndSession(reason string) {
	s.IsRoleplaying = false
	s.participants = nil
	s.turnHistory = nil
	s.confidenceHistory = nil
	s.exitConditionCount = 0
	s.ListeningMode = false
	s.ListeningTurnCount = 0
	s.DGMInitiated = false
	s.DGMCharacters = nil
	s.LastCharacterElsieAddressed = ""
	s.LastCharacterSpoke = ""
	_ = reason
}

// AddParticipant registers a character in the scene. Names are matched
// case-insensitively; re-adding an existing participant only refreshes
// LastTurn.
func (s *State) AddParticipant(name, source string, turn int) {
	for i := range s.participants {
		if strings.EqualFold(s.participants[i].Name, name) {
			s.participants[i].LastTurn = turn
			return
		}
	}
	s.participants = append(s.participants, Participant{
		Name: name, Source: source, FirstTurn: turn, LastTurn: turn,
	})
}

// Participants returns the scene roster in join order.
func (s *State) Participants() []Participant {
	out := make([]Participant, len(s.participants))
	copy(out, s.participants)
	return out
}

// MarkCharacterTurn records that speaker took turn no.
func (s *State) MarkCharacterTurn(no int, speaker string) {
	s.LastCharacterSpoke = speaker
	s.turnHistory = append(s.turnHistory, Turn{No: no, Speaker: speaker})
	if len(s.turnHistory) > turnHistorySize {
		s.turnHistory = s.turnHistory[len(s.turnHistory)-turnHistorySize:]
	}
	s.AddParticipant(speaker, "turn", no)
}

// TurnHistory returns the bounded turn history, oldest first.
func (s *State) TurnHistory() []Turn {
	out := make([]Turn, len(s.turnHistory))
	copy(out, s.turnHistory)
	return out
}

// MarkResponseTurn records that the bartender replied on turn no.
func (s *State) MarkResponseTurn(no int) {
	s.LastResponseTurn = no
	s.ListeningTurnCount = 0
}

// SetLastCharacterAddressed records whom the bartender last spoke to.
func (s *State) SetLastCharacterAddressed(name string) {
	s.LastCharacterElsieAddressed = name
}

// IsSimpleImplicitResponse reports whether a short bare message directly
// after the bartender addressed someone should read as that character's
// reply (e.g. Elsie asks Maeve a question, the next short line is Maeve's
// answer without brackets). The router layers the character-name check on
// top: a line naming someone else is never implicit.
func (s *State) IsSimpleImplicitResponse(currentTurn int, message string) bool {
	if s.LastCharacterElsieAddressed == "" {
		return false
	}
	if currentTurn-s.LastResponseTurn > 2 {
		return false
	}
	msg := strings.TrimSpace(message)
	if msg == "" || strings.ContainsAny(msg, "[]*") {
		return false
	}
	return len(strings.Fields(msg)) <= 12
}

// ShouldInterjectSubtleAction reports whether the bartender should add an
// ambient action this turn. The cadence window is every 5-8 turns in DGM
// scenes and 8-10 otherwise; a long silence (15/20 turns) forces it.
func (s *State) ShouldInterjectSubtleAction(turn int) bool {
	if !s.IsRoleplaying {
		return false
	}
	every, jitter, force := interjectEvery, interjectJitter, forceInterject
	if s.DGMInitiated {
		every, jitter, force = interjectEveryDGM, interjectJitterDGM, forceInterjectDGM
	}

	since := turn - s.LastInterjectionTurn
	if s.LastInterjectionTurn == 0 {
		since = turn - s.SessionStartTurn
	}
	silent := turn - s.LastResponseTurn

	if silent >= force {
		s.LastInterjectionTurn = turn
		return true
	}
	if since < every {
		return false
	}
	if since >= every+jitter {
		s.LastInterjectionTurn = turn
		return true
	}
	// Inside the window: spread interjections deterministically by turn
	// parity so scenes do not get a metronome.
	if (turn+len(s.participants))%2 == 0 {
		s.LastInterjectionTurn = turn
		return true
	}
	return false
}

// UpdateConfidence appends a roleplay-confidence score to the bounded
// history.
func (s *State) UpdateConfidence(score float64) {
	s.confidenceHistory = append(s.confidenceHistory, score)
	if len(s.confidenceHistory) > confidenceHistorySize {
		s.confidenceHistory = s.confidenceHistory[len(s.confidenceHistory)-confidenceHistorySize:]
	}
}

// RecordExitCondition counts one explicit exit signal.
func (s *State) RecordExitCondition() {
	s.exitConditionCount++
}

// CheckSustainedTopicShift reports whether the last three confidence scores
// were all below the shift threshold.
func (s *State) CheckSustainedTopicShift() bool {
	if len(s.confidenceHistory) < sustainedShiftWindow {
		return false
	}
	for _, c := range s.confidenceHistory[len(s.confidenceHistory)-sustainedShiftWindow:] {
		if c >= sustainedShiftThreshold {
			return false
		}
	}
	return true
}

// ShouldExitFromSustainedShift reports whether the session should end: a
// sustained topic shift or repeated explicit exit conditions.
func (s *State) ShouldExitFromSustainedShift() bool {
	return s.CheckSustainedTopicShift() || s.exitConditionCount >= exitConditionLimit
}
