package prompt

import (
	"time"

	"github.com/daedalus-fleet/elsie/internal/decision"
	"github.com/daedalus-fleet/elsie/internal/query"
)

// Strategy selects how the builder assembles the prompt. It is a closed sum;
// the builder pattern-matches on the concrete type.
type Strategy interface{ strategy() }

// HistoryTurn is one prior conversation turn given to the builder.
type HistoryTurn struct {
	Role    string
	Content string
}

// RoleplayActive builds an in-scene response prompt.
type RoleplayActive struct {
	UserMessage  string
	Decision     decision.Decision
	Participants []string
	Triggers     []string
	Confidence   float64
	History      []HistoryTurn
	SceneSetting string
}

// RoleplayListening builds a subtle ambient-action prompt while the
// bartender stays in the background.
type RoleplayListening struct {
	Participants []string
	SceneSetting string
	History      []HistoryTurn
}

// FocusedContinuation continues the previous topic ("tell me more").
type FocusedContinuation struct {
	UserMessage string
	Topic       string
	History     []HistoryTurn
}

// Character answers a who-is question from the personnel pages.
type Character struct {
	Name        string
	UserMessage string
}

// FederationArchives answers from the external archive.
type FederationArchives struct {
	Topic string
}

// Logs retrieves mission logs by selection predicate.
type Logs struct {
	Selection query.Selection
	Ship      string
	Date      time.Time
}

// TellMeAbout answers a general knowledge question from the wiki.
type TellMeAbout struct {
	Topic       string
	UserMessage string
}

// StardancerInfo describes the flagship.
type StardancerInfo struct {
	UserMessage string
}

// StardancerCommand handles in-character commands addressed to the ship.
type StardancerCommand struct {
	Command string
}

// ShipLogs retrieves a specific ship's logs.
type ShipLogs struct {
	Ship string
}

// OOC answers out-of-character questions; Earth dates stay unconverted.
type OOC struct {
	UserMessage string
	History     []HistoryTurn
}

// GeneralWithContext is the fallback conversational prompt.
type GeneralWithContext struct {
	UserMessage string
	History     []HistoryTurn
}

func (RoleplayActive) strategy()      {}
func (RoleplayListening) strategy()   {}
func (FocusedContinuation) strategy() {}
func (Character) strategy()           {}
func (FederationArchives) strategy()  {}
func (Logs) strategy()                {}
func (TellMeAbout) strategy()         {}
func (StardancerInfo) strategy()      {}
func (StardancerCommand) strategy()   {}
func (ShipLogs) strategy()            {}
func (OOC) strategy()                 {}
func (GeneralWithContext) strategy()  {}
