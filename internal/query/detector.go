// Package query classifies user messages into retrieval buckets.
//
// The detectors are pure functions over the message text, composed in a
// fixed priority list; the first hit wins. All patterns are compiled at
// package load.
package query

import (
	"regexp"
	"strings"
	"time"

	"github.com/daedalus-fleet/elsie/internal/fleet"
)

// Kind is the classification bucket for a user message.
type Kind string

const (
	KindContinuation         Kind = "continuation"
	KindLogURL               Kind = "log_url"
	KindCharacter            Kind = "character"
	KindSpecificLog          Kind = "specific_log"
	KindTellMeAbout          Kind = "tell_me_about"
	KindStardancerInfo       Kind = "stardancer_info"
	KindStardancerCommand    Kind = "stardancer_command"
	KindShipLog              Kind = "ship_log"
	KindOOC                  Kind = "ooc"
	KindLog                  Kind = "log"
	KindFederationArchives   Kind = "federation_archives"
	KindShipPlusLog          Kind = "ship_plus_log"
	KindCharacterPlusLog     Kind = "character_plus_log"
	KindSimpleGreeting       Kind = "simple_greeting"
	KindSimpleFarewell       Kind = "simple_farewell"
	KindSimpleStatus         Kind = "simple_status"
	KindSimpleConversational Kind = "simple_conversational"
	KindMenuRequest          Kind = "menu_request"
	KindResetRequest         Kind = "reset_request"
	KindGeneral              Kind = "general"
)

// Selection names a log-selection predicate for specific-log queries.
type Selection string

const (
	SelectLatest    Selection = "latest"
	SelectFirst     Selection = "first"
	SelectRandom    Selection = "random"
	SelectToday     Selection = "today"
	SelectYesterday Selection = "yesterday"
	SelectThisWeek  Selection = "this_week"
	SelectLastWeek  Selection = "last_week"
)

// Result is the outcome of classification. Subject carries the character or
// topic when one was extracted; Ship the fleet ship; Selection the log
// predicate for specific-log queries.
type Result struct {
	Kind      Kind
	Subject   string
	Ship      string
	Selection Selection
	URL       string
	Date      time.Time
	HasDate   bool
}

var (
	urlRe          = regexp.MustCompile(`https?://\S+(?:/wiki/|index\.php\?title=)\S+`)
	continuationRe = regexp.MustCompile(`(?i)^(tell me more|more please|continue|go on|keep going|what else|anything else)\b`)
	oocRe          = regexp.MustCompile(`(?i)^\s*(\(\(|//|\[ooc\b|ooc:)`)
	archivesRe     = regexp.MustCompile(`(?i)\b(federation archives?|memory alpha|search the archives?|check the archives?)\b`)
	logWordRe      = regexp.MustCompile(`(?i)\blogs?\b`)
	selectionRe    = regexp.MustCompile(`(?i)\b(latest|most recent|newest|first|earliest|oldest|random|today(?:'s)?|yesterday(?:'s)?|this week(?:'s)?|last week(?:'s)?)\b`)
	tellMeAboutRe  = regexp.MustCompile(`(?i)^(?:tell me about|what do you know about|what is|what's|what are)\s+(.+?)[?.!]*$`)
	whoIsRe        = regexp.MustCompile(`(?i)\bwho(?:'s| is| was)\s+([A-Z][\w'-]*(?:\s+[A-Z][\w'-]*)?)`)
	rankedNameRe   = regexp.MustCompile(`\b(?:Captain|Commander|Lieutenant|Ensign|Doctor|Counselor|Chief)\s+([A-Z][\w'-]+)`)
	capitalNameRe  = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\b`)
	commandVerbRe  = regexp.MustCompile(`(?i)\b(set course|engage|report|scan|hail|dock|launch|divert|plot)\b`)
	greetingRe     = regexp.MustCompile(`(?i)^(hi|hiya|hello|hey|greetings|good (morning|afternoon|evening))[\s!,.]*(elsie[\s!,.]*)?$`)
	farewellRe     = regexp.MustCompile(`(?i)^(bye|goodbye|good ?night|see you( later)?|farewell|later)[\s!,.]*(elsie[\s!,.]*)?$`)
	statusRe       = regexp.MustCompile(`(?i)^(how are you|how's it going|you (ok|okay|alright)|status report)\b`)
	menuRe         = regexp.MustCompile(`(?i)\b(menu|what (do you have|have you got)( to drink)?|what's on tap|something to drink)\b`)
	resetRe        = regexp.MustCompile(`(?i)^(reset|start over|clear (the )?session|forget (all )?that)\b`)
)

// Conversational filler that deserves a light acknowledgment, not retrieval.
var conversationalWords = map[string]bool{
	"thanks": true, "thank": true, "ok": true, "okay": true, "cool": true,
	"nice": true, "sure": true, "yes": true, "no": true, "yeah": true,
	"nope": true, "lol": true, "haha": true, "wow": true, "hmm": true,
}

// Detector classifies messages. Fleet supplies ship names and the curated
// character list.
type Detector struct {
	fleet *fleet.Map
}

// NewDetector returns a Detector over the given fleet map.
func NewDetector(f *fleet.Map) *Detector {
	return &Detector{fleet: f}
}

// Detect runs the detector bank in priority order and returns the first hit.
// It never fails; the floor is KindGeneral.
func (d *Detector) Detect(message string) Result {
	msg := strings.TrimSpace(message)

	if resetRe.MatchString(msg) {
		return Result{Kind: KindResetRequest}
	}
	if menuRe.MatchString(msg) {
		return Result{Kind: KindMenuRequest}
	}
	if continuationRe.MatchString(msg) {
		return Result{Kind: KindContinuation}
	}
	if u := urlRe.FindString(msg); u != "" {
		return Result{Kind: KindLogURL, URL: u}
	}

	hasLog := logWordRe.MatchString(msg)
	ship := d.fleet.ShipFromTitle(msg)
	date, hasDate := DetectDate(msg)

	if hasLog {
		if name := d.knownCharacterIn(msg); name != "" {
			return Result{Kind: KindCharacterPlusLog, Subject: name, Ship: ship, Date: date, HasDate: hasDate}
		}
		if sel, ok := detectSelection(msg); ok {
			return Result{Kind: KindSpecificLog, Ship: ship, Selection: sel, Date: date, HasDate: hasDate}
		}
		if ship != "" {
			if shipLogAdjacent(msg, ship) {
				return Result{Kind: KindShipLog, Ship: ship, Date: date, HasDate: hasDate}
			}
			return Result{Kind: KindShipPlusLog, Ship: ship, Date: date, HasDate: hasDate}
		}
	}

	// Character beats ship-log, tell-me-about, archives, ooc and generic log,
	// but any ship indicator in the message disqualifies it.
	if ship == "" {
		if name, ok := d.detectCharacter(msg); ok {
			return Result{Kind: KindCharacter, Subject: name}
		}
	}

	if ship != "" && !hasLog {
		if strings.EqualFold(ship, "Stardancer") {
			if commandVerbRe.MatchString(msg) {
				return Result{Kind: KindStardancerCommand, Ship: ship}
			}
			return Result{Kind: KindStardancerInfo, Ship: ship}
		}
		return Result{Kind: KindTellMeAbout, Subject: ship, Ship: ship}
	}

	if m := tellMeAboutRe.FindStringSubmatch(msg); m != nil {
		return Result{Kind: KindTellMeAbout, Subject: strings.TrimSpace(m[1])}
	}
	if archivesRe.MatchString(msg) {
		return Result{Kind: KindFederationArchives, Subject: archiveSubject(msg)}
	}
	if oocRe.MatchString(msg) {
		return Result{Kind: KindOOC}
	}
	if hasLog {
		return Result{Kind: KindLog, Date: date, HasDate: hasDate}
	}

	if greetingRe.MatchString(msg) {
		return Result{Kind: KindSimpleGreeting}
	}
	if farewellRe.MatchString(msg) {
		return Result{Kind: KindSimpleFarewell}
	}
	if statusRe.MatchString(msg) {
		return Result{Kind: KindSimpleStatus}
	}
	if isConversational(msg) {
		return Result{Kind: KindSimpleConversational}
	}

	return Result{Kind: KindGeneral}
}

// detectCharacter matches the curated name list, ranked-title patterns, and
// "who is" context clues. Capitalized n-grams count only when the n-gram is a
// known character; bare capitalization is too noisy on its own.
func (d *Detector) detectCharacter(msg string) (string, bool) {
	if m := whoIsRe.FindStringSubmatch(msg); m != nil {
		name := strings.TrimSpace(m[1])
		if canonical := d.fleet.ResolveCharacterName(name, ""); canonical != fleet.Unknown {
			return canonical, true
		}
		return name, true
	}
	if m := rankedNameRe.FindStringSubmatch(msg); m != nil {
		if canonical := d.fleet.ResolveCharacterName(m[1], ""); canonical != fleet.Unknown {
			return canonical, true
		}
		return m[1], true
	}
	if name := d.knownCharacterIn(msg); name != "" {
		return name, true
	}
	return "", false
}

// knownCharacterIn returns the first curated character whose name appears as
// a capitalized token sequence in msg. The bartender's own name never counts;
// "hello Elsie" is a greeting, not a lookup.
func (d *Detector) knownCharacterIn(msg string) string {
	for _, m := range capitalNameRe.FindAllString(msg, -1) {
		canonical := d.fleet.ResolveCharacterName(m, "")
		if canonical == fleet.Unknown || canonical == "Elsie" {
			continue
		}
		return canonical
	}
	return ""
}

func detectSelection(msg string) (Selection, bool) {
	m := selectionRe.FindString(msg)
	if m == "" {
		return "", false
	}
	switch strings.ToLower(strings.TrimSuffix(m, "'s")) {
	case "latest", "most recent", "newest":
		return SelectLatest, true
	case "first", "earliest", "oldest":
		return SelectFirst, true
	case "random":
		return SelectRandom, true
	case "today":
		return SelectToday, true
	case "yesterday":
		return SelectYesterday, true
	case "this week":
		return SelectThisWeek, true
	case "last week":
		return SelectLastWeek, true
	}
	return "", false
}

// shipLogAdjacent reports whether msg contains "<ship> log(s)" directly.
func shipLogAdjacent(msg, ship string) bool {
	re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(ship) + `(?:'s)?\s+(?:mission\s+)?logs?\b`)
	return re.MatchString(msg)
}

// archiveSubject strips the archive request phrasing, leaving the topic.
func archiveSubject(msg string) string {
	s := archivesRe.ReplaceAllString(msg, "")
	s = regexp.MustCompile(`(?i)\b(please|for|about|on|look up|search|check|the|in)\b`).ReplaceAllString(s, "")
	return strings.Trim(strings.Join(strings.Fields(s), " "), " ?.!,")
}

func isConversational(msg string) bool {
	words := strings.Fields(strings.ToLower(strings.Trim(msg, " ?.!,")))
	if len(words) == 0 || len(words) > 3 {
		return false
	}
	for _, w := range words {
		if !conversationalWords[strings.Trim(w, ".,!?")] {
			return false
		}
	}
	return true
}
