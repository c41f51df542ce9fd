// Package fleet holds the declarative knowledge about the fleet wiki that the
// rest of Elsie depends on: which categories mark mission logs, which pages
// describe ships or personnel, which ship names exist, and how raw speaker
// names from log transcripts map to canonical character names.
//
// The package is a leaf: it performs no I/O and depends on nothing else in
// the module. All values are injectable so that deployments tracking a
// different fleet wiki can override them from configuration.
package fleet

import (
	"slices"
	"strings"
)

// PageType classifies a wiki page for retrieval purposes.
type PageType string

const (
	PageTypeMissionLog PageType = "mission_log"
	PageTypeShipInfo   PageType = "ship_info"
	PageTypePersonnel  PageType = "personnel"
	PageTypeLocation   PageType = "location"
	PageTypeGeneral    PageType = "general"
)

// CategoryGeneral is the fallback category assigned when classification
// yields nothing. Pages never persist with an empty category set.
const CategoryGeneral = "General Information"

// Config is the injectable fleet knowledge. Zero-value fields fall back to
// the compiled-in defaults from [DefaultConfig].
type Config struct {
	// Ships lists the fleet ship names used for title inference and
	// ship-scoped searches.
	Ships []string `yaml:"ships"`

	// ShipLogCategories lists the category strings that mark mission-log
	// pages in category-guided searches (e.g. "Stardancer Logs").
	ShipLogCategories []string `yaml:"ship_log_categories"`

	// CharacterCategories lists categories that mark personnel pages.
	CharacterCategories []string `yaml:"character_categories"`

	// ShipCategories lists categories that mark ship-info pages.
	ShipCategories []string `yaml:"ship_categories"`

	// Corrections maps a ship name to its transcript speaker-correction
	// table (raw name, lowercase → canonical name). Consulted before the
	// global table so per-ship handle conventions win.
	Corrections map[string]map[string]string `yaml:"corrections"`

	// GlobalCorrections is the fleet-wide fallback correction table.
	GlobalCorrections map[string]string `yaml:"global_corrections"`
}

// Map answers category and name questions for one fleet configuration.
// A Map is read-only after construction and safe for concurrent use.
type Map struct {
	cfg      Config
	resolver *Resolver
}

// New builds a Map from cfg, filling empty fields from [DefaultConfig].
func New(cfg Config) *Map {
	def := DefaultConfig()
	if len(cfg.Ships) == 0 {
		cfg.Ships = def.Ships
	}
	if len(cfg.ShipLogCategories) == 0 {
		cfg.ShipLogCategories = def.ShipLogCategories
	}
	if len(cfg.CharacterCategories) == 0 {
		cfg.CharacterCategories = def.CharacterCategories
	}
	if len(cfg.ShipCategories) == 0 {
		cfg.ShipCategories = def.ShipCategories
	}
	if cfg.Corrections == nil {
		cfg.Corrections = def.Corrections
	}
	if cfg.GlobalCorrections == nil {
		cfg.GlobalCorrections = def.GlobalCorrections
	}
	return &Map{cfg: cfg, resolver: newResolver(cfg)}
}

// Default returns a Map built entirely from the compiled-in defaults.
func Default() *Map { return New(Config{}) }

// Ships returns the fleet ship-name list.
func (m *Map) Ships() []string { return m.cfg.Ships }

// ShipLogCategories returns the category strings marking mission-log pages.
func (m *Map) ShipLogCategories() []string { return m.cfg.ShipLogCategories }

// IsLogCategory reports whether any category in cats marks a log page.
// The check is substring-based: any category containing "log"
// (case-insensitive) routes the page to the log parser.
func (m *Map) IsLogCategory(cats []string) bool {
	for _, c := range cats {
		if strings.Contains(strings.ToLower(c), "log") {
			return true
		}
	}
	return false
}

// ShipFromTitle infers the fleet ship a page belongs to by scanning the
// title for any known ship name. Returns "" when no ship matches.
func (m *Map) ShipFromTitle(title string) string {
	lower := strings.ToLower(title)
	for _, ship := range m.cfg.Ships {
		if strings.Contains(lower, strings.ToLower(ship)) {
			return ship
		}
	}
	return ""
}

// ContainsShipName reports whether text mentions any fleet ship.
func (m *Map) ContainsShipName(text string) bool {
	return m.ShipFromTitle(text) != ""
}

// ConvertPageTypeToCategories maps a page type (and optional ship) to the
// category list older searches filtered on. Kept for backward-compatible
// retrieval against rows ingested before category tagging existed.
func (m *Map) ConvertPageTypeToCategories(pt PageType, ship string) []string {
	switch pt {
	case PageTypeMissionLog:
		if ship != "" {
			cat := ship + " Logs"
			if slices.Contains(m.cfg.ShipLogCategories, cat) {
				return []string{cat}
			}
		}
		return slices.Clone(m.cfg.ShipLogCategories)
	case PageTypeShipInfo:
		return slices.Clone(m.cfg.ShipCategories)
	case PageTypePersonnel:
		return slices.Clone(m.cfg.CharacterCategories)
	case PageTypeLocation:
		return []string{"Locations"}
	default:
		return []string{CategoryGeneral}
	}
}

// ClassifyCategories derives a page type from raw wiki categories.
// Log categories win over ship and character categories; anything
// unrecognised is general.
func (m *Map) ClassifyCategories(cats []string) PageType {
	if m.IsLogCategory(cats) {
		return PageTypeMissionLog
	}
	for _, c := range cats {
		if slices.Contains(m.cfg.ShipCategories, c) {
			return PageTypeShipInfo
		}
	}
	for _, c := range cats {
		if slices.Contains(m.cfg.CharacterCategories, c) {
			return PageTypePersonnel
		}
	}
	for _, c := range cats {
		if strings.EqualFold(c, "Locations") || strings.Contains(strings.ToLower(c), "location") {
			return PageTypeLocation
		}
	}
	return PageTypeGeneral
}

// ResolveCharacterName maps a raw speaker name from a transcript to its
// canonical form. See [Resolver.Resolve] for the lookup order.
func (m *Map) ResolveCharacterName(name, shipContext string) string {
	return m.resolver.Resolve(name, shipContext)
}

// KnownCharacters returns every canonical character name present in the
// correction tables, deduplicated and sorted.
func (m *Map) KnownCharacters() []string {
	seen := make(map[string]struct{})
	for _, table := range m.cfg.Corrections {
		for _, canonical := range table {
			seen[canonical] = struct{}{}
		}
	}
	for _, canonical := range m.cfg.GlobalCorrections {
		seen[canonical] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// IsKnownCharacter reports whether name resolves to a canonical character.
func (m *Map) IsKnownCharacter(name, shipContext string) bool {
	return m.resolver.Resolve(name, shipContext) != Unknown
}

// MentionsOtherCharacter reports whether text names a known character whose
// canonical name is not in exclude. Matching is word-based and
// case-insensitive over the correction tables, so "ask Zarina" counts even
// without a surname. Used to keep a short bare message from being read as a
// reply by whoever the bot last addressed when it plainly speaks about
// someone else.
func (m *Map) MentionsOtherCharacter(text string, exclude ...string) bool {
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		if e != "" {
			skip[strings.ToLower(e)] = struct{}{}
		}
	}
	for _, raw := range strings.Fields(text) {
		word := strings.ToLower(strings.Trim(raw, `.,!?;:"'()`))
		if word == "" {
			continue
		}
		canonical := m.resolver.knownHandle(word)
		if canonical == "" {
			continue
		}
		if _, excluded := skip[strings.ToLower(canonical)]; !excluded {
			return true
		}
	}
	return false
}
