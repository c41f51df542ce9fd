package fleet

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Unknown is returned by [Resolver.Resolve] when a name matches no canonical
// character through any lookup stage.
const Unknown = "Unknown"

// phoneticThreshold is the minimum Jaro-Winkler score for a phonetic
// candidate to be accepted as a canonical match.
const phoneticThreshold = 0.88

// Resolver maps raw transcript speaker names to canonical character names.
//
// Lookup order:
//  1. Ship-specific correction table (when shipContext names a known ship).
//  2. Global correction table.
//  3. Exact match against a canonical name (already-canonical input).
//  4. Phonetic fallback: Double Metaphone overlap ranked by Jaro-Winkler,
//     against the canonical names from both tables.
//
// GM handles (anything containing "@") are never resolved; the caller keeps
// them literal. A Resolver is read-only after construction.
type Resolver struct {
	shipTables map[string]map[string]string
	global     map[string]string
	canonical  []string
}

func newResolver(cfg Config) *Resolver {
	r := &Resolver{
		shipTables: make(map[string]map[string]string, len(cfg.Corrections)),
		global:     make(map[string]string, len(cfg.GlobalCorrections)),
	}
	for ship, table := range cfg.Corrections {
		lowered := make(map[string]string, len(table))
		for raw, canonical := range table {
			lowered[strings.ToLower(raw)] = canonical
		}
		r.shipTables[strings.ToLower(ship)] = lowered
	}
	for raw, canonical := range cfg.GlobalCorrections {
		r.global[strings.ToLower(raw)] = canonical
	}

	seen := make(map[string]struct{})
	add := func(canonical string) {
		if _, ok := seen[canonical]; !ok {
			seen[canonical] = struct{}{}
			r.canonical = append(r.canonical, canonical)
		}
	}
	for _, table := range cfg.Corrections {
		for _, canonical := range table {
			add(canonical)
		}
	}
	for _, canonical := range cfg.GlobalCorrections {
		add(canonical)
	}
	return r
}

// Resolve returns the canonical name for name, or [Unknown].
func (r *Resolver) Resolve(name, shipContext string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Unknown
	}
	// Handles stay literal by contract; the log parser keeps them as-is.
	if strings.Contains(trimmed, "@") {
		return Unknown
	}
	lower := strings.ToLower(trimmed)

	if table, ok := r.shipTables[strings.ToLower(shipContext)]; ok {
		if canonical, ok := table[lower]; ok {
			return canonical
		}
	}
	if canonical, ok := r.global[lower]; ok {
		return canonical
	}
	for _, canonical := range r.canonical {
		if strings.EqualFold(canonical, trimmed) {
			return canonical
		}
	}
	if canonical, ok := r.phoneticMatch(lower); ok {
		return canonical
	}
	return Unknown
}

// knownHandle returns the canonical name for a bare lowercase word, checking
// the correction tables and canonical name tokens. Unlike [Resolver.Resolve]
// it never falls back to phonetics: a single mid-sentence word is too weak a
// signal for a fuzzy match.
func (r *Resolver) knownHandle(word string) string {
	if canonical, ok := r.global[word]; ok {
		return canonical
	}
	for _, table := range r.shipTables {
		if canonical, ok := table[word]; ok {
			return canonical
		}
	}
	for _, canonical := range r.canonical {
		for _, token := range strings.Fields(strings.ToLower(canonical)) {
			if token == word {
				return canonical
			}
		}
	}
	return ""
}

// phoneticMatch finds the best canonical candidate whose Double Metaphone
// codes overlap with the input, ranked by Jaro-Winkler similarity on the
// first name token. Multi-word canonical names match on any token.
func (r *Resolver) phoneticMatch(lower string) (string, bool) {
	primary, secondary := matchr.DoubleMetaphone(lower)
	if primary == "" && secondary == "" {
		return "", false
	}

	var (
		best      string
		bestScore float64
	)
	for _, canonical := range r.canonical {
		for _, token := range strings.Fields(strings.ToLower(canonical)) {
			tp, ts := matchr.DoubleMetaphone(token)
			if !codesOverlap(primary, secondary, tp, ts) {
				continue
			}
			score := matchr.JaroWinkler(lower, token, true)
			if score > bestScore {
				best, bestScore = canonical, score
			}
		}
	}
	if bestScore >= phoneticThreshold {
		return best, true
	}
	return "", false
}

func codesOverlap(a1, a2, b1, b2 string) bool {
	if a1 != "" && (a1 == b1 || a1 == b2) {
		return true
	}
	if a2 != "" && (a2 == b1 || a2 == b2) {
		return true
	}
	return false
}
