package store

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/daedalus-fleet/elsie/internal/fleet"
	"github.com/daedalus-fleet/elsie/internal/query"
)

// Page is one stored wiki page (or one part of a chunked page).
type Page struct {
	ID      int64
	URL     string
	Title   string
	Content string

	// RawContent is the full normalized markdown for the whole page; part
	// rows all carry it so full-text search never misses a chunk.
	// ContentHash is the hex SHA-256 of exactly these bytes.
	RawContent  string
	ContentHash string

	PageType   string
	ShipName   string
	LogDate    *time.Time
	Categories []string
	Touched    string
	LastRevID  int64
}

// classify derives page_type, ship_name and log_date from the page's
// categories and title. Ambiguous pages land in general / General Information.
func (s *Store) classify(p *Page) {
	pt := s.fleet.ClassifyCategories(p.Categories)
	p.PageType = string(pt)

	if ship := s.fleet.ShipFromTitle(p.Title); ship != "" {
		p.ShipName = ship
	}
	if len(p.Categories) == 0 {
		p.Categories = []string{fleet.CategoryGeneral}
	}

	if pt == fleet.PageTypeMissionLog {
		if d, ok := query.DetectDate(p.Title); ok {
			p.LogDate = &d
		}
	}
}

var sentenceEndRe = regexp.MustCompile(`[.!?]\s+`)

// splitContent splits content into parts no longer than max characters.
// Split points are tried coarse to fine: "## " headings, "### " headings,
// paragraph breaks, sentence ends, and finally word boundaries. A part never
// breaks mid-word.
func splitContent(content string, max int) []string {
	if max <= 0 || len(content) <= max {
		return []string{content}
	}

	parts := []string{content}
	for _, sep := range []string{"\n## ", "\n### ", "\n\n"} {
		parts = resplit(parts, max, func(chunk string) []string {
			return splitOnSeparator(chunk, sep)
		})
	}
	parts = resplit(parts, max, splitSentences)
	parts = resplit(parts, max, func(chunk string) []string {
		return splitWords(chunk, max)
	})
	return parts
}

// resplit applies split to every part still over max and re-packs the pieces
// greedily so parts stay as large as possible.
func resplit(parts []string, max int, split func(string) []string) []string {
	var out []string
	for _, part := range parts {
		if len(part) <= max {
			out = append(out, part)
			continue
		}
		out = append(out, pack(split(part), max)...)
	}
	return out
}

// pack merges consecutive pieces while they fit under max together.
func pack(pieces []string, max int) []string {
	var out []string
	var cur strings.Builder
	for _, piece := range pieces {
		if cur.Len() > 0 && cur.Len()+len(piece) > max {
			out = append(out, cur.String())
			cur.Reset()
		}
		cur.WriteString(piece)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// splitOnSeparator splits keeping the separator attached to the piece that
// follows it, so headings stay with their sections.
func splitOnSeparator(chunk, sep string) []string {
	segs := strings.Split(chunk, sep)
	out := make([]string, 0, len(segs))
	for i, seg := range segs {
		if i > 0 {
			seg = sep + seg
		}
		out = append(out, seg)
	}
	return out
}

func splitSentences(chunk string) []string {
	ends := sentenceEndRe.FindAllStringIndex(chunk, -1)
	if len(ends) == 0 {
		return []string{chunk}
	}
	var out []string
	prev := 0
	for _, e := range ends {
		out = append(out, chunk[prev:e[1]])
		prev = e[1]
	}
	if prev < len(chunk) {
		out = append(out, chunk[prev:])
	}
	return out
}

// splitWords hard-splits at the last space before max; the backstop for
// degenerate content with no other split points. The space stays attached to
// the preceding piece so that re-packing pieces is lossless.
func splitWords(chunk string, max int) []string {
	var out []string
	for len(chunk) > max {
		cut := strings.LastIndex(chunk[:max], " ")
		if cut <= 0 {
			out = append(out, chunk[:max])
			chunk = chunk[max:]
			continue
		}
		out = append(out, chunk[:cut+1])
		chunk = chunk[cut+1:]
	}
	if chunk != "" {
		out = append(out, chunk)
	}
	return out
}

// partTitle names chunk k of n: "Title (Part 2/3)". Single-part pages keep
// the bare title.
func partTitle(title string, k, n int) string {
	if n <= 1 {
		return title
	}
	return fmt.Sprintf("%s (Part %d/%d)", title, k, n)
}

// partURL disambiguates chunk rows under the unique url constraint.
func partURL(url string, k, n int) string {
	if n <= 1 || k == 1 {
		return url
	}
	return fmt.Sprintf("%s#part-%d", url, k)
}
