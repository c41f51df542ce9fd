// Package content normalises raw wiki pages into the markdown form persisted
// by the store.
//
// A page flows through one of three paths:
//
//  1. Log pages (any category containing "log") go to the log parser and come
//     back as line-attributed transcripts.
//  2. Pages with parsed HTML get a structured document: title header, summary
//     from the intro extract, infobox information, a lead overview, then one
//     sub-section per declared wiki section. When structured extraction is
//     too thin, every substantial text node is aggregated instead.
//  3. Pages with only raw wikitext get a best-effort markup strip.
//
// The processor is pure: no I/O, safe for concurrent use.
package content

import (
	"fmt"
	"strings"

	"github.com/daedalus-fleet/elsie/internal/fleet"
	"github.com/daedalus-fleet/elsie/internal/logparse"
)

// minStructuredChars is the threshold below which structured HTML extraction
// is considered failed and the aggregation fallback runs.
const minStructuredChars = 200

// minIntroChars is the minimum extract/overview length worth a section.
const minIntroChars = 20

// PageData carries everything the processor may need for one page.
// HTML and Sections are optional; Wikitext is the fallback source.
type PageData struct {
	// Extract is the plain-text intro from the extracts API.
	Extract string

	// Wikitext is the raw page source from the revisions API.
	Wikitext string

	// HTML is the rendered page body from the parse API, when fetched.
	HTML string

	// Sections lists the declared section headings from the parse API.
	Sections []Section

	// Categories are the page's wiki categories.
	Categories []string
}

// Section is one declared wiki section heading.
type Section struct {
	// Line is the heading text.
	Line string

	// Level is the wiki heading level (2 for ==, 3 for ===, ...).
	Level int
}

// skippedSections lists headings excluded from structured documents.
var skippedSections = map[string]bool{
	"references":     true,
	"external links": true,
	"see also":       true,
}

// Processor renders pages to markdown.
type Processor struct {
	fleet     *fleet.Map
	logParser *logparse.Parser
}

// NewProcessor returns a Processor classifying against m.
func NewProcessor(m *fleet.Map) *Processor {
	return &Processor{
		fleet:     m,
		logParser: logparse.NewParser(m),
	}
}

// IsLogPage reports whether the categories route the page to the log parser.
func (p *Processor) IsLogPage(categories []string) bool {
	return p.fleet.IsLogCategory(categories)
}

// Process renders the page titled title to normalized markdown.
func (p *Processor) Process(title string, d PageData) string {
	if p.fleet.IsLogCategory(d.Categories) {
		return collapseNewlines(p.logParser.Parse(title, d.Wikitext))
	}

	var body string
	switch {
	case d.HTML != "":
		body = p.processHTML(title, d)
	case d.Wikitext != "":
		body = p.processWikitext(title, d)
	default:
		body = fmt.Sprintf("**%s**\n\n%s", title, strings.TrimSpace(d.Extract))
	}
	return collapseNewlines(body)
}

// processHTML builds the structured document, falling back to text
// aggregation when the structured form is too thin.
func (p *Processor) processHTML(title string, d PageData) string {
	doc, err := parseHTML(d.HTML)
	if err != nil {
		return p.processWikitext(title, d)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n\n", title)

	if intro := strings.TrimSpace(d.Extract); len(intro) >= minIntroChars {
		sb.WriteString("## Summary\n\n")
		sb.WriteString(intro)
		sb.WriteString("\n\n")
	}

	if info := extractInfobox(doc); info != "" {
		sb.WriteString("## Information\n\n")
		sb.WriteString(info)
		sb.WriteString("\n\n")
	}

	if overview := extractOverview(doc); len(overview) >= minIntroChars {
		sb.WriteString("## Overview\n\n")
		sb.WriteString(overview)
		sb.WriteString("\n\n")
	}

	for _, sec := range d.Sections {
		if skippedSections[strings.ToLower(strings.TrimSpace(sec.Line))] {
			continue
		}
		bodyText := extractSectionBody(doc, sec.Line)
		if bodyText == "" {
			continue
		}
		level := sec.Level
		if level < 2 {
			level = 2
		}
		sb.WriteString(strings.Repeat("#", level))
		sb.WriteString(" ")
		sb.WriteString(strings.TrimSpace(sec.Line))
		sb.WriteString("\n\n")
		sb.WriteString(bodyText)
		sb.WriteString("\n\n")
	}

	out := sb.String()
	if len(strings.TrimSpace(out)) < minStructuredChars {
		if agg := aggregateText(doc, title); len(agg) > len(out) {
			return agg
		}
	}
	return out
}
