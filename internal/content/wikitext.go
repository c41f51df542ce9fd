package content

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	templateRe   = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	fileLinkRe   = regexp.MustCompile(`\[\[(?:File|Image|Category):[^\]]*\]\]`)
	pipedLinkRe  = regexp.MustCompile(`\[\[[^\]|]*\|([^\]]+)\]\]`)
	plainLinkRe  = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	extLinkRe    = regexp.MustCompile(`\[\S+ ([^\]]+)\]`)
	refBlockRe   = regexp.MustCompile(`(?s)<ref[^>]*>.*?</ref>`)
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	headingRe    = regexp.MustCompile(`^(={1,4})\s*(.+?)\s*=*\s*$`)
	newlineRunRe = regexp.MustCompile(`\n{3,}`)
)

// processWikitext renders raw wikitext to markdown without an HTML pass:
// templates, file links, and category links are dropped; internal and
// external links collapse to their display text; emphasis, refs, and HTML
// tags are stripped; = headings up to level 4 become markdown headings.
func (p *Processor) processWikitext(title string, d PageData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n\n", title)

	if intro := strings.TrimSpace(d.Extract); len(intro) >= minIntroChars {
		sb.WriteString("## Summary\n\n")
		sb.WriteString(intro)
		sb.WriteString("\n\n")
	}

	text := d.Wikitext
	// Nested templates unwrap one level per pass.
	for range 4 {
		if !strings.Contains(text, "{{") {
			break
		}
		text = templateRe.ReplaceAllString(text, "")
	}
	text = refBlockRe.ReplaceAllString(text, "")
	text = fileLinkRe.ReplaceAllString(text, "")
	text = pipedLinkRe.ReplaceAllString(text, "$1")
	text = plainLinkRe.ReplaceAllString(text, "$1")
	text = extLinkRe.ReplaceAllString(text, "$1")
	text = strings.ReplaceAll(text, "'''", "")
	text = strings.ReplaceAll(text, "''", "")
	text = htmlTagRe.ReplaceAllString(text, "")

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := headingRe.FindStringSubmatch(line); m != nil {
			level := len(m[1])
			if level < 2 {
				level = 2
			}
			heading := strings.TrimSpace(strings.Trim(m[2], "="))
			if heading == "" || skippedSections[strings.ToLower(heading)] {
				continue
			}
			sb.WriteString("\n")
			sb.WriteString(strings.Repeat("#", level))
			sb.WriteString(" ")
			sb.WriteString(heading)
			sb.WriteString("\n\n")
			continue
		}
		// Bullets, definitions, and trivia-length fragments add noise.
		if strings.HasPrefix(line, "*") || strings.HasPrefix(line, "#") ||
			strings.HasPrefix(line, ";") || strings.HasPrefix(line, ":") {
			continue
		}
		if len(line) < 10 {
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\n\n")
	}

	return sb.String()
}

// collapseNewlines normalises runs of three or more newlines to exactly two
// and trims surrounding whitespace.
func collapseNewlines(s string) string {
	return strings.TrimSpace(newlineRunRe.ReplaceAllString(s, "\n\n"))
}
