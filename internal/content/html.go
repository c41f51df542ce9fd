package content

import (
	"strings"

	"golang.org/x/net/html"
)

// stripClasses marks container classes removed before any text extraction:
// infoboxes are rendered separately, navboxes and TOCs are navigation chrome.
var stripClasses = []string{"portable-infobox", "infobox", "navbox", "toc", "navigation"}

// metaPrefixes are wiki namespace prefixes excluded from aggregated text.
var metaPrefixes = []string{"Category:", "File:", "Template:"}

func parseHTML(src string) (*html.Node, error) {
	return html.Parse(strings.NewReader(src))
}

// hasClass reports whether n carries class (exact token match).
func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, token := range strings.Fields(a.Val) {
			if token == class {
				return true
			}
		}
	}
	return false
}

// findNode returns the first element in document order matching pred.
func findNode(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, pred); found != nil {
			return found
		}
	}
	return nil
}

// nodeText collects the concatenated text content of n, normalising
// whitespace runs to single spaces.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// isStripped reports whether n is one of the chrome containers excluded from
// overview and aggregation passes.
func isStripped(n *html.Node) bool {
	for _, class := range stripClasses {
		if hasClass(n, class) {
			return true
		}
	}
	return false
}

// extractInfobox finds the page infobox, either a portable-infobox aside or a
// classic infobox table, and renders its rows as "label: value" lines.
func extractInfobox(doc *html.Node) string {
	box := findNode(doc, func(n *html.Node) bool {
		return (n.Data == "aside" && hasClass(n, "portable-infobox")) ||
			(n.Data == "table" && hasClass(n, "infobox"))
	})
	if box == nil {
		return ""
	}

	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "tr":
				if row := rowText(n); row != "" {
					lines = append(lines, row)
				}
				return
			case "div", "h3":
				// Portable infoboxes nest label/value pairs in data divs.
				if hasClass(n, "pi-item") || hasClass(n, "pi-data") {
					if row := piDataText(n); row != "" {
						lines = append(lines, row)
					}
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(box)

	if len(lines) == 0 {
		if text := nodeText(box); text != "" {
			return text
		}
	}
	return strings.Join(lines, "\n")
}

// rowText renders one infobox table row as "header: cells".
func rowText(tr *html.Node) string {
	var header, value []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.Data {
		case "th":
			if t := nodeText(c); t != "" {
				header = append(header, t)
			}
		case "td":
			if t := nodeText(c); t != "" {
				value = append(value, t)
			}
		}
	}
	h := strings.Join(header, " ")
	v := strings.Join(value, " ")
	switch {
	case h != "" && v != "":
		return h + ": " + v
	case v != "":
		return v
	default:
		return h
	}
}

// piDataText renders one portable-infobox data item as "label: value".
func piDataText(n *html.Node) string {
	label := findNode(n, func(c *html.Node) bool { return hasClass(c, "pi-data-label") })
	value := findNode(n, func(c *html.Node) bool { return hasClass(c, "pi-data-value") })
	switch {
	case label != nil && value != nil:
		return nodeText(label) + ": " + nodeText(value)
	case value != nil:
		return nodeText(value)
	case label != nil:
		return nodeText(label)
	default:
		return nodeText(n)
	}
}

// extractOverview collects leading paragraph content from the main body:
// top-level <p>/<div> text of at least minIntroChars, stopping at the first
// heading, with chrome containers skipped.
func extractOverview(doc *html.Node) string {
	body := findNode(doc, func(n *html.Node) bool { return n.Data == "body" })
	if body == nil {
		body = doc
	}
	// The parse API wraps content in a single container div.
	content := body
	if c := findNode(body, func(n *html.Node) bool {
		return n.Data == "div" && (hasClass(n, "mw-parser-output") || hasClass(n, "mw-content-text"))
	}); c != nil {
		content = c
	}

	var parts []string
	for c := content.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if isHeading(c) {
			break
		}
		if isStripped(c) {
			continue
		}
		if c.Data == "p" || c.Data == "div" {
			if t := nodeText(c); len(t) >= minIntroChars {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// extractSectionBody finds the heading whose text equals line and collects
// the text of its sibling elements up to the next heading.
func extractSectionBody(doc *html.Node, line string) string {
	want := strings.TrimSpace(line)
	heading := findNode(doc, func(n *html.Node) bool {
		return isHeading(n) && strings.EqualFold(nodeText(n), want)
	})
	if heading == nil {
		return ""
	}

	var parts []string
	for sib := heading.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type != html.ElementNode {
			continue
		}
		if isHeading(sib) {
			break
		}
		if isStripped(sib) {
			continue
		}
		if t := nodeText(sib); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}

func isHeading(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

// aggregateText is the last-resort HTML pass: every <p>/<div>/<li>/<dd>/<td>
// with at least 15 characters of text, excluding navigation chrome and wiki
// namespace links.
func aggregateText(doc *html.Node, title string) string {
	const minFragment = 15

	var parts []string
	seen := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if isStripped(n) {
				return
			}
			switch n.Data {
			case "p", "div", "li", "dd", "td":
				t := nodeText(n)
				if len(t) >= minFragment && !isMetaText(t) && !seen[t] {
					// Only keep leaf-ish fragments: a div whose text is just
					// the concatenation of already-kept children adds noise,
					// so prefer the shortest nodes by walking children first.
					hasBlockChild := false
					for c := n.FirstChild; c != nil; c = c.NextSibling {
						if c.Type == html.ElementNode {
							switch c.Data {
							case "p", "div", "li", "dd", "td", "ul", "dl", "table":
								hasBlockChild = true
							}
						}
					}
					if !hasBlockChild {
						seen[t] = true
						parts = append(parts, t)
						return
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var sb strings.Builder
	sb.WriteString("**")
	sb.WriteString(title)
	sb.WriteString("**\n\n")
	sb.WriteString(strings.Join(parts, "\n\n"))
	return sb.String()
}

// isMetaText rejects namespace-prefixed and navigation-like fragments.
func isMetaText(t string) bool {
	for _, prefix := range metaPrefixes {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	lower := strings.ToLower(t)
	return strings.HasPrefix(lower, "jump to") || strings.HasPrefix(lower, "retrieved from")
}
