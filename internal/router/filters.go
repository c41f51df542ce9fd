package router

import (
	"log/slog"
	"regexp"
	"strings"
)

var (
	emoteLineRe  = regexp.MustCompile(`\*[^*\n]+\*`)
	blankRunsRe  = regexp.MustCompile(`\n{3,}`)
	doubleSpaces = regexp.MustCompile(`[ \t]{2,}`)
)

// defaultMeetingPattern matches out-of-world scheduling chatter (game nights,
// session times) that must never surface in an in-character reply.
const defaultMeetingPattern = `(?i)\b(game night|next (game|session|meeting)|meeting (schedule|is scheduled|at|on)|session (is )?scheduled)\b`

// StripEmotes removes *action* beats from a reply. Used on out-of-character
// answers, where bartender stage business reads as noise.
func StripEmotes(reply string) string {
	out := emoteLineRe.ReplaceAllString(reply, "")
	out = doubleSpaces.ReplaceAllString(out, " ")
	out = blankRunsRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// StripMeetingSchedule returns a filter that drops reply lines matching
// pattern. An empty pattern uses the built-in default; an invalid pattern
// disables the filter with a warning rather than silencing replies.
func StripMeetingSchedule(pattern string) PostFilter {
	if pattern == "" {
		pattern = defaultMeetingPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		slog.Warn("meeting schedule pattern invalid, filter disabled", "pattern", pattern, "err", err)
		return func(reply string) string { return reply }
	}
	return func(reply string) string {
		lines := strings.Split(reply, "\n")
		kept := make([]string, 0, len(lines))
		for _, line := range lines {
			if re.MatchString(line) {
				continue
			}
			kept = append(kept, line)
		}
		out := blankRunsRe.ReplaceAllString(strings.Join(kept, "\n"), "\n\n")
		return strings.TrimSpace(out)
	}
}

// ApplyPostFilters runs filters over reply in order.
func ApplyPostFilters(reply string, filters []PostFilter) string {
	for _, f := range filters {
		reply = f(reply)
	}
	return reply
}
