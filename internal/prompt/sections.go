// Package prompt composes LLM prompts and canned replies for the bartender.
//
// A prompt stays a structured list of sections until the final flatten, so
// accuracy instructions can be inserted and truncation can drop low-priority
// sections to fit the model's context budget.
package prompt

import "strings"

// Section priorities, highest first. Truncation removes content from the
// low end: conversation history goes before retrieved context, retrieved
// context before instructions, and the persona header never goes.
const (
	PriorityPersona      = 100
	PriorityDirective    = 90
	PriorityInstructions = 80
	PriorityStrategy     = 60
	PriorityContext      = 40
	PriorityHistory      = 20
)

// Section is one identified block of the prompt.
type Section struct {
	Tag      string
	Priority int
	Content  string
}

// TokenEstimator approximates how many model tokens a string costs.
type TokenEstimator interface {
	Estimate(s string) int
}

// CharEstimator estimates tokens as len/4, the usual rough cut for English
// prose. Good enough for budget truncation; never used for billing.
type CharEstimator struct{}

func (CharEstimator) Estimate(s string) int { return len(s) / 4 }

// Prompt is an ordered section list.
type Prompt struct {
	sections []Section
}

// Add appends a section; empty content is dropped.
func (p *Prompt) Add(tag string, priority int, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	p.sections = append(p.sections, Section{Tag: tag, Priority: priority, Content: content})
}

// Flatten renders the prompt within budget tokens. Sections keep insertion
// order; when over budget the lowest-priority sections are dropped whole,
// ties resolved against the later section. A non-positive budget disables
// truncation.
func (p *Prompt) Flatten(est TokenEstimator, budget int) string {
	kept := make([]bool, len(p.sections))
	total := 0
	for i, s := range p.sections {
		kept[i] = true
		total += est.Estimate(s.Content)
	}

	for budget > 0 && total > budget {
		drop := -1
		for i := range p.sections {
			if !kept[i] {
				continue
			}
			if drop == -1 || p.sections[i].Priority <= p.sections[drop].Priority {
				drop = i
			}
		}
		if drop == -1 || p.sections[drop].Priority >= PriorityPersona {
			break
		}
		kept[drop] = false
		total -= est.Estimate(p.sections[drop].Content)
	}

	var sb strings.Builder
	for i, s := range p.sections {
		if !kept[i] {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(s.Content)
	}
	return sb.String()
}

// Has reports whether a section with tag survived insertion.
func (p *Prompt) Has(tag string) bool {
	for _, s := range p.sections {
		if s.Tag == tag {
			return true
		}
	}
	return false
}
