package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/daedalus-fleet/elsie/internal/fleet"
	"github.com/daedalus-fleet/elsie/internal/query"
	"github.com/daedalus-fleet/elsie/internal/store"
)

// personaHeader opens every prompt. It never falls to truncation.
const personaHeader = `You are Elsie, the holographic bartender of Ten Forward aboard the USS Stardancer.
You are warm, observant, and discreet. You keep the bar, remember your regulars,
and know the fleet's history through its wiki. You speak in first person, stay
in character, and never mention being an AI system, a database, or a prompt.`

// noInfoTemplate is the retrieval fallback. It must instruct the model to
// admit the gap and must forbid invention.
const noInfoTemplate = `No information about "%s" was found in the ship's records or the Federation archives.
Tell the guest honestly that you don't have anything on that topic.
Do NOT invent facts, dates, names, or events. Admitting you don't know is the correct answer.`

// Searcher is the slice of the store the builder reads from.
type Searcher interface {
	SearchPages(ctx context.Context, q string, opts store.SearchOptions) ([]store.Page, error)
	GetRecentLogs(ctx context.Context, ship string, limit int) ([]store.Page, error)
	GetSelectedLogs(ctx context.Context, sel query.Selection, ship string, limit int) ([]store.Page, error)
}

// Archiver is the external archive fallback; an empty result means no hit.
type Archiver interface {
	Search(ctx context.Context, query string, limit int, tagAsArchive bool) string
}

// Builder assembles prompts. Safe for concurrent use.
type Builder struct {
	store   Searcher
	archive Archiver
	fleet   *fleet.Map
	framer  *TemporalFramer

	est    TokenEstimator
	budget int
}

// BuilderOption is a functional option for [NewBuilder].
type BuilderOption func(*Builder)

// WithTokenBudget caps the flattened prompt (default 6000 tokens).
func WithTokenBudget(n int) BuilderOption {
	return func(b *Builder) { b.budget = n }
}

// WithTokenEstimator replaces the default chars/4 estimator.
func WithTokenEstimator(est TokenEstimator) BuilderOption {
	return func(b *Builder) { b.est = est }
}

// NewBuilder returns a Builder over the given store and archive.
func NewBuilder(s Searcher, a Archiver, m *fleet.Map, opts ...BuilderOption) *Builder {
	b := &Builder{
		store:   s,
		archive: a,
		fleet:   m,
		framer:  NewTemporalFramer(append(fleet.StardancerCrew(), "Isabella")),
		est:     CharEstimator{},
		budget:  6000,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build assembles the prompt for strategy. The returned string is ready for
// the LLM; canned paths are handled by [CannedPicker], not here.
func (b *Builder) Build(ctx context.Context, s Strategy) (string, error) {
	p := &Prompt{}
	p.Add("persona", PriorityPersona, personaHeader)

	switch st := s.(type) {
	case RoleplayActive:
		b.buildRoleplayActive(ctx, p, st)
	case RoleplayListening:
		b.buildRoleplayListening(p, st)
	case FocusedContinuation:
		b.addKnowledge(ctx, p, st.Topic, store.SearchOptions{}, true)
		p.Add("instructions", PriorityInstructions,
			"The guest wants to hear more about the current topic. Continue where you left off without repeating yourself.")
		b.addHistory(p, st.History)
		p.Add("directive", PriorityDirective, respondDirective(st.UserMessage))
	case Character:
		b.addKnowledge(ctx, p, st.Name, store.SearchOptions{
			Categories: b.fleet.ConvertPageTypeToCategories(fleet.PageTypePersonnel, ""),
		}, true)
		p.Add("instructions", PriorityInstructions,
			"Answer the guest's question about "+st.Name+" from the records above. Stay in character as the bartender who knows the crew.")
		p.Add("directive", PriorityDirective, respondDirective(st.UserMessage))
	case FederationArchives:
		b.addArchiveKnowledge(ctx, p, st.Topic)
		p.Add("instructions", PriorityInstructions,
			"Answer from the Federation Archives material above, and say that's where it came from.")
		p.Add("directive", PriorityDirective, respondDirective(st.Topic))
	case Logs:
		b.addLogKnowledge(ctx, p, st)
		p.Add("instructions", PriorityInstructions,
			"Recount the mission log above as a story told across the bar: what happened, who was involved, how it ended.")
		p.Add("directive", PriorityDirective, "Respond with the log retelling now.")
	case TellMeAbout:
		b.addKnowledge(ctx, p, st.Topic, store.SearchOptions{}, true)
		p.Add("instructions", PriorityInstructions,
			"Answer the guest's question about "+st.Topic+" using the records above.")
		p.Add("directive", PriorityDirective, respondDirective(st.UserMessage))
	case StardancerInfo:
		b.addKnowledge(ctx, p, "Stardancer", store.SearchOptions{
			ShipName:   "Stardancer",
			Categories: b.fleet.ConvertPageTypeToCategories(fleet.PageTypeShipInfo, "Stardancer"),
		}, true)
		p.Add("instructions", PriorityInstructions,
			"Describe the USS Stardancer from the records above; it is the ship you serve on, so speak of it with familiarity.")
		p.Add("directive", PriorityDirective, respondDirective(st.UserMessage))
	case StardancerCommand:
		p.Add("instructions", PriorityInstructions,
			"The guest addressed the ship itself with a command. You are the bartender, not the helm: deflect with gentle humor and stay in character.")
		p.Add("directive", PriorityDirective, respondDirective(st.Command))
	case ShipLogs:
		b.addLogKnowledge(ctx, p, Logs{Selection: query.SelectLatest, Ship: st.Ship})
		p.Add("instructions", PriorityInstructions,
			fmt.Sprintf("Summarise the %s's recent logs above for the guest.", st.Ship))
		p.Add("directive", PriorityDirective, "Respond with the summary now.")
	case OOC:
		// Out-of-character: real Earth dates stay as they are.
		p.Add("instructions", PriorityInstructions,
			"The guest is speaking out of character (their message is wrapped in OOC markers). Answer plainly and helpfully, outside the roleplay. Keep real-world dates as real-world dates.")
		b.addHistory(p, st.History)
		p.Add("directive", PriorityDirective, respondDirective(st.UserMessage))
	case GeneralWithContext:
		b.addKnowledge(ctx, p, st.UserMessage, store.SearchOptions{}, false)
		p.Add("instructions", PriorityInstructions,
			"Have a natural bar conversation. Use the records above only if they are relevant.")
		b.addHistory(p, st.History)
		p.Add("directive", PriorityDirective, respondDirective(st.UserMessage))
	default:
		return "", fmt.Errorf("prompt: unknown strategy %T", s)
	}

	return p.Flatten(b.est, b.budget), nil
}

func (b *Builder) buildRoleplayActive(ctx context.Context, p *Prompt, st RoleplayActive) {
	var meta strings.Builder
	fmt.Fprintf(&meta, "Scene state: roleplay active (confidence %.2f).\n", st.Confidence)
	if len(st.Participants) > 0 {
		fmt.Fprintf(&meta, "Present at the bar: %s.\n", strings.Join(st.Participants, ", "))
	}
	if len(st.Triggers) > 0 {
		fmt.Fprintf(&meta, "Detected signals: %s.\n", strings.Join(st.Triggers, ", "))
	}
	if st.SceneSetting != "" {
		fmt.Fprintf(&meta, "Scene setting: %s\n", st.SceneSetting)
	}
	d := st.Decision
	if d.AddressCharacter != "" {
		fmt.Fprintf(&meta, "You are speaking with %s.\n", d.AddressCharacter)
	}
	fmt.Fprintf(&meta, "Register: %s, tone %s, approach %s.", d.ResponseStyle, d.Tone, d.Approach)
	p.Add("strategy", PriorityStrategy, meta.String())

	if topic := strings.TrimSpace(st.UserMessage); topic != "" {
		b.addKnowledge(ctx, p, topic, store.SearchOptions{}, false)
	}
	if len(d.KnowledgeToUse) > 0 {
		p.Add("accuracy", PriorityInstructions, strings.Join(d.KnowledgeToUse, "\n"))
	}
	b.addHistory(p, st.History)
	p.Add("directive", PriorityDirective,
		"Respond in character, in the scene, to: "+st.UserMessage)
}

func (b *Builder) buildRoleplayListening(p *Prompt, st RoleplayListening) {
	var meta strings.Builder
	meta.WriteString("Scene state: you are present but in the background, tending the bar.\n")
	if len(st.Participants) > 0 {
		fmt.Fprintf(&meta, "Present: %s.\n", strings.Join(st.Participants, ", "))
	}
	if st.SceneSetting != "" {
		fmt.Fprintf(&meta, "Scene setting: %s\n", st.SceneSetting)
	}
	p.Add("strategy", PriorityStrategy, meta.String())
	b.addHistory(p, st.History)
	p.Add("directive", PriorityDirective,
		"Add one short, subtle ambient action (a single emote or a quiet line of service). Do not address anyone directly or steer the scene.")
}

// addKnowledge runs the retrieval hierarchy: local store, then the archive,
// then the no-information fallback. Retrieved content has its Earth dates
// converted to the Star Trek era; with framed=true a temporal-framing
// instruction accompanies it.
func (b *Builder) addKnowledge(ctx context.Context, p *Prompt, topic string, opts store.SearchOptions, framed bool) {
	pages, err := b.store.SearchPages(ctx, topic, opts)
	if err != nil || len(pages) == 0 {
		b.addArchiveKnowledge(ctx, p, topic)
		return
	}

	var sb strings.Builder
	for _, page := range pages {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "**%s**\n%s", page.Title, page.Content)
	}
	content := query.ConvertDatesToStarTrek(sb.String())
	p.Add("context", PriorityContext, "Records from the ship's wiki:\n\n"+content)

	if framed {
		p.Add("framing", PriorityInstructions, b.framer.Instruction(b.framer.Classify(content)))
	}
}

func (b *Builder) addArchiveKnowledge(ctx context.Context, p *Prompt, topic string) {
	if b.archive != nil {
		if content := b.archive.Search(ctx, topic, 3, true); content != "" {
			p.Add("context", PriorityContext,
				"Records from the Federation Archives:\n\n"+query.ConvertDatesToStarTrek(content))
			return
		}
	}
	p.Add("no-info", PriorityInstructions, fmt.Sprintf(noInfoTemplate, topic))
}

func (b *Builder) addLogKnowledge(ctx context.Context, p *Prompt, st Logs) {
	var (
		pages []store.Page
		err   error
	)
	if st.Selection != "" {
		pages, err = b.store.GetSelectedLogs(ctx, st.Selection, st.Ship, 1)
	} else {
		pages, err = b.store.GetRecentLogs(ctx, st.Ship, 3)
	}
	if err != nil || len(pages) == 0 {
		p.Add("no-info", PriorityInstructions, fmt.Sprintf(noInfoTemplate, "the requested logs"))
		return
	}

	var sb strings.Builder
	for _, page := range pages {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "**%s**\n%s", page.Title, page.Content)
	}
	p.Add("context", PriorityContext,
		"Mission log records:\n\n"+query.ConvertDatesToStarTrek(sb.String()))
}

func (b *Builder) addHistory(p *Prompt, turns []HistoryTurn) {
	if len(turns) == 0 {
		return
	}
	var sb strings.Builder
	sb.WriteString("Recent conversation:\n")
	for _, t := range turns {
		fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Content)
	}
	p.Add("history", PriorityHistory, sb.String())
}

func respondDirective(message string) string {
	return "Respond now to the guest's message: " + message
}
