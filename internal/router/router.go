// Package router is the conversation front door: every incoming message is
// classified, checked against the channel's session state, and turned into a
// directive — a literal reply, an LLM prompt, or silence.
//
// The router never talks to Discord or the LLM itself; it only decides. The
// transport layer executes the directive.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/daedalus-fleet/elsie/internal/decision"
	"github.com/daedalus-fleet/elsie/internal/fleet"
	"github.com/daedalus-fleet/elsie/internal/observe"
	"github.com/daedalus-fleet/elsie/internal/prompt"
	"github.com/daedalus-fleet/elsie/internal/query"
	"github.com/daedalus-fleet/elsie/internal/roleplay"
	"github.com/daedalus-fleet/elsie/internal/session"
)

// DirectiveKind tells the transport what to do with the directive.
type DirectiveKind string

const (
	// DirectiveNoResponse means stay silent.
	DirectiveNoResponse DirectiveKind = "no_response"

	// DirectiveLiteral means send Reply verbatim, no LLM round-trip.
	DirectiveLiteral DirectiveKind = "literal_reply"

	// DirectiveInvokeLLM means complete with Prompt as the system prompt and
	// UserMessage as the user turn, then apply PostFilters to the reply.
	DirectiveInvokeLLM DirectiveKind = "invoke_llm"
)

// PostFilter transforms an LLM reply before it is sent.
type PostFilter func(string) string

// Directive is the router's verdict on one message.
type Directive struct {
	Kind        DirectiveKind
	Reply       string
	Prompt      string
	UserMessage string
	PostFilters []PostFilter

	// Record is dialogue the transport appends to channel history as the
	// bot's own turn without sending anything. Set when a game master
	// speaks as the bartender through a [DGM] [Elsie] tag.
	Record string

	// ResponseType and Reasoning carry the decision trail for logs and
	// metrics.
	ResponseType decision.ResponseType
	Reasoning    string
}

// Message is one incoming channel message.
type Message struct {
	ChannelID string
	Author    string
	Content   string
	Channel   session.ChannelContext

	// History is the recent channel transcript, oldest first. The transport
	// keeps it; the router only reads it.
	History []prompt.HistoryTurn
}

// metaDeflection is the in-character answer to first-time system probes
// ("are you a bot?"). Repeated probes end the scene instead.
const metaDeflection = "*polishes a glass without looking up* The only system I run back here is the till, and it loses to the replicator daily. What can I get you?"

// Router wires the detectors, session registry, decision engine, and prompt
// builder together. Safe for concurrent use; per-channel ordering is
// serialised by the session registry.
type Router struct {
	fleet    *fleet.Map
	queries  *query.Detector
	scenes   *roleplay.Detector
	sessions *session.Registry
	engine   *decision.Engine
	builder  *prompt.Builder
	canned   *prompt.CannedPicker
	metrics  *observe.Metrics
	log      *slog.Logger

	personalityMode string
	expertise       []string
	meetingFilter   PostFilter
}

// Option is a functional option for [New].
type Option func(*Router)

// WithPersonalityMode selects the canned-reply variant set.
func WithPersonalityMode(mode string) Option {
	return func(r *Router) { r.personalityMode = mode }
}

// WithMetrics records decision metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.log = l }
}

// WithMeetingPattern overrides the regexp used to scrub meeting-schedule
// lines from in-character replies.
func WithMeetingPattern(pattern string) Option {
	return func(r *Router) { r.meetingFilter = StripMeetingSchedule(pattern) }
}

// WithCannedSeed pins the canned-reply RNG, for tests.
func WithCannedSeed(seed int64) Option {
	return func(r *Router) { r.canned = prompt.NewCannedPicker(seed) }
}

// New returns a Router over the given fleet map and prompt builder.
func New(f *fleet.Map, b *prompt.Builder, opts ...Option) *Router {
	r := &Router{
		fleet:         f,
		queries:       query.NewDetector(f),
		scenes:        roleplay.NewDetector(),
		sessions:      session.NewRegistry(),
		engine:        decision.NewEngine(decision.WithFabricationControls(true)),
		builder:       b,
		canned:        prompt.NewCannedPicker(time.Now().UnixNano()),
		log:           slog.Default(),
		expertise:     []string{"stellar_cartography", "ship_operations"},
		meetingFilter: StripMeetingSchedule(""),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Sessions exposes the registry for transports that need lifecycle hooks.
func (r *Router) Sessions() *session.Registry { return r.sessions }

// Route classifies msg and returns the directive. A panic anywhere below
// degrades to silence: a conversation bot that crashes mid-scene is worse
// than one that misses a beat.
func (r *Router) Route(ctx context.Context, msg Message) (d Directive) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("router panic recovered", "channel", msg.ChannelID, "panic", rec)
			d = Directive{Kind: DirectiveNoResponse, Reasoning: fmt.Sprintf("internal error: %v", rec)}
		}
	}()

	st, release := r.sessions.Acquire(msg.ChannelID, msg.Channel)
	defer release()
	turn := st.NextTurn()

	if dgm := roleplay.ParseDGM(msg.Content); dgm.Action != roleplay.DGMNone {
		d = r.handleDGM(st, turn, msg, dgm)
	} else if st.IsRoleplaying {
		d = r.routeInSession(ctx, st, turn, msg)
	} else {
		rpCh := roleplayChannel(msg.Channel)
		rp := r.scenes.Detect(msg.Content, rpCh)
		if rp.IsRoleplay && roleplay.ChannelAllowsRoleplay(rpCh) {
			st.StartSession(turn, msg.Channel, nil)
			st.UpdateConfidence(rp.Confidence)
			d = r.routeRoleplay(ctx, st, turn, msg, rp)
		} else {
			d = r.routeStandard(ctx, st, turn, msg)
		}
	}

	if r.metrics != nil {
		r.metrics.RecordDecision(ctx, string(d.ResponseType), string(d.Kind))
	}
	r.log.Debug("routed message",
		"channel", msg.ChannelID,
		"turn", turn,
		"directive", d.Kind,
		"response_type", d.ResponseType,
		"reasoning", d.Reasoning,
	)
	return d
}

// handleDGM processes game-master control messages. The bartender never
// answers a DGM tag; she adjusts the scene around it.
func (r *Router) handleDGM(st *session.State, turn int, msg Message, dgm roleplay.DGMResult) Directive {
	switch dgm.Action {
	case roleplay.DGMSceneSetting:
		st.StartSession(turn, msg.Channel, dgm.Characters)
		return Directive{Kind: DirectiveNoResponse, Reasoning: "dgm_scene_setting"}
	case roleplay.DGMControlledElsie:
		// The game master spoke as the bartender. That forces a scene open
		// if none is running, counts as her turn so the interjection cadence
		// does not double up, and the spoken line goes into history as her
		// own words.
		if !st.IsRoleplaying {
			st.StartSession(turn, msg.Channel, nil)
			st.DGMInitiated = true
		}
		st.MarkResponseTurn(turn)
		return Directive{Kind: DirectiveNoResponse, Record: dgm.Content, Reasoning: "dgm_controlled_elsie"}
	case roleplay.DGMEndScene:
		st.EndSession("dgm_end_scene")
		return Directive{Kind: DirectiveNoResponse, Reasoning: "dgm_end_scene"}
	}
	return Directive{Kind: DirectiveNoResponse, Reasoning: "dgm_unknown"}
}

// routeInSession handles a message while a roleplay session is active:
// exit conditions first, then scene participation.
func (r *Router) routeInSession(ctx context.Context, st *session.State, turn int, msg Message) Directive {
	if exit, trigger := roleplay.IsExitCondition(msg.Content); exit {
		switch trigger {
		case "exit_command":
			st.EndSession(trigger)
			return Directive{
				Kind:      DirectiveLiteral,
				Reply:     r.canned.Pick(prompt.IntentReset, r.personalityMode),
				Reasoning: "exit_command",
			}
		case "ooc_marker":
			// Out-of-character aside: answer it plainly, keep the scene.
			return r.routeStandard(ctx, st, turn, msg)
		case "meta_query":
			st.RecordExitCondition()
			if st.ShouldExitFromSustainedShift() {
				st.EndSession(trigger)
				return r.routeStandard(ctx, st, turn, msg)
			}
			return Directive{Kind: DirectiveLiteral, Reply: metaDeflection, Reasoning: "meta_query_deflection"}
		}
	}

	rp := r.scenes.Detect(msg.Content, roleplayChannel(msg.Channel))
	st.UpdateConfidence(rp.Confidence)
	if st.CheckSustainedTopicShift() {
		st.EndSession("sustained_topic_shift")
		return r.routeStandard(ctx, st, turn, msg)
	}
	return r.routeRoleplay(ctx, st, turn, msg, rp)
}

// routeRoleplay runs the decision engine over the scene and builds the
// in-character prompt.
func (r *Router) routeRoleplay(ctx context.Context, st *session.State, turn int, msg Message, rp roleplay.Result) Directive {
	addressed := st.LastCharacterElsieAddressed
	// A short bare line right after the bartender addressed someone reads as
	// that character's answer, unless it names a different character.
	implicit := st.IsSimpleImplicitResponse(turn, msg.Content) &&
		!r.fleet.MentionsOtherCharacter(msg.Content, addressed, "Elsie")
	speaker := rp.CharacterName
	if speaker == "" {
		if implicit {
			speaker = addressed
		} else {
			speaker = msg.Author
		}
	}
	st.MarkCharacterTurn(turn, speaker)

	cues := &decision.ContextualCues{
		CurrentMessage:           msg.Content,
		CurrentSpeaker:           speaker,
		PersonalityMode:          r.personalityMode,
		CurrentExpertise:         r.expertise,
		SessionMode:              sessionMode(st),
		RecentActivity:           activityFromHistory(msg.History),
		IsSimpleImplicitResponse: implicit,
		AddressedCharacter:       addressed,
	}
	d := r.engine.Decide(cues)

	if !d.ShouldRespond {
		if st.ShouldInterjectSubtleAction(turn) {
			return r.listeningDirective(ctx, st, msg, "interjection_cadence")
		}
		return Directive{Kind: DirectiveNoResponse, ResponseType: d.ResponseType, Reasoning: d.Reasoning}
	}

	if d.ResponseType == decision.ResponseGroupAcknowledgment {
		st.MarkResponseTurn(turn)
		return Directive{
			Kind:         DirectiveLiteral,
			Reply:        r.canned.Pick(prompt.IntentAck, r.personalityMode),
			ResponseType: d.ResponseType,
			Reasoning:    d.Reasoning,
		}
	}

	p, err := r.builder.Build(ctx, prompt.RoleplayActive{
		UserMessage:  msg.Content,
		Decision:     d,
		Participants: participantNames(st),
		Triggers:     rp.Triggers,
		Confidence:   rp.Confidence,
		History:      msg.History,
		SceneSetting: sceneSetting(st),
	})
	if err != nil {
		r.log.Error("prompt build failed", "err", err)
		return Directive{Kind: DirectiveNoResponse, Reasoning: "prompt_build_failed"}
	}

	st.MarkResponseTurn(turn)
	if d.AddressCharacter != "" {
		st.SetLastCharacterAddressed(d.AddressCharacter)
	}
	return Directive{
		Kind:         DirectiveInvokeLLM,
		Prompt:       p,
		UserMessage:  msg.Content,
		PostFilters:  []PostFilter{r.meetingFilter},
		ResponseType: d.ResponseType,
		Reasoning:    d.Reasoning,
	}
}

// listeningDirective builds the ambient-action prompt used when the
// bartender has faded into the background for too long.
func (r *Router) listeningDirective(ctx context.Context, st *session.State, msg Message, reason string) Directive {
	p, err := r.builder.Build(ctx, prompt.RoleplayListening{
		Participants: participantNames(st),
		SceneSetting: sceneSetting(st),
		History:      msg.History,
	})
	if err != nil {
		return Directive{Kind: DirectiveNoResponse, Reasoning: "prompt_build_failed"}
	}
	return Directive{
		Kind:        DirectiveInvokeLLM,
		Prompt:      p,
		UserMessage: msg.Content,
		PostFilters: []PostFilter{r.meetingFilter},
		Reasoning:   reason,
	}
}

// routeStandard handles non-roleplay traffic through the query detector.
func (r *Router) routeStandard(ctx context.Context, st *session.State, turn int, msg Message) Directive {
	q := r.queries.Detect(msg.Content)

	literal := func(intent string) Directive {
		return Directive{
			Kind:      DirectiveLiteral,
			Reply:     r.canned.Pick(intent, r.personalityMode),
			Reasoning: string(q.Kind),
		}
	}

	var (
		strategy prompt.Strategy
		filters  []PostFilter
	)

	switch q.Kind {
	case query.KindResetRequest:
		st.EndSession("reset_request")
		return literal(prompt.IntentReset)
	case query.KindMenuRequest:
		return literal(prompt.IntentMenu)
	case query.KindSimpleGreeting:
		return literal(prompt.IntentGreeting)
	case query.KindSimpleFarewell:
		return literal(prompt.IntentFarewell)
	case query.KindSimpleStatus:
		return literal(prompt.IntentStatus)
	case query.KindSimpleConversational:
		return literal(prompt.IntentAck)

	case query.KindOOC:
		strategy = prompt.OOC{UserMessage: msg.Content, History: msg.History}
		filters = append(filters, StripEmotes)
	case query.KindContinuation:
		strategy = prompt.FocusedContinuation{
			UserMessage: msg.Content,
			Topic:       continuationTopic(q, msg.History),
			History:     msg.History,
		}
	case query.KindCharacter:
		strategy = prompt.Character{Name: q.Subject, UserMessage: msg.Content}
	case query.KindCharacterPlusLog:
		strategy = prompt.TellMeAbout{Topic: q.Subject, UserMessage: msg.Content}
	case query.KindSpecificLog, query.KindLog:
		strategy = prompt.Logs{Selection: q.Selection, Ship: q.Ship, Date: q.Date}
	case query.KindShipLog, query.KindShipPlusLog:
		strategy = prompt.ShipLogs{Ship: q.Ship}
	case query.KindTellMeAbout:
		strategy = prompt.TellMeAbout{Topic: q.Subject, UserMessage: msg.Content}
	case query.KindLogURL:
		// A pasted wiki URL: retrieve by its page title slug.
		strategy = prompt.TellMeAbout{Topic: titleFromURL(q.URL), UserMessage: msg.Content}
	case query.KindStardancerInfo:
		strategy = prompt.StardancerInfo{UserMessage: msg.Content}
	case query.KindStardancerCommand:
		strategy = prompt.StardancerCommand{Command: msg.Content}
	case query.KindFederationArchives:
		strategy = prompt.FederationArchives{Topic: q.Subject}
	default:
		strategy = prompt.GeneralWithContext{UserMessage: msg.Content, History: msg.History}
	}

	// OOC answers are the one place scheduling talk belongs; everything else
	// keeps the fourth wall intact.
	if q.Kind != query.KindOOC {
		filters = append(filters, r.meetingFilter)
	}

	p, err := r.builder.Build(ctx, strategy)
	if err != nil {
		r.log.Error("prompt build failed", "kind", q.Kind, "err", err)
		return Directive{Kind: DirectiveNoResponse, Reasoning: "prompt_build_failed"}
	}
	st.MarkResponseTurn(turn)
	return Directive{
		Kind:        DirectiveInvokeLLM,
		Prompt:      p,
		UserMessage: msg.Content,
		PostFilters: filters,
		Reasoning:   string(q.Kind),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func roleplayChannel(ch session.ChannelContext) roleplay.ChannelContext {
	return roleplay.ChannelContext{
		Type:     ch.Type,
		IsThread: ch.IsThread,
		IsDM:     ch.IsDM,
		Name:     ch.Name,
	}
}

func participantNames(st *session.State) []string {
	ps := st.Participants()
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

func sceneSetting(st *session.State) string {
	if st.DGMInitiated && len(st.DGMCharacters) > 0 {
		return "Game-master scene featuring " + strings.Join(st.DGMCharacters, ", ") + "."
	}
	return ""
}

func sessionMode(st *session.State) string {
	switch {
	case st.DGMInitiated:
		return "dgm"
	case st.IsRoleplaying:
		return "roleplay"
	}
	return "standard"
}

func activityFromHistory(history []prompt.HistoryTurn) []decision.ActivityEntry {
	out := make([]decision.ActivityEntry, 0, len(history))
	for _, h := range history {
		out = append(out, decision.ActivityEntry{Speaker: h.Role, Content: h.Content})
	}
	return out
}

// continuationTopic digs the subject of "tell me more" out of the previous
// user turns.
func continuationTopic(q query.Result, history []prompt.HistoryTurn) string {
	if q.Subject != "" {
		return q.Subject
	}
	for i := len(history) - 1; i >= 0; i-- {
		if !strings.EqualFold(history[i].Role, "Elsie") && len(history[i].Content) > 0 {
			return history[i].Content
		}
	}
	return ""
}

// titleFromURL turns a wiki article URL into a searchable title.
func titleFromURL(u string) string {
	if i := strings.LastIndexByte(u, '/'); i >= 0 {
		u = u[i+1:]
	}
	u = strings.ReplaceAll(u, "_", " ")
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	return strings.TrimSpace(u)
}
