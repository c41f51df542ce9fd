// Package discord provides the Discord transport for Elsie. It owns the
// discordgo.Session lifecycle, feeds incoming messages to the conversation
// router, and executes the router's directives: literal replies, LLM
// completions, or silence.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/daedalus-fleet/elsie/internal/observe"
	"github.com/daedalus-fleet/elsie/internal/prompt"
	"github.com/daedalus-fleet/elsie/internal/router"
	"github.com/daedalus-fleet/elsie/internal/session"
	"github.com/daedalus-fleet/elsie/pkg/provider/llm"
)

// historySize bounds the per-channel transcript handed to the router.
const historySize = 10

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string

	// BotName is the display name the bot answers to. Default: "Elsie".
	BotName string

	// DGMRoleID is the Discord role ID allowed to use [DGM] scene control
	// tags. Empty allows everyone.
	DGMRoleID string

	// AllowedChannels restricts the bot to the listed channel IDs.
	// Empty means all channels the bot can read.
	AllowedChannels []string

	// Temperature and MaxTokens are passed through to LLM completions.
	Temperature float64
	MaxTokens   int
}

// messenger is the slice of discordgo.Session the handler writes through.
// Narrowed for tests.
type messenger interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// Bot owns the Discord gateway connection.
type Bot struct {
	cfg      Config
	session  *discordgo.Session
	router   *router.Router
	provider llm.Provider
	perms    *PermissionChecker
	metrics  *observe.Metrics
	log      *slog.Logger

	allowed map[string]bool

	mu      sync.Mutex
	history map[string][]prompt.HistoryTurn

	closeOnce sync.Once
}

// Option is a functional option for [New].
type Option func(*Bot)

// WithMetrics records LLM call metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(b *Bot) { b.metrics = m }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bot) { b.log = l }
}

// New creates a Bot, connects to Discord, and registers the message handler.
func New(_ context.Context, cfg Config, rt *router.Router, provider llm.Provider, opts ...Option) (*Bot, error) {
	if cfg.BotName == "" {
		cfg.BotName = "Elsie"
	}

	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	b := newBot(cfg, rt, provider, opts...)
	b.session = s

	s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		b.onMessageCreate(s, m)
	})

	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	return b, nil
}

// newBot builds the handler state without a gateway connection. Split out so
// tests can drive HandleMessage directly.
func newBot(cfg Config, rt *router.Router, provider llm.Provider, opts ...Option) *Bot {
	allowed := make(map[string]bool, len(cfg.AllowedChannels))
	for _, id := range cfg.AllowedChannels {
		allowed[id] = true
	}
	b := &Bot{
		cfg:      cfg,
		router:   rt,
		provider: provider,
		perms:    NewPermissionChecker(cfg.DGMRoleID),
		log:      slog.Default(),
		allowed:  allowed,
		history:  make(map[string][]prompt.HistoryTurn),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Ping reports whether the gateway connection is up. Used by the readiness
// probe.
func (b *Bot) Ping(context.Context) error {
	if b.session == nil || b.session.State == nil || b.session.State.User == nil {
		return errors.New("gateway not connected")
	}
	return nil
}

// Run blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord.
func (b *Bot) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.session != nil {
			err = b.session.Close()
		}
	})
	return err
}

// onMessageCreate adapts a gateway event into a HandleMessage call.
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	ch := b.lookupChannel(s, m.ChannelID)
	b.HandleMessage(context.Background(), s, m, ch)
}

// lookupChannel resolves channel metadata, preferring the state cache.
func (b *Bot) lookupChannel(s *discordgo.Session, channelID string) *discordgo.Channel {
	if ch, err := s.State.Channel(channelID); err == nil {
		return ch
	}
	ch, err := s.Channel(channelID)
	if err != nil {
		b.log.Warn("discord: channel lookup failed", "channel", channelID, "err", err)
		return nil
	}
	return ch
}

// HandleMessage routes one message and executes the resulting directive.
func (b *Bot) HandleMessage(ctx context.Context, send messenger, m *discordgo.MessageCreate, ch *discordgo.Channel) {
	if len(b.allowed) > 0 && !b.allowed[m.ChannelID] {
		return
	}
	content := m.Content
	author := displayName(m)

	if isDGMTagged(content) && !b.perms.IsDGM(m) {
		b.log.Info("discord: [DGM] tag from non-DGM user ignored", "author", author)
		return
	}

	msg := router.Message{
		ChannelID: m.ChannelID,
		Author:    author,
		Content:   content,
		Channel:   channelContext(ch),
		History:   b.channelHistory(m.ChannelID),
	}
	d := b.router.Route(ctx, msg)
	if d.Record != "" {
		// A game master spoke as the bot; the transcript credits the line
		// to her, not to the tagged message's author.
		b.appendHistory(m.ChannelID, prompt.HistoryTurn{Role: b.cfg.BotName, Content: d.Record})
	} else {
		b.appendHistory(m.ChannelID, prompt.HistoryTurn{Role: author, Content: content})
	}

	switch d.Kind {
	case router.DirectiveNoResponse:
		return
	case router.DirectiveLiteral:
		b.reply(send, m.ChannelID, d.Reply)
	case router.DirectiveInvokeLLM:
		if err := send.ChannelTyping(m.ChannelID); err != nil {
			b.log.Debug("discord: typing indicator failed", "err", err)
		}
		reply, err := b.complete(ctx, d)
		if err != nil {
			b.log.Error("discord: completion failed", "channel", m.ChannelID, "err", err)
			return
		}
		b.reply(send, m.ChannelID, router.ApplyPostFilters(reply, d.PostFilters))
	}
}

// complete runs the LLM call described by the directive.
func (b *Bot) complete(ctx context.Context, d router.Directive) (string, error) {
	start := time.Now()
	resp, err := b.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: d.Prompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: d.UserMessage},
		},
		Temperature: b.cfg.Temperature,
		MaxTokens:   b.cfg.MaxTokens,
	})
	if err != nil {
		if b.metrics != nil {
			b.metrics.LLMErrors.Add(ctx, 1)
		}
		return "", err
	}
	if b.metrics != nil {
		b.metrics.RecordLLMCall(ctx, time.Since(start).Seconds(),
			resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}
	return resp.Content, nil
}

func (b *Bot) reply(send messenger, channelID, content string) {
	if content == "" {
		return
	}
	if _, err := send.ChannelMessageSend(channelID, content); err != nil {
		b.log.Error("discord: send failed", "channel", channelID, "err", err)
		return
	}
	b.appendHistory(channelID, prompt.HistoryTurn{Role: b.cfg.BotName, Content: content})
}

func (b *Bot) channelHistory(channelID string) []prompt.HistoryTurn {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.history[channelID]
	out := make([]prompt.HistoryTurn, len(h))
	copy(out, h)
	return out
}

func (b *Bot) appendHistory(channelID string, turn prompt.HistoryTurn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := append(b.history[channelID], turn)
	if len(h) > historySize {
		h = h[len(h)-historySize:]
	}
	b.history[channelID] = h
}

// displayName prefers the guild nickname over the account name.
func displayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author != nil {
		if m.Author.GlobalName != "" {
			return m.Author.GlobalName
		}
		return m.Author.Username
	}
	return "guest"
}

// channelContext maps Discord channel metadata onto the session layer's view.
func channelContext(ch *discordgo.Channel) session.ChannelContext {
	if ch == nil {
		return session.ChannelContext{Type: "unknown"}
	}
	out := session.ChannelContext{Name: ch.Name}
	switch ch.Type {
	case discordgo.ChannelTypeDM, discordgo.ChannelTypeGroupDM:
		out.Type = "dm"
		out.IsDM = true
	case discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread, discordgo.ChannelTypeGuildNewsThread:
		out.Type = "thread"
		out.IsThread = true
	case discordgo.ChannelTypeGuildText:
		out.Type = "text"
	default:
		out.Type = "unknown"
	}
	return out
}
