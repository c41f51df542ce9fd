package discord

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/daedalus-fleet/elsie/internal/fleet"
	"github.com/daedalus-fleet/elsie/internal/prompt"
	"github.com/daedalus-fleet/elsie/internal/query"
	"github.com/daedalus-fleet/elsie/internal/router"
	"github.com/daedalus-fleet/elsie/internal/store"
	"github.com/daedalus-fleet/elsie/pkg/provider/llm"
	"github.com/daedalus-fleet/elsie/pkg/provider/llm/mock"
)

type fakeMessenger struct {
	sent   []string
	typing int
}

func (f *fakeMessenger) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.sent = append(f.sent, content)
	return &discordgo.Message{Content: content}, nil
}

func (f *fakeMessenger) ChannelTyping(string, ...discordgo.RequestOption) error {
	f.typing++
	return nil
}

type fakeSearcher struct{}

func (fakeSearcher) SearchPages(context.Context, string, store.SearchOptions) ([]store.Page, error) {
	return nil, nil
}

func (fakeSearcher) GetRecentLogs(context.Context, string, int) ([]store.Page, error) {
	return nil, nil
}

func (fakeSearcher) GetSelectedLogs(context.Context, query.Selection, string, int) ([]store.Page, error) {
	return nil, nil
}

type fakeArchive struct{}

func (fakeArchive) Search(context.Context, string, int, bool) string { return "" }

func newTestBot(cfg Config, provider llm.Provider) *Bot {
	m := fleet.New(fleet.DefaultConfig())
	b := prompt.NewBuilder(fakeSearcher{}, fakeArchive{}, m)
	rt := router.New(m, b, router.WithCannedSeed(7))
	return newBot(cfg, rt, provider)
}

func message(channelID, author, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: channelID,
		Content:   content,
		Author:    &discordgo.User{Username: author},
	}}
}

func textDiscordChannel() *discordgo.Channel {
	return &discordgo.Channel{Type: discordgo.ChannelTypeGuildText, Name: "general"}
}

func threadDiscordChannel() *discordgo.Channel {
	return &discordgo.Channel{Type: discordgo.ChannelTypeGuildPublicThread, Name: "ten-forward-rp"}
}

func TestPermissionChecker(t *testing.T) {
	tests := []struct {
		name   string
		roleID string
		member *discordgo.Member
		want   bool
	}{
		{name: "no role configured allows everyone", roleID: "", member: nil, want: true},
		{name: "member holds the role", roleID: "gm-role", member: &discordgo.Member{Roles: []string{"other", "gm-role"}}, want: true},
		{name: "member lacks the role", roleID: "gm-role", member: &discordgo.Member{Roles: []string{"other"}}, want: false},
		{name: "no member info denies", roleID: "gm-role", member: nil, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPermissionChecker(tc.roleID)
			m := message("c", "gm", "[DGM] scene")
			m.Member = tc.member
			if got := p.IsDGM(m); got != tc.want {
				t.Errorf("IsDGM() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestHandleMessageLiteralReply(t *testing.T) {
	b := newTestBot(Config{BotName: "Elsie"}, &mock.Provider{})
	send := &fakeMessenger{}

	b.HandleMessage(context.Background(), send, message("c1", "player1", "hello Elsie!"), textDiscordChannel())

	if len(send.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(send.sent))
	}
	if send.sent[0] == "" {
		t.Error("literal reply must not be empty")
	}

	h := b.channelHistory("c1")
	if len(h) != 2 {
		t.Fatalf("history has %d turns, want user + Elsie", len(h))
	}
	if h[1].Role != "Elsie" {
		t.Errorf("second turn role = %q, want Elsie", h[1].Role)
	}
}

func TestHandleMessageInvokesLLM(t *testing.T) {
	provider := &mock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "*slides a glass across the bar* Rough shift, Maeve?",
			Usage:   llm.Usage{PromptTokens: 400, CompletionTokens: 20, TotalTokens: 420},
		},
	}
	b := newTestBot(Config{BotName: "Elsie", Temperature: 0.8, MaxTokens: 600}, provider)
	send := &fakeMessenger{}

	b.HandleMessage(context.Background(), send,
		message("c2", "player1", "[Maeve] *walks into Ten Forward and takes a seat at the bar* Long shift."),
		threadDiscordChannel())

	if send.typing == 0 {
		t.Error("LLM calls should show the typing indicator")
	}
	if len(send.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(send.sent))
	}
	if !strings.Contains(send.sent[0], "Rough shift") {
		t.Errorf("reply = %q, want the completion content", send.sent[0])
	}

	if len(provider.CompleteCalls) == 0 {
		t.Fatal("provider was never called")
	}
	req := provider.LastRequest()
	if req.SystemPrompt == "" {
		t.Error("completion must carry the built system prompt")
	}
	if req.Temperature != 0.8 || req.MaxTokens != 600 {
		t.Errorf("sampling params = (%v, %d), want config values", req.Temperature, req.MaxTokens)
	}
}

func TestHandleMessageCompletionErrorStaysSilent(t *testing.T) {
	provider := &mock.Provider{CompleteErr: context.DeadlineExceeded}
	b := newTestBot(Config{}, provider)
	send := &fakeMessenger{}

	b.HandleMessage(context.Background(), send,
		message("c3", "player1", "[Maeve] *sits down at the bar* Hi."),
		threadDiscordChannel())

	if len(send.sent) != 0 {
		t.Errorf("failed completions must not produce a reply, got %v", send.sent)
	}
}

func TestDGMTagRequiresRole(t *testing.T) {
	b := newTestBot(Config{DGMRoleID: "gm-role"}, &mock.Provider{})
	send := &fakeMessenger{}

	m := message("c4", "player1", "[DGM] The lights dim in Ten Forward.")
	m.Member = &discordgo.Member{Roles: []string{"crew"}}
	b.HandleMessage(context.Background(), send, m, threadDiscordChannel())

	if len(send.sent) != 0 {
		t.Errorf("unauthorized [DGM] tags must be dropped, got %v", send.sent)
	}

	st, release := b.router.Sessions().Acquire("c4", channelContext(threadDiscordChannel()))
	defer release()
	if st.IsRoleplaying {
		t.Error("unauthorized [DGM] tag must not open a session")
	}
}

func TestDGMSpokenElsieLineEntersHistory(t *testing.T) {
	b := newTestBot(Config{BotName: "Elsie"}, &mock.Provider{})
	send := &fakeMessenger{}

	b.HandleMessage(context.Background(), send,
		message("c6", "gm", "[DGM] [Elsie] *slides a drink across* On the house."),
		threadDiscordChannel())

	if len(send.sent) != 0 {
		t.Fatalf("a game-master line spoken as the bot must not be answered, got %v", send.sent)
	}
	h := b.channelHistory("c6")
	if len(h) != 1 {
		t.Fatalf("history has %d turns, want just the spoken line", len(h))
	}
	if h[0].Role != "Elsie" {
		t.Errorf("turn role = %q, want Elsie", h[0].Role)
	}
	if !strings.Contains(h[0].Content, "On the house") {
		t.Errorf("turn content = %q, want the spoken line", h[0].Content)
	}
	if strings.Contains(h[0].Content, "[DGM]") {
		t.Errorf("control tags must not enter the transcript: %q", h[0].Content)
	}
}

func TestAllowedChannelsFilter(t *testing.T) {
	b := newTestBot(Config{AllowedChannels: []string{"approved"}}, &mock.Provider{})
	send := &fakeMessenger{}

	b.HandleMessage(context.Background(), send, message("elsewhere", "player1", "hello Elsie!"), textDiscordChannel())
	if len(send.sent) != 0 {
		t.Errorf("messages outside allowed channels must be ignored, got %v", send.sent)
	}

	b.HandleMessage(context.Background(), send, message("approved", "player1", "hello Elsie!"), textDiscordChannel())
	if len(send.sent) != 1 {
		t.Errorf("messages in allowed channels must be handled, sent %d", len(send.sent))
	}
}

func TestHistoryIsBounded(t *testing.T) {
	b := newTestBot(Config{}, &mock.Provider{})
	for i := 0; i < historySize*2; i++ {
		b.appendHistory("c5", prompt.HistoryTurn{Role: "player1", Content: "turn"})
	}
	if got := len(b.channelHistory("c5")); got != historySize {
		t.Errorf("history length = %d, want %d", got, historySize)
	}
}

func TestChannelContextMapping(t *testing.T) {
	tests := []struct {
		in       *discordgo.Channel
		wantType string
	}{
		{textDiscordChannel(), "text"},
		{threadDiscordChannel(), "thread"},
		{&discordgo.Channel{Type: discordgo.ChannelTypeDM}, "dm"},
		{nil, "unknown"},
	}
	for _, tc := range tests {
		if got := channelContext(tc.in); got.Type != tc.wantType {
			t.Errorf("channelContext(%v).Type = %q, want %q", tc.in, got.Type, tc.wantType)
		}
	}
}
