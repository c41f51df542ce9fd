package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/daedalus-fleet/elsie/internal/config"
	"github.com/daedalus-fleet/elsie/internal/discord"
	"github.com/daedalus-fleet/elsie/internal/fleet"
	"github.com/daedalus-fleet/elsie/internal/health"
	"github.com/daedalus-fleet/elsie/internal/observe"
	"github.com/daedalus-fleet/elsie/internal/prompt"
	"github.com/daedalus-fleet/elsie/internal/resilience"
	"github.com/daedalus-fleet/elsie/internal/router"
	"github.com/daedalus-fleet/elsie/internal/store"
	"github.com/daedalus-fleet/elsie/internal/wiki"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and answer messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Discord.Token == "" {
		return errors.New("discord.token is required for serve (set DISCORD_TOKEN)")
	}

	// ── Telemetry ──────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "elsie"})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	metrics := observe.DefaultMetrics()

	// ── Knowledge base ─────────────────────────────────────────────────────────
	fleetMap := fleet.New(cfg.Fleet)

	st, err := store.New(ctx, cfg.Database.DSN(), fleetMap,
		store.WithMaxContentLength(cfg.Ingest.MaxContentLength))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	archive := wiki.NewArchiveClient(cfg.Archive.APIURL,
		wiki.WithUserAgent(cfg.Wiki.UserAgent))

	// ── Conversation pipeline ──────────────────────────────────────────────────
	var builderOpts []prompt.BuilderOption
	if cfg.Prompt.TokenBudget > 0 {
		builderOpts = append(builderOpts, prompt.WithTokenBudget(cfg.Prompt.TokenBudget))
	}
	builder := prompt.NewBuilder(st, archive, fleetMap, builderOpts...)

	rt := router.New(fleetMap, builder,
		router.WithPersonalityMode(cfg.Prompt.PersonalityMode),
		router.WithMeetingPattern(cfg.Prompt.MeetingSchedulePattern),
		router.WithMetrics(metrics))

	registry := config.DefaultRegistry()
	primary, err := registry.CreateLLM(cfg.LLM)
	if err != nil {
		return fmt.Errorf("create llm provider %q: %w", cfg.LLM.Provider, err)
	}
	chain := resilience.NewChain(cfg.LLM.Provider, primary, resilience.BreakerConfig{})
	for _, fb := range cfg.LLM.Fallbacks {
		p, err := registry.CreateLLM(fb)
		if err != nil {
			return fmt.Errorf("create fallback llm provider %q: %w", fb.Provider, err)
		}
		chain.AddFallback(fb.Provider, p)
	}

	// ── Discord bot ────────────────────────────────────────────────────────────
	bot, err := discord.New(ctx, discord.Config{
		Token:           cfg.Discord.Token,
		BotName:         cfg.Discord.BotName,
		DGMRoleID:       cfg.Discord.DGMRoleID,
		AllowedChannels: cfg.Discord.AllowedChannels,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
	}, rt, chain, discord.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("connect discord: %w", err)
	}

	// ── Metrics and health endpoints ───────────────────────────────────────────
	var httpSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observe.MetricsHandler())
		health.New(
			health.Probe{Name: "database", Check: st.Ping},
			health.Probe{Name: "discord", Check: bot.Ping},
		).Register(mux)
		httpSrv = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}
		go func() {
			slog.Info("metrics endpoint listening", "addr", cfg.Server.MetricsAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "err", err)
			}
		}()
	}

	// ── Config hot reload ──────────────────────────────────────────────────────
	reloader, err := config.WatchConfig(configPath, func(_ *config.Config, d config.ConfigDiff) {
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.PersonalityModeChanged || d.TokenBudgetChanged || d.FleetChanged {
			slog.Warn("config change requires restart to take effect",
				"personality", d.PersonalityModeChanged,
				"token_budget", d.TokenBudgetChanged,
				"fleet", d.FleetChanged)
		}
	})
	if err != nil {
		slog.Warn("config hot reload unavailable", "err", err)
	} else {
		defer reloader.Close()
	}

	slog.Info("elsie ready",
		"llm", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
		"channels", len(cfg.Discord.AllowedChannels))

	err = bot.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	// ── Graceful shutdown ──────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := bot.Close(); err != nil {
		slog.Warn("discord close error", "err", err)
	}
	if httpSrv != nil {
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown error", "err", err)
		}
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return nil
}
