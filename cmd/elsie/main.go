// Command elsie runs the Star Trek roleplay assistant: a Discord bot backed
// by a wiki-derived knowledge base, plus the crawler that keeps that base
// current.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/daedalus-fleet/elsie/internal/config"
)

var (
	configPath string
	envPath    string

	cfg *config.Config

	// logLevel backs the default handler so the config reloader can retune
	// verbosity without rebuilding the logger.
	logLevel slog.LevelVar
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "elsie: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "elsie",
		Short:         "Holographic bartender for the Daedalus fleet Discord",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envPath); err != nil {
				return err
			}
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			logLevel.Set(slogLevel(cfg.Server.LogLevel))
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel})))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&envPath, "env", ".env", "path to an optional dotenv file")

	root.AddCommand(serveCmd())
	root.AddCommand(ingestCmd())
	return root
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
