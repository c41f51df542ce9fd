package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daedalus-fleet/elsie/internal/content"
	"github.com/daedalus-fleet/elsie/internal/fleet"
	"github.com/daedalus-fleet/elsie/internal/ingest"
	"github.com/daedalus-fleet/elsie/internal/store"
	"github.com/daedalus-fleet/elsie/internal/wiki"
)

func ingestCmd() *cobra.Command {
	var (
		comprehensive bool
		force         bool
		stats         bool
		cleanup       bool
		limit         int
	)

	cmd := &cobra.Command{
		Use:   "ingest [TITLE...]",
		Short: "Crawl the fleet wiki into the knowledge base",
		Long: `Crawl the fleet wiki into the knowledge base.

Without flags the crawl is incremental: pages whose remote touched
timestamp is unchanged are skipped. Passing titles crawls only those
pages. --comprehensive walks the wiki's full page listing instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fleetMap := fleet.New(cfg.Fleet)
			st, err := store.New(ctx, cfg.Database.DSN(), fleetMap,
				store.WithMaxContentLength(cfg.Ingest.MaxContentLength))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			if stats {
				return printStats(ctx, st)
			}
			if cleanup {
				return runCleanup(ctx, st)
			}

			if cfg.Wiki.APIURL == "" {
				return errors.New("wiki.api_url is required for crawling")
			}

			mode := ingest.ModeIncremental
			switch {
			case comprehensive && len(args) > 0:
				return errors.New("--comprehensive and explicit titles are mutually exclusive")
			case comprehensive:
				mode = ingest.ModeComprehensive
			case force:
				mode = ingest.ModeForce
			case len(args) > 0:
				mode = ingest.ModeCurated
			}

			client := wiki.NewClient(cfg.Wiki.APIURL, wiki.WithUserAgent(cfg.Wiki.UserAgent))
			ing := ingest.New(client, st, content.NewProcessor(fleetMap),
				ingest.WithWorkers(cfg.Ingest.Workers),
				ingest.WithPageDelay(cfg.Ingest.PageDelay))

			report, err := ing.Run(ctx, mode, args, limit)
			if report != nil {
				fmt.Println(report)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&comprehensive, "comprehensive", false, "crawl every page the wiki lists")
	cmd.Flags().BoolVar(&force, "force", false, "rewrite pages even when unchanged")
	cmd.Flags().BoolVar(&stats, "stats", false, "print knowledge base statistics and exit")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "run stored-data cleanup passes and exit")
	cmd.Flags().IntVar(&limit, "limit", 0, "crawl at most N pages (0 = no limit)")
	return cmd
}

func printStats(ctx context.Context, st *store.Store) error {
	s, err := st.CollectStats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("pages: %d\n", s.TotalPages)

	types := make([]string, 0, len(s.ByPageType))
	for t := range s.ByPageType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %-12s %d\n", t, s.ByPageType[t])
	}

	fmt.Printf("error pages: %d\n", s.ErrorPages)
	if s.HasLastCrawl {
		fmt.Printf("last crawl: %s\n", s.LastCrawled.Format("2006-01-02 15:04:05 MST"))
	} else {
		fmt.Println("last crawl: never")
	}
	return nil
}

func runCleanup(ctx context.Context, st *store.Store) error {
	fixed, err := st.CleanupMissionLogShipNames(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("mission log ship names fixed: %d\n", fixed)

	removed, err := st.CleanupSeedData(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("seed rows removed: %d\n", removed)
	return nil
}
