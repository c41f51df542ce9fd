// Package ingest orchestrates the wiki crawl: fetch page data, detect
// unchanged pages, process content, and persist pages plus crawl metadata.
//
// Four modes cover the operational cases. Incremental compares the remote
// touched token against the stored one and skips unchanged pages without
// fetching content a second time. Force rewrites regardless. Comprehensive
// walks the full allpages listing. Curated crawls an explicit title list.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daedalus-fleet/elsie/internal/content"
	"github.com/daedalus-fleet/elsie/internal/store"
	"github.com/daedalus-fleet/elsie/internal/wiki"
)

// Mode selects the crawl strategy.
type Mode string

const (
	ModeIncremental   Mode = "incremental"
	ModeForce         Mode = "force"
	ModeComprehensive Mode = "comprehensive"
	ModeCurated       Mode = "curated"
)

// WikiAPI is the slice of the wiki client the ingestor uses.
type WikiAPI interface {
	CombinedPageData(ctx context.Context, title string) (*wiki.PageInfo, error)
	ParsedHTML(ctx context.Context, title string) (*wiki.Parsed, error)
	AllPageTitles(ctx context.Context) ([]string, error)
}

// PageStore is the slice of the store the ingestor uses.
type PageStore interface {
	StoredTouched(ctx context.Context, title string) (string, error)
	ShouldUpdate(ctx context.Context, title, newHash string) (bool, error)
	UpsertPage(ctx context.Context, p *store.Page) error
	UpsertMetadata(ctx context.Context, url, title, contentHash, status, lastError string) error
}

// Report counts the outcome of one crawl run.
type Report struct {
	Checked   int
	Updated   int
	Unchanged int
	New       int
	Failed    int
}

func (r Report) String() string {
	return fmt.Sprintf("checked=%d updated=%d unchanged=%d new=%d failed=%d",
		r.Checked, r.Updated, r.Unchanged, r.New, r.Failed)
}

// Ingestor drives the crawl.
type Ingestor struct {
	wiki      WikiAPI
	store     PageStore
	processor *content.Processor

	workers   int
	pageDelay time.Duration
	sleep     func(context.Context, time.Duration) error
}

// Option is a functional option for [New].
type Option func(*Ingestor)

// WithWorkers sets the crawl parallelism (default 3).
func WithWorkers(n int) Option {
	return func(i *Ingestor) {
		if n > 0 {
			i.workers = n
		}
	}
}

// WithPageDelay sets the per-page politeness delay (default 500ms).
func WithPageDelay(d time.Duration) Option {
	return func(i *Ingestor) { i.pageDelay = d }
}

// New returns an Ingestor over the given wiki client, store and processor.
func New(w WikiAPI, s PageStore, p *content.Processor, opts ...Option) *Ingestor {
	ing := &Ingestor{
		wiki:      w,
		store:     s,
		processor: p,
		workers:   3,
		pageDelay: 500 * time.Millisecond,
		sleep:     sleepCtx,
	}
	for _, o := range opts {
		o(ing)
	}
	return ing
}

// Run crawls titles according to mode. In comprehensive mode the title list
// is fetched from the wiki and the input list is ignored. Individual page
// failures are recorded in metadata and counted, never fatal; only a failure
// to list pages aborts the run.
func (i *Ingestor) Run(ctx context.Context, mode Mode, titles []string, limit int) (*Report, error) {
	if mode == ModeComprehensive {
		all, err := i.wiki.AllPageTitles(ctx)
		if err != nil {
			return nil, fmt.Errorf("ingest: list pages: %w", err)
		}
		titles = all
	}
	if limit > 0 && len(titles) > limit {
		titles = titles[:limit]
	}

	slog.Info("crawl starting", "mode", mode, "pages", len(titles), "workers", i.workers)
	start := time.Now()

	var (
		mu     sync.Mutex
		report Report
	)
	record := func(out outcome) {
		mu.Lock()
		defer mu.Unlock()
		report.Checked++
		switch out {
		case outcomeUpdated:
			report.Updated++
		case outcomeUnchanged:
			report.Unchanged++
		case outcomeNew:
			report.New++
		case outcomeFailed:
			report.Failed++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.workers)
	for _, title := range titles {
		g.Go(func() error {
			out := i.crawlPage(gctx, mode, title)
			record(out)
			if i.pageDelay > 0 {
				return i.sleep(gctx, i.pageDelay)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &report, fmt.Errorf("ingest: %w", err)
	}

	slog.Info("crawl finished", "report", report.String(), "took", time.Since(start))
	return &report, nil
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeUpdated
	outcomeNew
	outcomeFailed
)

// crawlPage runs the full pipeline for one title. Errors never propagate;
// they land in page_metadata with status=error so the next run retries.
func (i *Ingestor) crawlPage(ctx context.Context, mode Mode, title string) outcome {
	info, err := i.wiki.CombinedPageData(ctx, title)
	if err != nil {
		slog.Warn("page fetch failed", "title", title, "err", err)
		i.recordError(ctx, "", title, err)
		return outcomeFailed
	}
	if !info.Exists {
		slog.Debug("page absent on remote", "title", title)
		return outcomeUnchanged
	}

	storedTouched, err := i.store.StoredTouched(ctx, info.Title)
	if err != nil {
		i.recordError(ctx, info.CanonicalURL, info.Title, err)
		return outcomeFailed
	}
	isNew := storedTouched == ""

	// Incremental skip: the remote touched token is unchanged, so the
	// content cannot have changed. Metadata still records the crawl.
	if mode != ModeForce && !isNew && storedTouched == info.Touched {
		if err := i.store.UpsertMetadata(ctx, info.CanonicalURL, info.Title, "", "active", ""); err != nil {
			slog.Warn("metadata upsert failed", "title", info.Title, "err", err)
		}
		return outcomeUnchanged
	}

	processed, err := i.processPage(ctx, info)
	if err != nil {
		i.recordError(ctx, info.CanonicalURL, info.Title, err)
		return outcomeFailed
	}
	hash := contentHash(processed)

	update := true
	if mode != ModeForce {
		update, err = i.store.ShouldUpdate(ctx, info.Title, hash)
		if err != nil {
			i.recordError(ctx, info.CanonicalURL, info.Title, err)
			return outcomeFailed
		}
	}

	if update {
		page := &store.Page{
			URL:         info.CanonicalURL,
			Title:       info.Title,
			Content:     processed,
			RawContent:  processed,
			Categories:  info.Categories,
			ContentHash: hash,
			Touched:     info.Touched,
			LastRevID:   info.LastRevID,
		}
		if err := i.store.UpsertPage(ctx, page); err != nil {
			i.recordError(ctx, info.CanonicalURL, info.Title, err)
			return outcomeFailed
		}
	}

	if err := i.store.UpsertMetadata(ctx, info.CanonicalURL, info.Title, hash, "active", ""); err != nil {
		slog.Warn("metadata upsert failed", "title", info.Title, "err", err)
	}

	switch {
	case !update:
		return outcomeUnchanged
	case isNew:
		return outcomeNew
	default:
		return outcomeUpdated
	}
}

// processPage converts raw page data to the stored markdown form. Rendered
// HTML is fetched only when the extract alone is too thin to structure,
// which spares the parse endpoint on the common path.
func (i *Ingestor) processPage(ctx context.Context, info *wiki.PageInfo) (string, error) {
	data := content.PageData{
		Extract:    info.Extract,
		Wikitext:   info.Wikitext,
		Categories: info.Categories,
	}

	if len(info.Extract) < 200 && !i.processor.IsLogPage(info.Categories) {
		parsed, err := i.wiki.ParsedHTML(ctx, info.Title)
		if err != nil {
			slog.Debug("parse fallback unavailable", "title", info.Title, "err", err)
		} else {
			data.HTML = parsed.HTML
			for _, s := range parsed.Sections {
				data.Sections = append(data.Sections, content.Section{Line: s.Line, Level: s.Level})
			}
		}
	}

	processed := i.processor.Process(info.Title, data)
	if processed == "" {
		return "", fmt.Errorf("processing yielded no content")
	}
	return processed, nil
}

func (i *Ingestor) recordError(ctx context.Context, url, title string, cause error) {
	if url == "" {
		url = "title:" + title
	}
	if err := i.store.UpsertMetadata(ctx, url, title, "", "error", cause.Error()); err != nil {
		slog.Warn("error metadata upsert failed", "title", title, "err", err)
	}
}

func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
