package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daedalus-fleet/elsie/internal/fleet"
)

const (
	// Startup connection retry budget. The database container regularly
	// comes up after the ingestor does.
	connectAttempts   = 30
	connectRetryDelay = 2 * time.Second

	// defaultMaxContentLen is the chunking threshold for processed content.
	defaultMaxContentLen = 15000

	defaultCacheTTL = 5 * time.Minute
)

// Store is the PostgreSQL-backed page store. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type Store struct {
	pool          *pgxpool.Pool
	fleet         *fleet.Map
	maxContentLen int
	cache         *searchCache
}

// Option is a functional option for [New].
type Option func(*Store)

// WithMaxContentLength overrides the chunking threshold in characters.
func WithMaxContentLength(n int) Option {
	return func(s *Store) { s.maxContentLen = n }
}

// WithCacheTTL overrides how long search results are memoised.
// A non-positive TTL disables the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Store) { s.cache = newSearchCache(ttl) }
}

// New connects to the database at dsn, retrying for up to a minute while the
// database comes up, and runs [Migrate].
func New(ctx context.Context, dsn string, fleetMap *fleet.Map, opts ...Option) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}

	if err := pingWithRetry(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	s := &Store{
		pool:          pool,
		fleet:         fleetMap,
		maxContentLen: defaultMaxContentLen,
		cache:         newSearchCache(defaultCacheTTL),
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks database connectivity. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func pingWithRetry(ctx context.Context, pool *pgxpool.Pool) error {
	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		lastErr = pool.Ping(ctx)
		if lastErr == nil {
			return nil
		}
		slog.Info("database not ready, retrying",
			"attempt", attempt, "of", connectAttempts, "err", lastErr)

		t := time.NewTimer(connectRetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return lastErr
}

// Stats summarises the stored corpus for the ingest --stats report.
type Stats struct {
	TotalPages   int64
	ByPageType   map[string]int64
	ErrorPages   int64
	LastCrawled  time.Time
	HasLastCrawl bool
}

// CollectStats reads corpus counters in a single round-trip per query.
func (s *Store) CollectStats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByPageType: make(map[string]int64)}

	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM wiki_pages`).Scan(&st.TotalPages); err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT coalesce(page_type, 'unknown'), count(*) FROM wiki_pages GROUP BY 1`)
	if err != nil {
		return nil, fmt.Errorf("store: stats by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pt string
		var n int64
		if err := rows.Scan(&pt, &n); err != nil {
			return nil, fmt.Errorf("store: stats by type: %w", err)
		}
		st.ByPageType[pt] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: stats by type: %w", err)
	}

	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM page_metadata WHERE status = 'error'`).Scan(&st.ErrorPages); err != nil {
		return nil, fmt.Errorf("store: stats errors: %w", err)
	}

	var last *time.Time
	if err := s.pool.QueryRow(ctx,
		`SELECT max(last_crawled) FROM page_metadata`).Scan(&last); err != nil {
		return nil, fmt.Errorf("store: stats last crawl: %w", err)
	}
	if last != nil {
		st.LastCrawled = *last
		st.HasLastCrawl = true
	}
	return st, nil
}

// collectPages is the shared row scanner for every page-returning query.
func collectPages(rows pgx.Rows) ([]Page, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Page, error) {
		var p Page
		err := row.Scan(&p.ID, &p.URL, &p.Title, &p.Content, &p.RawContent,
			&p.PageType, &p.ShipName, &p.LogDate, &p.Categories)
		return p, err
	})
}

// pageColumns is the SELECT list matching [collectPages].
const pageColumns = `id, url, title, coalesce(content, ''), raw_content,
	coalesce(page_type, ''), coalesce(ship_name, ''), log_date, categories`
