// Package store provides the PostgreSQL-backed page store for the wiki
// ingestion pipeline and the retrieval engine.
//
// Two tables are owned here: wiki_pages holds the processed content of every
// crawled page (chunked when oversized), page_metadata tracks crawl state per
// URL for incremental-update detection. [Migrate] creates both idempotently.
//
// Usage:
//
//	st, err := store.New(ctx, dsn, fleetMap)
//	if err != nil { … }
//	defer st.Close()
//
//	rows, _ := st.SearchPages(ctx, "stardancer nebula survey", store.SearchOptions{Limit: 5})
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// DDL — wiki pages
// ─────────────────────────────────────────────────────────────────────────────

const ddlWikiPages = `
CREATE TABLE IF NOT EXISTS wiki_pages (
    id               SERIAL       PRIMARY KEY,
    url              TEXT         UNIQUE NOT NULL,
    title            TEXT         NOT NULL,
    content          TEXT,
    raw_content      TEXT         NOT NULL,
    page_type        TEXT,
    ship_name        TEXT,
    log_date         DATE,
    categories       TEXT[],
    content_hash     TEXT,
    touched          TEXT,
    lastrevid        BIGINT,
    content_accessed BIGINT       DEFAULT 0,
    created_at       TIMESTAMPTZ  DEFAULT now(),
    updated_at       TIMESTAMPTZ  DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_wiki_pages_title_fts
    ON wiki_pages USING GIN (to_tsvector('english', title));

CREATE INDEX IF NOT EXISTS idx_wiki_pages_content_fts
    ON wiki_pages USING GIN (to_tsvector('english', raw_content));

CREATE INDEX IF NOT EXISTS idx_wiki_pages_categories
    ON wiki_pages USING GIN (categories);

CREATE INDEX IF NOT EXISTS idx_wiki_pages_ship_name ON wiki_pages (ship_name);
CREATE INDEX IF NOT EXISTS idx_wiki_pages_log_date  ON wiki_pages (log_date);
CREATE INDEX IF NOT EXISTS idx_wiki_pages_page_type ON wiki_pages (page_type);
`

// ─────────────────────────────────────────────────────────────────────────────
// DDL — crawl metadata
// ─────────────────────────────────────────────────────────────────────────────

const ddlPageMetadata = `
CREATE TABLE IF NOT EXISTS page_metadata (
    url           TEXT         PRIMARY KEY,
    title         TEXT,
    content_hash  TEXT,
    last_crawled  TIMESTAMPTZ,
    crawl_count   BIGINT       DEFAULT 0,
    status        TEXT         CHECK (status IN ('active', 'error')),
    last_error    TEXT,
    last_modified TIMESTAMPTZ  DEFAULT now()
);
`

// Migrate creates all tables and indexes if they do not yet exist. It is safe
// to call on every startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlWikiPages, ddlPageMetadata} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}
