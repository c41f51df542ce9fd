package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const upsertPageSQL = `
INSERT INTO wiki_pages
    (url, title, content, raw_content, page_type, ship_name, log_date,
     categories, content_hash, touched, lastrevid, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
ON CONFLICT (url) DO UPDATE SET
    title        = EXCLUDED.title,
    content      = EXCLUDED.content,
    raw_content  = EXCLUDED.raw_content,
    page_type    = EXCLUDED.page_type,
    ship_name    = EXCLUDED.ship_name,
    log_date     = EXCLUDED.log_date,
    categories   = EXCLUDED.categories,
    content_hash = EXCLUDED.content_hash,
    touched      = EXCLUDED.touched,
    lastrevid    = EXCLUDED.lastrevid,
    updated_at   = now()
`

// UpsertPage classifies p, splits oversized content into parts, and writes
// every part in a single transaction. Part rows reuse the page URL with a
// #part-k suffix; stale parts from a previous, longer version are removed in
// the same transaction.
func (s *Store) UpsertPage(ctx context.Context, p *Page) error {
	s.classify(p)

	chunks := splitContent(p.Content, s.maxContentLen)
	n := len(chunks)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: upsert %q: begin: %w", p.Title, err)
	}
	defer tx.Rollback(ctx)

	for i, chunk := range chunks {
		_, err := tx.Exec(ctx, upsertPageSQL,
			partURL(p.URL, i+1, n), partTitle(p.Title, i+1, n),
			chunk, p.RawContent, p.PageType, nullable(p.ShipName), p.LogDate,
			p.Categories, p.ContentHash, p.Touched, p.LastRevID)
		if err != nil {
			return fmt.Errorf("store: upsert %q part %d/%d: %w", p.Title, i+1, n, err)
		}
	}

	// Drop parts beyond the current count (the page shrank since last crawl).
	_, err = tx.Exec(ctx,
		`DELETE FROM wiki_pages
		  WHERE url LIKE $1 || '#part-%'
		    AND split_part(url, '#part-', 2)::int > $2`,
		p.URL, n)
	if err != nil {
		return fmt.Errorf("store: upsert %q: prune parts: %w", p.Title, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: upsert %q: commit: %w", p.Title, err)
	}
	s.cache.clear()
	return nil
}

// upsertMetadataSQL keeps the stored content_hash when a crawl passes none:
// touched-token skips and failures record the attempt without recomputing the
// hash, and overwriting it with NULL would force a content rewrite on the
// next crawl.
const upsertMetadataSQL = `
INSERT INTO page_metadata
    (url, title, content_hash, last_crawled, crawl_count, status, last_error, last_modified)
VALUES ($1, $2, $3, now(), 1, $4, $5, now())
ON CONFLICT (url) DO UPDATE SET
    title         = EXCLUDED.title,
    content_hash  = COALESCE(EXCLUDED.content_hash, page_metadata.content_hash),
    last_crawled  = now(),
    crawl_count   = page_metadata.crawl_count + 1,
    status        = EXCLUDED.status,
    last_error    = EXCLUDED.last_error,
    last_modified = now()
`

// UpsertMetadata records one crawl attempt for url. Every crawl bumps
// crawl_count exactly once, whether or not page content changed; failures
// store status=error with the message. An empty contentHash leaves any
// previously stored hash in place.
func (s *Store) UpsertMetadata(ctx context.Context, url, title, contentHash, status, lastError string) error {
	_, err := s.pool.Exec(ctx, upsertMetadataSQL,
		url, title, nullable(contentHash), status, nullable(lastError))
	if err != nil {
		return fmt.Errorf("store: upsert metadata %q: %w", url, err)
	}
	return nil
}

// ShouldUpdate reports whether the page needs a content write: true when no
// metadata exists yet or when the stored content hash differs from newHash.
func (s *Store) ShouldUpdate(ctx context.Context, title, newHash string) (bool, error) {
	var stored *string
	err := s.pool.QueryRow(ctx,
		`SELECT content_hash FROM page_metadata WHERE title = $1`, title).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: should update %q: %w", title, err)
	}
	return stored == nil || *stored != newHash, nil
}

// StoredTouched returns the last-seen MediaWiki touched token for title,
// or "" when the page has never been stored.
func (s *Store) StoredTouched(ctx context.Context, title string) (string, error) {
	var touched *string
	err := s.pool.QueryRow(ctx,
		`SELECT touched FROM wiki_pages WHERE title = $1`, title).Scan(&touched)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: stored touched %q: %w", title, err)
	}
	if touched == nil {
		return "", nil
	}
	return *touched, nil
}

// nullable maps "" to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
