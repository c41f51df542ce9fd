package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/daedalus-fleet/elsie/internal/query"
)

// SearchOptions narrows a page search.
type SearchOptions struct {
	PageType string
	ShipName string
	Limit    int

	// ForceMissionLogsOnly restricts every stage to mission-log rows.
	ForceMissionLogsOnly bool

	// Categories, when non-empty, adds a category-intersection stage ahead
	// of plain full-text search. An empty list skips that stage entirely;
	// it never reaches Postgres as an empty-array operand.
	Categories []string
}

const defaultSearchLimit = 10

// SearchPages runs the staged search for q: direct ship-name match,
// category-intersection + title FTS, title FTS, content FTS, and a LIKE
// fallback. Stages merge in order, deduplicated by id, capped at the limit.
// Every returned row's access counter is bumped in the same transaction.
// Results are memoised briefly; cache hits do not bump counters.
func (s *Store) SearchPages(ctx context.Context, q string, opts SearchOptions) ([]Page, error) {
	if opts.Limit <= 0 {
		opts.Limit = defaultSearchLimit
	}

	key := cacheKey(q, opts)
	if cached, ok := s.cache.get(key); ok {
		return cached, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: search: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		merged []Page
		seen   = make(map[int64]bool)
	)
	add := func(pages []Page) {
		for _, p := range pages {
			if seen[p.ID] || len(merged) >= opts.Limit {
				continue
			}
			seen[p.ID] = true
			merged = append(merged, p)
		}
	}

	for _, stage := range s.searchStages(q, opts) {
		if len(merged) >= opts.Limit {
			break
		}
		if stage.sql == "" {
			continue
		}
		rows, err := tx.Query(ctx, stage.sql, stage.args...)
		if err != nil {
			return nil, fmt.Errorf("store: search stage %s: %w", stage.name, err)
		}
		pages, err := collectPages(rows)
		if err != nil {
			return nil, fmt.Errorf("store: search stage %s: %w", stage.name, err)
		}
		add(pages)
	}

	if err := s.bumpAccessCount(ctx, tx, merged); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: search: commit: %w", err)
	}

	s.cache.put(key, merged)
	return merged, nil
}

type searchStage struct {
	name string
	sql  string
	args []any
}

// searchStages builds the staged queries in merge order. A stage whose
// precondition fails (no ship in the query, empty category list) comes back
// with an empty sql and is skipped.
func (s *Store) searchStages(q string, opts SearchOptions) []searchStage {
	filter, filterArgs := searchFilter(opts)

	withFilter := func(base string, args ...any) (string, []any) {
		n := len(args)
		for i, a := range filterArgs {
			base += strings.ReplaceAll(filter[i], "?", fmt.Sprintf("$%d", n+i+1))
			args = append(args, a)
		}
		base += fmt.Sprintf(" ORDER BY rank DESC, log_date DESC NULLS LAST LIMIT %d", opts.Limit)
		return base, args
	}

	stages := make([]searchStage, 0, 5)

	// Stage 1: a fleet ship named in the query pins the ship column.
	if ship := s.fleet.ShipFromTitle(q); ship != "" {
		sql, args := withFilter(`SELECT `+pageColumns+`, 1.0 AS rank
			FROM wiki_pages WHERE ship_name = $1`, ship)
		stages = append(stages, searchStage{"ship-name", sql, args})
	} else {
		stages = append(stages, searchStage{name: "ship-name"})
	}

	// Stage 2: category intersection + title FTS.
	if len(opts.Categories) > 0 {
		sql, args := withFilter(`SELECT `+pageColumns+`,
			ts_rank(to_tsvector('english', title), plainto_tsquery('english', $1)) AS rank
			FROM wiki_pages
			WHERE categories && $2
			  AND to_tsvector('english', title) @@ plainto_tsquery('english', $1)`,
			q, opts.Categories)
		stages = append(stages, searchStage{"category-title", sql, args})
	} else {
		stages = append(stages, searchStage{name: "category-title"})
	}

	// Stage 3: title FTS.
	sql, args := withFilter(`SELECT `+pageColumns+`,
		ts_rank(to_tsvector('english', title), plainto_tsquery('english', $1)) AS rank
		FROM wiki_pages
		WHERE to_tsvector('english', title) @@ plainto_tsquery('english', $1)`, q)
	stages = append(stages, searchStage{"title-fts", sql, args})

	// Stage 4: content FTS.
	sql, args = withFilter(`SELECT `+pageColumns+`,
		ts_rank(to_tsvector('english', raw_content), plainto_tsquery('english', $1)) AS rank
		FROM wiki_pages
		WHERE to_tsvector('english', raw_content) @@ plainto_tsquery('english', $1)`, q)
	stages = append(stages, searchStage{"content-fts", sql, args})

	// Stage 5: LIKE fallback catches what stemming misses.
	sql, args = withFilter(`SELECT `+pageColumns+`, 0.1 AS rank
		FROM wiki_pages
		WHERE title ILIKE '%' || $1 || '%' OR raw_content ILIKE '%' || $1 || '%'`, q)
	stages = append(stages, searchStage{"like", sql, args})

	return stages
}

// searchFilter renders the optional filters as AND clauses with ? parameter
// placeholders, renumbered by the caller.
func searchFilter(opts SearchOptions) ([]string, []any) {
	var clauses []string
	var args []any
	if opts.ForceMissionLogsOnly {
		clauses = append(clauses, " AND page_type = ?")
		args = append(args, "mission_log")
	} else if opts.PageType != "" {
		clauses = append(clauses, " AND page_type = ?")
		args = append(args, opts.PageType)
	}
	if opts.ShipName != "" {
		clauses = append(clauses, " AND ship_name = ?")
		args = append(args, opts.ShipName)
	}
	return clauses, args
}

func (s *Store) bumpAccessCount(ctx context.Context, tx pgx.Tx, pages []Page) error {
	if len(pages) == 0 {
		return nil
	}
	ids := make([]int64, len(pages))
	for i, p := range pages {
		ids[i] = p.ID
	}
	_, err := tx.Exec(ctx,
		`UPDATE wiki_pages SET content_accessed = content_accessed + 1 WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("store: bump access count: %w", err)
	}
	return nil
}

// GetRecentLogs returns mission logs newest-first, scoped to ship when given.
// Category-guided when the fleet config has ship-log categories; otherwise
// falls back to the page_type column.
func (s *Store) GetRecentLogs(ctx context.Context, ship string, limit int) ([]Page, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	where, args := logPredicate(s.fleet.ShipLogCategories(), ship)
	rows, err := s.pool.Query(ctx,
		`SELECT `+pageColumns+` FROM wiki_pages WHERE `+where+
			fmt.Sprintf(` ORDER BY log_date DESC NULLS LAST LIMIT %d`, limit),
		args...)
	if err != nil {
		return nil, fmt.Errorf("store: recent logs: %w", err)
	}
	pages, err := collectPages(rows)
	if err != nil {
		return nil, fmt.Errorf("store: recent logs: %w", err)
	}
	return pages, nil
}

// GetSelectedLogs returns mission logs matching a selection predicate
// (latest, first, random, or a date window), scoped to ship when given.
func (s *Store) GetSelectedLogs(ctx context.Context, sel query.Selection, ship string, limit int) ([]Page, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	where, args := logPredicate(s.fleet.ShipLogCategories(), ship)
	order := `log_date DESC NULLS LAST`

	switch sel {
	case query.SelectLatest:
		// default order
	case query.SelectFirst:
		order = `log_date ASC NULLS LAST`
	case query.SelectRandom:
		order = `RANDOM()`
	case query.SelectToday:
		where += ` AND log_date = CURRENT_DATE`
	case query.SelectYesterday:
		where += ` AND log_date = CURRENT_DATE - 1`
	case query.SelectThisWeek:
		where += ` AND log_date >= date_trunc('week', CURRENT_DATE)::date`
	case query.SelectLastWeek:
		where += ` AND log_date >= (date_trunc('week', CURRENT_DATE) - interval '7 days')::date
		           AND log_date <  date_trunc('week', CURRENT_DATE)::date`
	default:
		return nil, fmt.Errorf("store: selected logs: unknown selection %q", sel)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+pageColumns+` FROM wiki_pages WHERE `+where+
			fmt.Sprintf(` ORDER BY %s LIMIT %d`, order, limit),
		args...)
	if err != nil {
		return nil, fmt.Errorf("store: selected logs: %w", err)
	}
	pages, err := collectPages(rows)
	if err != nil {
		return nil, fmt.Errorf("store: selected logs: %w", err)
	}
	return pages, nil
}

// logPredicate builds the WHERE clause identifying mission-log rows. With an
// empty category list the page_type column is authoritative; an empty array
// must never reach the && operator.
func logPredicate(categories []string, ship string) (string, []any) {
	var args []any
	where := `page_type = 'mission_log'`
	if len(categories) > 0 {
		args = append(args, categories)
		where = fmt.Sprintf(`(categories && $%d OR page_type = 'mission_log')`, len(args))
	}
	if ship != "" {
		args = append(args, ship)
		where += fmt.Sprintf(` AND ship_name = $%d`, len(args))
	}
	return where, args
}
