package store

import (
	"context"
	"fmt"
	"regexp"
)

// CleanupMissionLogShipNames assigns ship_name to mission-log rows that are
// missing one, by matching fleet ship names against the title in fleet-config
// order. Idempotent: rows that already carry a ship are untouched, so a
// second run changes nothing.
func (s *Store) CleanupMissionLogShipNames(ctx context.Context) (int64, error) {
	var fixed int64
	for _, ship := range s.fleet.Ships() {
		pattern := `\m` + regexp.QuoteMeta(ship) + `\M`
		tag, err := s.pool.Exec(ctx, `
			UPDATE wiki_pages
			   SET ship_name = $1, updated_at = now()
			 WHERE page_type = 'mission_log'
			   AND (ship_name IS NULL OR ship_name = '')
			   AND title ~* $2`,
			ship, pattern)
		if err != nil {
			return fixed, fmt.Errorf("store: cleanup ship names (%s): %w", ship, err)
		}
		fixed += tag.RowsAffected()
	}
	if fixed > 0 {
		s.cache.clear()
	}
	return fixed, nil
}

// CleanupSeedData removes leftover development rows: titles matching seed or
// example patterns, and near-empty general pages.
func (s *Store) CleanupSeedData(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM wiki_pages
		 WHERE title ~* '\m(seed|sample|example|test page|lorem ipsum)\M'
		    OR (length(raw_content) < 50 AND $1 = ANY(categories))`,
		"General Information")
	if err != nil {
		return 0, fmt.Errorf("store: cleanup seed data: %w", err)
	}
	if tag.RowsAffected() > 0 {
		s.cache.clear()
	}
	return tag.RowsAffected(), nil
}
