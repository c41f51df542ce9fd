package store

import (
	"strings"
	"testing"
	"time"
)

func TestSplitContentShortContentUntouched(t *testing.T) {
	parts := splitContent("short document", 100)
	if len(parts) != 1 || parts[0] != "short document" {
		t.Errorf("parts = %v", parts)
	}
}

func TestSplitContentOnHeadings(t *testing.T) {
	content := "**Title**\nintro text\n## Alpha\n" + strings.Repeat("a ", 60) +
		"\n## Beta\n" + strings.Repeat("b ", 60)

	parts := splitContent(content, 150)
	if len(parts) < 2 {
		t.Fatalf("expected a heading split, got %d part(s)", len(parts))
	}
	for i, p := range parts {
		if len(p) > 150 {
			t.Errorf("part %d is %d chars, over the limit", i, len(p))
		}
	}
	// Headings stay attached to their section.
	joined := strings.Join(parts, "")
	if joined != content {
		t.Error("splitting must not lose or duplicate content")
	}
	for _, p := range parts[1:] {
		if strings.HasSuffix(p, "\n## ") || strings.HasSuffix(p, "\n### ") {
			t.Errorf("part ends with a dangling heading marker: %q", p)
		}
	}
}

func TestSplitContentNeverMidWord(t *testing.T) {
	content := strings.Repeat("warpcore antimatter containment ", 50)
	for _, p := range splitContent(content, 90) {
		if len(p) > 90 {
			t.Errorf("part over limit: %d chars", len(p))
		}
		for _, w := range strings.Fields(p) {
			switch w {
			case "warpcore", "antimatter", "containment":
			default:
				t.Fatalf("word broken mid-split: %q", w)
			}
		}
	}
}

func TestPartTitlesAndURLs(t *testing.T) {
	if got := partTitle("Mission Log 2025-03-14", 1, 1); got != "Mission Log 2025-03-14" {
		t.Errorf("single part keeps bare title, got %q", got)
	}
	if got := partTitle("Mission Log", 2, 3); got != "Mission Log (Part 2/3)" {
		t.Errorf("partTitle = %q", got)
	}
	if got := partURL("https://w/wiki/P", 1, 3); got != "https://w/wiki/P" {
		t.Errorf("first part keeps bare url, got %q", got)
	}
	if got := partURL("https://w/wiki/P", 3, 3); got != "https://w/wiki/P#part-3" {
		t.Errorf("partURL = %q", got)
	}
}

func TestLogPredicateEmptyCategories(t *testing.T) {
	where, args := logPredicate(nil, "")
	if strings.Contains(where, "&&") {
		t.Errorf("empty category list must not reach the array operator: %q", where)
	}
	if len(args) != 0 {
		t.Errorf("args = %v", args)
	}

	where, args = logPredicate([]string{"Stardancer Logs"}, "Stardancer")
	if !strings.Contains(where, "categories && $1") || !strings.Contains(where, "ship_name = $2") {
		t.Errorf("where = %q", where)
	}
	if len(args) != 2 {
		t.Errorf("args = %v", args)
	}
}

func TestMetadataUpsertKeepsHashWhenNonePassed(t *testing.T) {
	// Touched-token skips and crawl failures pass no hash; the upsert must
	// carry the stored one forward instead of nulling it, or every following
	// crawl would rewrite unchanged pages.
	if !strings.Contains(upsertMetadataSQL, "COALESCE(EXCLUDED.content_hash, page_metadata.content_hash)") {
		t.Error("metadata upsert must coalesce an absent content_hash with the stored value")
	}
	if nullable("") != nil {
		t.Error("empty hash must bind as SQL NULL for the coalesce to apply")
	}
}

func TestSearchCacheExpiry(t *testing.T) {
	c := newSearchCache(time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	c.put("k", []Page{{ID: 1, Title: "A"}})
	if got, ok := c.get("k"); !ok || len(got) != 1 {
		t.Fatal("fresh entry should hit")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.get("k"); ok {
		t.Error("expired entry should miss")
	}
}

func TestSearchCacheClear(t *testing.T) {
	c := newSearchCache(time.Minute)
	c.put("k", []Page{{ID: 1}})
	c.clear()
	if _, ok := c.get("k"); ok {
		t.Error("cleared cache should miss")
	}
}

func TestSearchCacheDisabled(t *testing.T) {
	c := newSearchCache(0)
	c.put("k", []Page{{ID: 1}})
	if _, ok := c.get("k"); ok {
		t.Error("zero TTL disables the cache")
	}
}

func TestCacheKeyDistinguishesOptions(t *testing.T) {
	a := cacheKey("nebula", SearchOptions{Limit: 5})
	b := cacheKey("nebula", SearchOptions{Limit: 5, ForceMissionLogsOnly: true})
	cc := cacheKey("nebula", SearchOptions{Limit: 5, Categories: []string{"Stardancer Logs"}})
	if a == b || a == cc || b == cc {
		t.Errorf("keys collide: %q %q %q", a, b, cc)
	}
}
