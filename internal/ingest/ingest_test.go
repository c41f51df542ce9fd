package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"testing"

	"github.com/daedalus-fleet/elsie/internal/content"
	"github.com/daedalus-fleet/elsie/internal/fleet"
	"github.com/daedalus-fleet/elsie/internal/store"
	"github.com/daedalus-fleet/elsie/internal/wiki"
)

type fakeWiki struct {
	pages    map[string]*wiki.PageInfo
	allErr   error
	fetchErr map[string]error
}

func (f *fakeWiki) CombinedPageData(_ context.Context, title string) (*wiki.PageInfo, error) {
	if err := f.fetchErr[title]; err != nil {
		return nil, err
	}
	if p, ok := f.pages[title]; ok {
		return p, nil
	}
	return &wiki.PageInfo{Title: title, Exists: false}, nil
}

func (f *fakeWiki) ParsedHTML(context.Context, string) (*wiki.Parsed, error) {
	return nil, errors.New("no parse backend in tests")
}

func (f *fakeWiki) AllPageTitles(context.Context) ([]string, error) {
	if f.allErr != nil {
		return nil, f.allErr
	}
	titles := make([]string, 0, len(f.pages))
	for t := range f.pages {
		titles = append(titles, t)
	}
	return titles, nil
}

type metaRecord struct {
	hash, status, lastError string
	crawls                  int
}

type fakeStore struct {
	mu      sync.Mutex
	touched map[string]string
	meta    map[string]*metaRecord
	pages   []*store.Page
}

func newFakeStore() *fakeStore {
	return &fakeStore{touched: map[string]string{}, meta: map[string]*metaRecord{}}
}

func (f *fakeStore) StoredTouched(_ context.Context, title string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.touched[title], nil
}

func (f *fakeStore) ShouldUpdate(_ context.Context, title, newHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meta[title]
	return !ok || m.hash != newHash, nil
}

func (f *fakeStore) UpsertPage(_ context.Context, p *store.Page) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, p)
	f.touched[p.Title] = p.Touched
	return nil
}

func (f *fakeStore) UpsertMetadata(_ context.Context, url, title, hash, status, lastError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meta[title]
	if !ok {
		m = &metaRecord{}
		f.meta[title] = m
	}
	if hash != "" {
		m.hash = hash
	}
	m.status = status
	m.lastError = lastError
	m.crawls++
	return nil
}

func newIngestor(w WikiAPI, s PageStore) *Ingestor {
	proc := content.NewProcessor(fleet.New(fleet.DefaultConfig()))
	ing := New(w, s, proc, WithPageDelay(0), WithWorkers(2))
	return ing
}

func pageInfo(title, touched, text string) *wiki.PageInfo {
	return &wiki.PageInfo{
		Title:        title,
		PageID:       1,
		Extract:      text,
		Wikitext:     text,
		CanonicalURL: "https://w/wiki/" + title,
		Touched:      touched,
		LastRevID:    7,
		Exists:       true,
	}
}

func TestRunNewPage(t *testing.T) {
	w := &fakeWiki{pages: map[string]*wiki.PageInfo{
		"Risa": pageInfo("Risa", "T1", "Risa is a pleasure planet known across the quadrant for its resorts."),
	}}
	s := newFakeStore()

	rep, err := newIngestor(w, s).Run(context.Background(), ModeCurated, []string{"Risa"}, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.New != 1 || rep.Checked != 1 || rep.Failed != 0 {
		t.Errorf("report = %+v", rep)
	}
	if len(s.pages) != 1 || s.pages[0].Title != "Risa" {
		t.Fatalf("pages = %+v", s.pages)
	}
	if m := s.meta["Risa"]; m == nil || m.status != "active" || m.crawls != 1 {
		t.Errorf("meta = %+v", m)
	}
}

func TestRunIncrementalSkipOnTouched(t *testing.T) {
	w := &fakeWiki{pages: map[string]*wiki.PageInfo{
		"Risa": pageInfo("Risa", "T1", "Risa is a pleasure planet."),
	}}
	s := newFakeStore()
	s.touched["Risa"] = "T1"
	s.meta["Risa"] = &metaRecord{hash: "H1", status: "active", crawls: 1}

	rep, err := newIngestor(w, s).Run(context.Background(), ModeIncremental, []string{"Risa"}, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Unchanged != 1 || rep.Updated != 0 {
		t.Errorf("report = %+v", rep)
	}
	if len(s.pages) != 0 {
		t.Error("unchanged touched token must not write wiki_pages")
	}
	if s.meta["Risa"].crawls != 2 {
		t.Errorf("crawl_count should still increment, got %d", s.meta["Risa"].crawls)
	}
}

func TestRunIncrementalSkipOnEqualHash(t *testing.T) {
	text := "Risa is a pleasure planet."
	w := &fakeWiki{pages: map[string]*wiki.PageInfo{
		"Risa": pageInfo("Risa", "T2", text),
	}}
	s := newFakeStore()
	s.touched["Risa"] = "T1" // touched moved, content did not

	proc := content.NewProcessor(fleet.New(fleet.DefaultConfig()))
	processed := proc.Process("Risa", content.PageData{Extract: text, Wikitext: text})
	s.meta["Risa"] = &metaRecord{hash: contentHash(processed), status: "active", crawls: 1}

	rep, err := newIngestor(w, s).Run(context.Background(), ModeIncremental, []string{"Risa"}, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Unchanged != 1 {
		t.Errorf("report = %+v", rep)
	}
	if len(s.pages) != 0 {
		t.Error("hash-equal content must not write wiki_pages")
	}
	if s.meta["Risa"].crawls != 2 {
		t.Errorf("crawl_count should increment, got %d", s.meta["Risa"].crawls)
	}
}

func TestRunStoredHashCoversRawContent(t *testing.T) {
	w := &fakeWiki{pages: map[string]*wiki.PageInfo{
		"Risa": pageInfo("Risa", "T1", "Risa is a pleasure planet known across the quadrant for its resorts."),
	}}
	s := newFakeStore()

	if _, err := newIngestor(w, s).Run(context.Background(), ModeCurated, []string{"Risa"}, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(s.pages) != 1 {
		t.Fatalf("pages = %+v", s.pages)
	}
	p := s.pages[0]
	sum := sha256.Sum256([]byte(p.RawContent))
	if got := hex.EncodeToString(sum[:]); got != p.ContentHash {
		t.Errorf("content_hash = %q, want SHA-256 of raw_content %q", p.ContentHash, got)
	}
	if p.RawContent != p.Content {
		t.Error("raw_content must carry the normalized markdown, not the wiki source")
	}
}

func TestRunTouchedSkipKeepsStoredHash(t *testing.T) {
	text := "Risa is a pleasure planet."
	w := &fakeWiki{pages: map[string]*wiki.PageInfo{
		"Risa": pageInfo("Risa", "T1", text),
	}}
	s := newFakeStore()
	s.touched["Risa"] = "T1"

	proc := content.NewProcessor(fleet.New(fleet.DefaultConfig()))
	h := contentHash(proc.Process("Risa", content.PageData{Extract: text, Wikitext: text}))
	s.meta["Risa"] = &metaRecord{hash: h, status: "active", crawls: 1}

	// Crawl 1: touched unchanged. The skip records the attempt without a
	// recomputed hash and must not lose the stored one.
	ing := newIngestor(w, s)
	if _, err := ing.Run(context.Background(), ModeIncremental, []string{"Risa"}, 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := s.meta["Risa"].hash; got != h {
		t.Fatalf("touched skip must keep the stored hash, got %q", got)
	}

	// Crawl 2: touched moved but content did not. The kept hash still
	// matches, so no page rows are rewritten.
	w.pages["Risa"] = pageInfo("Risa", "T2", text)
	rep, err := ing.Run(context.Background(), ModeIncremental, []string{"Risa"}, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Unchanged != 1 || rep.Updated != 0 {
		t.Errorf("report = %+v", rep)
	}
	if len(s.pages) != 0 {
		t.Error("hash-equal content after a touched skip must not write wiki_pages")
	}
}

func TestRunForceRewrites(t *testing.T) {
	w := &fakeWiki{pages: map[string]*wiki.PageInfo{
		"Risa": pageInfo("Risa", "T1", "Risa is a pleasure planet."),
	}}
	s := newFakeStore()
	s.touched["Risa"] = "T1"
	s.meta["Risa"] = &metaRecord{hash: "whatever", status: "active", crawls: 3}

	rep, err := newIngestor(w, s).Run(context.Background(), ModeForce, []string{"Risa"}, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Updated != 1 {
		t.Errorf("report = %+v", rep)
	}
	if len(s.pages) != 1 {
		t.Error("force mode must rewrite the page")
	}
}

func TestRunFetchFailureRecordsErrorMetadata(t *testing.T) {
	w := &fakeWiki{
		pages:    map[string]*wiki.PageInfo{},
		fetchErr: map[string]error{"Broken": errors.New("remote unavailable")},
	}
	s := newFakeStore()

	rep, err := newIngestor(w, s).Run(context.Background(), ModeCurated, []string{"Broken"}, 0)
	if err != nil {
		t.Fatalf("page failures must not abort the run: %v", err)
	}
	if rep.Failed != 1 {
		t.Errorf("report = %+v", rep)
	}
	m := s.meta["Broken"]
	if m == nil || m.status != "error" || m.lastError == "" {
		t.Errorf("error metadata not recorded: %+v", m)
	}
}

func TestRunLimitCapsTitles(t *testing.T) {
	w := &fakeWiki{pages: map[string]*wiki.PageInfo{
		"A": pageInfo("A", "T", "Alpha quadrant trade routes and stations."),
		"B": pageInfo("B", "T", "Beta quadrant trade routes and stations."),
		"C": pageInfo("C", "T", "Gamma quadrant trade routes and stations."),
	}}
	s := newFakeStore()

	rep, err := newIngestor(w, s).Run(context.Background(), ModeCurated, []string{"A", "B", "C"}, 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.Checked != 2 {
		t.Errorf("checked = %d, want 2", rep.Checked)
	}
}

func TestRunComprehensiveListFailureAborts(t *testing.T) {
	w := &fakeWiki{allErr: errors.New("listing down")}
	s := newFakeStore()

	if _, err := newIngestor(w, s).Run(context.Background(), ModeComprehensive, nil, 0); err == nil {
		t.Fatal("listing failure must abort the run")
	}
}
