// Package wiki provides typed clients for the fleet wiki's MediaWiki API and
// for the external Federation archive used as a retrieval fallback.
//
// The main [Client] exposes three query shapes: a combined
// extracts+info+revisions query for page metadata and source, the parse
// endpoint for rendered HTML (used only when the extract is insufficient),
// and a paginated allpages listing. A missing page is not an error; the
// combined query reports Exists=false when the API returns pageid -1.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultUserAgent mimics a browser; some MediaWiki hosts reject the Go
// default agent outright.
const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// paginationDelay spaces successive allpages requests.
const paginationDelay = time.Second

// parseRetryDelay spaces the bounded retries of the parse endpoint.
const parseRetryDelay = time.Second

// parseAttempts bounds how often ParsedHTML retries a failing request.
const parseAttempts = 2

// PageInfo is the result of the combined page-data query.
type PageInfo struct {
	Title        string
	PageID       int64
	Extract      string
	Wikitext     string
	Categories   []string
	CanonicalURL string
	Touched      string
	LastRevID    int64

	// Exists is false when the wiki reports the page as absent
	// (pageid -1 / "missing"). The other fields are zero in that case.
	Exists bool
}

// Parsed is the result of the parse-endpoint query.
type Parsed struct {
	HTML         string
	Sections     []Section
	DisplayTitle string
}

// Section is one declared section heading from the parse endpoint.
type Section struct {
	Line  string
	Level int
}

// Client talks to one MediaWiki api.php endpoint.
// All methods are safe for concurrent use.
type Client struct {
	apiURL    string
	http      *http.Client
	userAgent string
	sleep     func(context.Context, time.Duration) error
}

// Option is a functional option for [NewClient].
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client (30 s timeout).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithUserAgent overrides the browser-like default User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient returns a Client for the api.php endpoint at apiURL.
func NewClient(apiURL string, opts ...Option) *Client {
	c := &Client{
		apiURL:    apiURL,
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: defaultUserAgent,
		sleep:     sleepCtx,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CombinedPageData fetches extract, raw wikitext, categories, canonical URL,
// and change tokens for title in a single query. Single-shot: transient
// failures surface to the caller, who decides whether the page is retried on
// a later crawl.
func (c *Client) CombinedPageData(ctx context.Context, title string) (*PageInfo, error) {
	params := url.Values{
		"action":          {"query"},
		"format":          {"json"},
		"formatversion":   {"2"},
		"titles":          {title},
		"prop":            {"extracts|info|revisions|categories"},
		"explaintext":     {"1"},
		"exsectionformat": {"plain"},
		"inprop":          {"url|touched"},
		"rvprop":          {"content|ids"},
		"rvslots":         {"*"},
		"cllimit":         {"500"},
	}

	var resp combinedResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("wiki: combined query for %q: %w", title, err)
	}
	if len(resp.Query.Pages) == 0 {
		return nil, fmt.Errorf("wiki: combined query for %q: empty pages array", title)
	}

	page := resp.Query.Pages[0]
	if page.Missing || page.PageID <= 0 {
		return &PageInfo{Title: title, Exists: false}, nil
	}

	info := &PageInfo{
		Title:        page.Title,
		PageID:       page.PageID,
		Extract:      page.Extract,
		CanonicalURL: page.CanonicalURL,
		Touched:      page.Touched,
		LastRevID:    page.LastRevID,
		Exists:       true,
	}
	if len(page.Revisions) > 0 {
		info.Wikitext = page.Revisions[0].Slots.Main.Content
	}
	for _, cat := range page.Categories {
		info.Categories = append(info.Categories, trimCategoryPrefix(cat.Title))
	}
	return info, nil
}

// ParsedHTML fetches the rendered HTML and declared sections for title,
// retrying transient failures up to parseAttempts times with a bounded
// backoff.
func (c *Client) ParsedHTML(ctx context.Context, title string) (*Parsed, error) {
	params := url.Values{
		"action":             {"parse"},
		"format":             {"json"},
		"formatversion":      {"2"},
		"page":               {title},
		"prop":               {"text|sections|displaytitle"},
		"disableeditsection": {"1"},
		"wrapoutputclass":    {""},
	}

	var lastErr error
	for attempt := 1; attempt <= parseAttempts; attempt++ {
		var resp parseResponse
		err := c.get(ctx, params, &resp)
		if err == nil {
			p := &Parsed{
				HTML:         resp.Parse.Text,
				DisplayTitle: resp.Parse.DisplayTitle,
			}
			for _, s := range resp.Parse.Sections {
				p.Sections = append(p.Sections, Section{Line: s.Line, Level: s.levelInt()})
			}
			return p, nil
		}
		lastErr = err
		if attempt < parseAttempts {
			if err := c.sleep(ctx, parseRetryDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("wiki: parse %q after %d attempts: %w", title, parseAttempts, lastErr)
}

// AllPageTitles walks the allpages listing, 500 titles per request with the
// apcontinue continuation token, pausing between pages for API politeness.
func (c *Client) AllPageTitles(ctx context.Context) ([]string, error) {
	var titles []string
	cont := ""
	for {
		params := url.Values{
			"action":        {"query"},
			"format":        {"json"},
			"formatversion": {"2"},
			"list":          {"allpages"},
			"aplimit":       {"500"},
		}
		if cont != "" {
			params.Set("apcontinue", cont)
		}

		var resp allPagesResponse
		if err := c.get(ctx, params, &resp); err != nil {
			return nil, fmt.Errorf("wiki: allpages: %w", err)
		}
		for _, p := range resp.Query.AllPages {
			titles = append(titles, p.Title)
		}

		cont = resp.Continue.APContinue
		if cont == "" {
			return titles, nil
		}
		if err := c.sleep(ctx, paginationDelay); err != nil {
			return nil, err
		}
	}
}

// get performs one GET against the API and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// sleepCtx waits for d or until ctx is cancelled.
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

// trimCategoryPrefix drops the localised "Category:" namespace prefix.
func trimCategoryPrefix(title string) string {
	if i := strings.Index(title, ":"); i >= 0 {
		return title[i+1:]
	}
	return title
}
