package wiki

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

// archiveTimeout bounds the whole archive round-trip. The archive is a
// best-effort fallback; a slow archive must not stall prompt assembly.
const archiveTimeout = 10 * time.Second

// ArchiveClient searches an external encyclopedic MediaWiki (Memory Alpha
// style) and formats the top results for prompt injection.
//
// Search is best-effort: timeouts and remote failures yield an empty string
// so the prompt builder can fall through to its no-information template.
type ArchiveClient struct {
	client *Client
}

// NewArchiveClient returns an ArchiveClient over the api.php endpoint at
// apiURL.
func NewArchiveClient(apiURL string, opts ...Option) *ArchiveClient {
	return &ArchiveClient{client: NewClient(apiURL, opts...)}
}

// Search runs a full-text search and fetches intro extracts for the top
// limit results. Each article renders as:
//
//	**Title** [Federation Archives]
//	<intro extract>
//
// The tag is emitted only when tagAsArchive is true. On any remote failure
// the formatted string is empty and the error is logged, not returned.
func (a *ArchiveClient) Search(ctx context.Context, query string, limit int, tagAsArchive bool) string {
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 3
	}

	titles, err := a.searchTitles(ctx, query, limit)
	if err != nil {
		slog.Warn("archive search failed", "query", query, "err", err)
		return ""
	}
	if len(titles) == 0 {
		return ""
	}

	extracts, err := a.fetchExtracts(ctx, titles)
	if err != nil {
		slog.Warn("archive extracts failed", "query", query, "err", err)
		return ""
	}

	var sb strings.Builder
	for _, title := range titles {
		intro := strings.TrimSpace(extracts[title])
		if intro == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("**")
		sb.WriteString(title)
		sb.WriteString("**")
		if tagAsArchive {
			sb.WriteString(" [Federation Archives]")
		}
		sb.WriteString("\n")
		sb.WriteString(intro)
	}
	return sb.String()
}

func (a *ArchiveClient) searchTitles(ctx context.Context, query string, limit int) ([]string, error) {
	params := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"list":          {"search"},
		"srsearch":      {query},
		"srlimit":       {fmt.Sprint(limit)},
		"srnamespace":   {"0"},
		"srprop":        {"snippet|titlesnippet"},
	}

	var resp searchResponse
	if err := a.client.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(resp.Query.Search))
	for _, hit := range resp.Query.Search {
		titles = append(titles, hit.Title)
	}
	return titles, nil
}

func (a *ArchiveClient) fetchExtracts(ctx context.Context, titles []string) (map[string]string, error) {
	params := url.Values{
		"action":        {"query"},
		"format":        {"json"},
		"formatversion": {"2"},
		"titles":        {strings.Join(titles, "|")},
		"prop":          {"extracts"},
		"exintro":       {"1"},
		"explaintext":   {"1"},
	}

	var resp extractsResponse
	if err := a.client.get(ctx, params, &resp); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(resp.Query.Pages))
	for _, p := range resp.Query.Pages {
		out[p.Title] = p.Extract
	}
	return out, nil
}
