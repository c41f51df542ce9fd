package wiki

import (
	"encoding/json"
	"strconv"
)

// Wire types for the MediaWiki JSON API (formatversion=2).

type combinedResponse struct {
	Query struct {
		Pages []combinedPage `json:"pages"`
	} `json:"query"`
}

type combinedPage struct {
	PageID       int64  `json:"pageid"`
	Title        string `json:"title"`
	Missing      bool   `json:"missing"`
	Extract      string `json:"extract"`
	CanonicalURL string `json:"canonicalurl"`
	Touched      string `json:"touched"`
	LastRevID    int64  `json:"lastrevid"`
	Revisions    []struct {
		Slots struct {
			Main struct {
				Content string `json:"content"`
			} `json:"main"`
		} `json:"slots"`
	} `json:"revisions"`
	Categories []struct {
		Title string `json:"title"`
	} `json:"categories"`
}

type parseResponse struct {
	Parse struct {
		Title        string         `json:"title"`
		Text         string         `json:"text"`
		DisplayTitle string         `json:"displaytitle"`
		Sections     []parseSection `json:"sections"`
	} `json:"parse"`
}

type parseSection struct {
	Line string `json:"line"`

	// Level arrives as a string on some MediaWiki versions and as a number
	// on others; keep the raw message and convert lazily.
	Level json.RawMessage `json:"level"`
}

// levelInt converts the level field regardless of its wire representation.
func (s parseSection) levelInt() int {
	raw := string(s.Level)
	if len(raw) >= 2 && raw[0] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 2
	}
	return n
}

type allPagesResponse struct {
	Query struct {
		AllPages []struct {
			Title string `json:"title"`
		} `json:"allpages"`
	} `json:"query"`
	Continue struct {
		APContinue string `json:"apcontinue"`
	} `json:"continue"`
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

type extractsResponse struct {
	Query struct {
		Pages []struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}
