// Package pubmed fetches article metadata from the NCBI E-utilities efetch
// endpoint.
package pubmed

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rd-agent/backend/internal/util"
)

const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

var ErrNotFound = errors.New("pubmed article not found")

// Article is the subset of a PubMed record the app stores.
type Article struct {
	PMID     string
	Title    string
	Abstract string
	Journal  string
	PubYear  int
	DOI      string
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxTries   int
}

type NewClientParams struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

func NewClient(params NewClientParams) *Client {
	base := strings.TrimRight(params.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    base,
		apiKey:     params.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		maxTries:   3,
	}
}

func NewClientFromEnv() *Client {
	return NewClient(NewClientParams{
		BaseURL: util.GetEnvString("PUBMED_BASE_URL", DefaultBaseURL),
		APIKey:  util.GetEnv("PUBMED_API_KEY"),
		Timeout: util.GetEnvSeconds("PUBMED_TIMEOUT_SEC", 20*time.Second),
	})
}

// Fetch loads a single article by PMID. NCBI answers 429 when the rate limit
// is hit, so transient statuses are retried with backoff.
func (c *Client) Fetch(ctx context.Context, pmid string) (Article, error) {
	pmid = strings.TrimSpace(pmid)
	if _, err := strconv.ParseUint(pmid, 10, 64); err != nil {
		return Article{}, fmt.Errorf("invalid pmid %q", pmid)
	}

	q := url.Values{}
	q.Set("db", "pubmed")
	q.Set("id", pmid)
	q.Set("retmode", "xml")
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	endpoint := c.baseURL + "/efetch.fcgi?" + q.Encode()

	body, err := util.RetryWithContext(ctx, c.maxTries, 500*time.Millisecond, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, endpoint)
	})
	if err != nil {
		return Article{}, err
	}

	var set articleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return Article{}, fmt.Errorf("failed to decode pubmed response: %w", err)
	}
	for _, a := range set.Articles {
		if strings.TrimSpace(a.Citation.PMID) == pmid {
			return a.toArticle(), nil
		}
	}
	return Article{}, ErrNotFound
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, util.NoRetry(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("pubmed status %d", resp.StatusCode)
	default:
		return nil, util.NoRetry(fmt.Errorf("pubmed status %d", resp.StatusCode))
	}
}

type articleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Title    innerText `xml:"ArticleTitle"`
			Abstract struct {
				Sections []abstractText `xml:"AbstractText"`
			} `xml:"Abstract"`
			Journal struct {
				Title string `xml:"Title"`
				Issue struct {
					PubDate struct {
						Year        string `xml:"Year"`
						MedlineDate string `xml:"MedlineDate"`
					} `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
			ELocations []struct {
				Type  string `xml:"EIdType,attr"`
				Value string `xml:",chardata"`
			} `xml:"ELocationID"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
	PubmedData struct {
		IDs []struct {
			Type  string `xml:"IdType,attr"`
			Value string `xml:",chardata"`
		} `xml:"ArticleIdList>ArticleId"`
	} `xml:"PubmedData"`
}

// innerText keeps the text of an element including nested markup such as <i>.
type innerText struct {
	Inner string `xml:",innerxml"`
}

func (t innerText) String() string {
	return stripTags(t.Inner)
}

type abstractText struct {
	Label string `xml:"Label,attr"`
	innerText
}

func (a pubmedArticle) toArticle() Article {
	art := a.Citation.Article
	out := Article{
		PMID:    strings.TrimSpace(a.Citation.PMID),
		Title:   art.Title.String(),
		Journal: strings.TrimSpace(art.Journal.Title),
	}

	parts := make([]string, 0, len(art.Abstract.Sections))
	for _, s := range art.Abstract.Sections {
		text := s.String()
		if text == "" {
			continue
		}
		if s.Label != "" {
			text = s.Label + ": " + text
		}
		parts = append(parts, text)
	}
	out.Abstract = strings.Join(parts, "\n\n")

	date := art.Journal.Issue.PubDate
	year := date.Year
	if year == "" && len(date.MedlineDate) >= 4 {
		year = date.MedlineDate[:4]
	}
	if y, err := strconv.Atoi(year); err == nil {
		out.PubYear = y
	}

	for _, id := range a.PubmedData.IDs {
		if id.Type == "doi" {
			out.DOI = strings.TrimSpace(id.Value)
			break
		}
	}
	if out.DOI == "" {
		for _, loc := range art.ELocations {
			if loc.Type == "doi" {
				out.DOI = strings.TrimSpace(loc.Value)
				break
			}
		}
	}
	return out
}

func stripTags(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>' && depth > 0:
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(html.UnescapeString(b.String())), " ")
}
