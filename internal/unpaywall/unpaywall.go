// Package unpaywall resolves open access PDF locations for a DOI and
// downloads them.
package unpaywall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rd-agent/backend/internal/util"
)

const DefaultBaseURL = "https://api.unpaywall.org/v2"

// MaxPDFSize caps downloads.
const MaxPDFSize = 50 << 20

var (
	ErrNoOpenAccess = errors.New("no open access pdf available")
	ErrNotPDF       = errors.New("downloaded file is not a pdf")
)

type Client struct {
	baseURL    string
	email      string
	httpClient *http.Client
}

func NewClient(baseURL, email string, timeout time.Duration) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Client{
		baseURL:    baseURL,
		email:      email,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func NewClientFromEnv() *Client {
	return NewClient(
		util.GetEnvString("UNPAYWALL_BASE_URL", DefaultBaseURL),
		util.GetEnv("UNPAYWALL_EMAIL"),
		util.GetEnvSeconds("UNPAYWALL_TIMEOUT_SEC", time.Minute),
	)
}

type location struct {
	URLForPDF string `json:"url_for_pdf"`
	URL       string `json:"url"`
}

type lookupResponse struct {
	IsOA           bool       `json:"is_oa"`
	BestOALocation *location  `json:"best_oa_location"`
	OALocations    []location `json:"oa_locations"`
}

// PDFURL returns the best open access PDF link for doi.
func (c *Client) PDFURL(ctx context.Context, doi string) (string, error) {
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return "", ErrNoOpenAccess
	}

	endpoint := c.baseURL + "/" + url.PathEscape(doi) + "?email=" + url.QueryEscape(c.email)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNoOpenAccess
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unpaywall status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode unpaywall response: %w", err)
	}
	if !body.IsOA {
		return "", ErrNoOpenAccess
	}
	if body.BestOALocation != nil && body.BestOALocation.URLForPDF != "" {
		return body.BestOALocation.URLForPDF, nil
	}
	for _, loc := range body.OALocations {
		if loc.URLForPDF != "" {
			return loc.URLForPDF, nil
		}
	}
	return "", ErrNoOpenAccess
}

// Download fetches a PDF and checks its magic bytes.
func (c *Client) Download(ctx context.Context, pdfURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pdf download status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxPDFSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxPDFSize {
		return nil, fmt.Errorf("pdf exceeds %d bytes", MaxPDFSize)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, ErrNotPDF
	}
	return data, nil
}
