// Package sources pulls caselaw from public court APIs so matters can
// cite real opinions.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL points at the CourtListener REST API.
	DefaultBaseURL = "https://www.courtlistener.com/api/rest/v3"

	// DefaultJurisdiction is the Tennessee state courts.
	DefaultJurisdiction = "tenn"

	DefaultPageSize = 20
	DefaultMaxPages = 5

	// Opinion pages carry full plain-text bodies, so the cap is roomier
	// than the one used for model completions.
	maxPageBytes = 8 << 20
)

// Client fetches court opinions from a CourtListener-style paginated
// JSON API.
type Client struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithHTTPClient substitutes the HTTP client, usually for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithLogger sets the logger used for partial-fetch warnings.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient builds a Client against the public CourtListener API unless
// options say otherwise.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type opinionPage struct {
	Count   int              `json:"count"`
	Next    string           `json:"next"`
	Results []map[string]any `json:"results"`
}

// FetchOpinions walks the paginated opinions endpoint for a
// jurisdiction and returns the accumulated result documents. Zero or
// negative arguments fall back to the defaults. Pagination stops at
// maxPages or on an empty "next" cursor, whichever comes first. A
// failure on the first page is an error; a failure on a later page
// degrades to the partial result fetched so far.
func (c *Client) FetchOpinions(ctx context.Context, jurisdiction string, pageSize, maxPages int) ([]map[string]any, error) {
	if strings.TrimSpace(jurisdiction) == "" {
		jurisdiction = DefaultJurisdiction
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	var opinions []map[string]any
	for page := 1; page <= maxPages; page++ {
		doc, err := c.fetchPage(ctx, jurisdiction, pageSize, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			c.log.Warn("opinion fetch stopped early",
				slog.String("jurisdiction", jurisdiction),
				slog.Int("page", page),
				slog.String("error", err.Error()))
			break
		}
		opinions = append(opinions, doc.Results...)
		if doc.Next == "" {
			break
		}
	}
	return opinions, nil
}

func (c *Client) fetchPage(ctx context.Context, jurisdiction string, pageSize, page int) (*opinionPage, error) {
	q := url.Values{}
	q.Set("jurisdiction", jurisdiction)
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/opinions/?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("sources: build opinions request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sources: fetch opinions page %d: %w", page, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("sources: read opinions page %d: %w", page, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sources: fetch opinions page %d: status %d", page, resp.StatusCode)
	}

	var doc opinionPage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("sources: decode opinions page %d: %w", page, err)
	}
	return &doc, nil
}

// NoteFields shapes a fetched opinion into fields for a note record.
// The second return is false when the opinion carries nothing worth
// keeping. Key spellings vary across API versions, so both snake_case
// and camelCase names are tried.
func NoteFields(opinion map[string]any) (map[string]any, bool) {
	name := firstString(opinion, "case_name", "caseName")
	text := firstString(opinion, "plain_text", "html", "snippet")
	if text == "" {
		text = name
	}
	if text == "" {
		return nil, false
	}

	fields := map[string]any{
		"text":   text,
		"source": "courtlistener",
	}
	if name != "" {
		fields["case_name"] = name
	}
	if link := firstString(opinion, "absolute_url", "download_url"); link != "" {
		fields["url"] = link
	}
	if id, ok := opinion["id"]; ok {
		fields["opinion_id"] = fmt.Sprint(id)
	}
	return fields, true
}

func firstString(doc map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := doc[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
