// Package serp is a minimal client for a SERP-style organic search API,
// used as an alternative discovery source when the AI discovery call is not
// configured.
package serp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/leadflow/leadflow-server/internal/resilience"
)

const defaultBaseURL = "https://serpapi.com"

// Result is one organic search result.
type Result struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// searchResponse is the subset of the search payload the pipeline consumes.
type searchResponse struct {
	OrganicResults []Result `json:"organic_results"`
	Error          string   `json:"error,omitempty"`
}

// Client performs organic web searches.
type Client interface {
	Search(ctx context.Context, query, location string, num int) ([]Result, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *httpClient) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the default retry policy.
func WithRetry(cfg resilience.Config) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	retry   resilience.Config
}

// NewClient creates a SERP API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: resilience.Default("serp"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query, location string, num int) ([]Result, error) {
	q := url.Values{
		"engine":  {"google"},
		"q":       {query},
		"api_key": {c.apiKey},
	}
	if location != "" {
		q.Set("location", location)
	}
	if num > 0 {
		q.Set("num", strconv.Itoa(num))
	}

	return resilience.Do(ctx, c.retry, func(ctx context.Context) ([]Result, error) {
		return c.search(ctx, q)
	})
}

func (c *httpClient) search(ctx context.Context, q url.Values) ([]Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "serp: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serp: do request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, eris.Wrap(err, "serp: read body")
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("serp: status %d: %s", resp.StatusCode, string(body))
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "serp: decode json")
	}
	if out.Error != "" {
		return nil, eris.Errorf("serp: api error: %s", out.Error)
	}
	return out.OrganicResults, nil
}
