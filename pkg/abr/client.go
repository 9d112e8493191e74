// Package abr is a client for the Australian Business Register JSON API.
// It resolves business names to ABNs and fetches entity details, which the
// pipeline uses to verify registry matches during the public-registry stage.
package abr

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

const defaultBaseURL = "https://abr.business.gov.au/json"

// NameMatch is one entry from a name search.
type NameMatch struct {
	Abn   string  `json:"Abn"`
	Name  string  `json:"Name"`
	Score float64 `json:"Score,omitempty"`
}

// matchingNamesResponse is the body of MatchingNames.aspx.
type matchingNamesResponse struct {
	Message string      `json:"Message"`
	Names   []NameMatch `json:"Names"`
}

// EntityStatus is the registration status block of an entity.
type EntityStatus struct {
	EntityStatusCode string `json:"EntityStatusCode"`
	EffectiveFrom    string `json:"effectiveFrom,omitempty"`
}

// EntityDetails is the full registry record for an ABN.
type EntityDetails struct {
	Abn          string       `json:"Abn"`
	EntityName   string       `json:"EntityName"`
	EntityType   string       `json:"EntityTypeName,omitempty"`
	EntityStatus EntityStatus `json:"EntityStatus"`
	Message      string       `json:"Message,omitempty"`
}

// IsActive reports whether the entity's registration status is exactly
// "Active" (case-sensitive, per the registry's own status codes).
func (d *EntityDetails) IsActive() bool {
	return d != nil && d.EntityStatus.EntityStatusCode == "Active"
}

// FirstMatch returns the first name match, or nil for empty input. The
// registry already orders matches by relevance; no further ranking is done.
func FirstMatch(matches []NameMatch) *NameMatch {
	if len(matches) == 0 {
		return nil
	}
	return &matches[0]
}

// Client queries the business registry.
type Client interface {
	MatchName(ctx context.Context, name string, maxResults int) ([]NameMatch, error)
	GetEntityDetails(ctx context.Context, abn string) (*EntityDetails, error)
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
	guid    string
	baseURL string
	http    *http.Client
	retry   resilience.Config
}

// NewClient creates a registry client. guid is the caller's registered API
// key.
func NewClient(guid string, opts ...Option) Client {
	c := &httpClient{
		guid:    guid,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 20 * time.Second,
		},
		retry: resilience.Default("abr"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) MatchName(ctx context.Context, name string, maxResults int) ([]NameMatch, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	q := url.Values{
		"name":       {name},
		"maxResults": {strconv.Itoa(maxResults)},
		"guid":       {c.guid},
	}

	out, err := resilience.Do(ctx, c.retry, func(ctx context.Context) (matchingNamesResponse, error) {
		var r matchingNamesResponse
		return r, c.getJSON(ctx, "/MatchingNames.aspx?"+q.Encode(), &r)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "abr: match name %q", name)
	}
	if out.Message != "" {
		return nil, eris.Errorf("abr: match name %q: %s", name, out.Message)
	}
	return out.Names, nil
}

func (c *httpClient) GetEntityDetails(ctx context.Context, abn string) (*EntityDetails, error) {
	q := url.Values{
		"abn":  {abn},
		"guid": {c.guid},
	}

	out, err := resilience.Do(ctx, c.retry, func(ctx context.Context) (EntityDetails, error) {
		var r EntityDetails
		return r, c.getJSON(ctx, "/AbnDetails.aspx?"+q.Encode(), &r)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "abr: entity details %s", abn)
	}
	if out.Message != "" {
		return nil, eris.Errorf("abr: entity details %s: %s", abn, out.Message)
	}
	return &out, nil
}

func (c *httpClient) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "do request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return eris.Wrap(err, "read body")
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("status %d: %s", resp.StatusCode, string(body))
		if resilience.RetryableStatus(resp.StatusCode) {
			return resilience.Transient(err, resp.StatusCode)
		}
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "decode json")
	}
	return nil
}
