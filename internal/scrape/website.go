// Package scrape fetches candidate websites directly over HTTP and pulls
// contact data out of the raw HTML. It backs the http_fetch path of the
// website-enrichment stage when the AI scrape call is unavailable or fails.
package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/leadflow/leadflow-server/internal/extract"
)

const (
	maxBodyBytes     = 512 * 1024
	defaultTimeout   = 15 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; LeadflowBot/1.0)"
)

// ContactInfo is what a direct fetch could recover from a website.
type ContactInfo struct {
	// Email is the best address found, already lower-cased. Empty when the
	// page carried none.
	Email string
	// Emails lists every distinct address found, first-seen order.
	Emails []string
}

// Option configures a WebsiteScraper.
type Option func(*WebsiteScraper)

// WithTimeout overrides the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *WebsiteScraper) {
		if d > 0 {
			s.client.Timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header sent with each fetch.
func WithUserAgent(ua string) Option {
	return func(s *WebsiteScraper) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WebsiteScraper fetches HTML via net/http. Free, no API calls; falls back
// behind the AI scrape in the website stage's chain.
type WebsiteScraper struct {
	client    *http.Client
	userAgent string
}

// NewWebsiteScraper creates a WebsiteScraper. Defaults: 15s timeout,
// LeadflowBot User-Agent.
func NewWebsiteScraper(opts ...Option) *WebsiteScraper {
	s := &WebsiteScraper{
		client: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScrapeContacts fetches a website and extracts email addresses from its
// HTML. Returns an error when the site is unreachable, blocked, or carries
// no usable content.
func (s *WebsiteScraper) ScrapeContacts(ctx context.Context, siteURL string) (*ContactInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, siteURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: read body")
	}

	if reason := blockReason(resp, body); reason != "" {
		return nil, eris.Errorf("scrape: blocked (%s)", reason)
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("scrape: status %d", resp.StatusCode)
	}

	emails := extract.ExtractEmails(string(body))
	return &ContactInfo{
		Email:  extract.PickBestEmail(emails),
		Emails: emails,
	}, nil
}

// blockReason reports whether the response is an anti-bot challenge page
// rather than real content. Challenge markup carries no contact data, so
// extracting from it would only produce junk.
func blockReason(resp *http.Response, body []byte) string {
	if (resp.StatusCode == 403 || resp.StatusCode == 503) &&
		(resp.Header.Get("cf-ray") != "" || resp.Header.Get("server") == "cloudflare") {
		return "cloudflare"
	}

	lower := strings.ToLower(string(body))
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "cf-browser-verification") {
		return "cloudflare"
	}
	if strings.Contains(lower, "captcha") {
		return "captcha"
	}
	return ""
}
