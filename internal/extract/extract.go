// Package extract provides pure helpers for pulling lead data out of raw
// collaborator output: search results, scraped HTML, and email candidates.
package extract

import (
	"regexp"
	"strings"

	"github.com/leadflow/leadflow-server/internal/model"
)

// SearchResult is one organic search hit (title + link).
type SearchResult struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// ParseSearchResults maps search hits to discovery candidates: title
// becomes the business name, link the website. Hits without a website are
// dropped, and the result is truncated to limit.
func ParseSearchResults(results []SearchResult, limit int) []model.Candidate {
	candidates := make([]model.Candidate, 0, len(results))
	for _, r := range results {
		if r.Link == "" {
			continue
		}
		candidates = append(candidates, model.Candidate{Name: r.Title, Website: r.Link})
		if len(candidates) == limit {
			break
		}
	}
	return candidates
}

var emailRe = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)

// ExtractEmails returns all email-shaped substrings in the HTML,
// de-duplicated case-insensitively, preserving first-seen order.
// The first occurrence's casing is kept; callers lower-case on selection.
func ExtractEmails(html string) []string {
	matches := emailRe.FindAllString(html, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		key := strings.ToLower(m)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}

var genericEmailRe = regexp.MustCompile(`(?i)example\.|noreply@|donotreply@`)

// PickBestEmail selects the most useful address from candidates, preferring
// ones that are not generic inboxes (info@, noreply@, donotreply@) or
// example domains. If every candidate is filtered out, the first raw
// candidate is used. Returns the selection lower-cased, or "" for empty
// input.
func PickBestEmail(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	for _, e := range candidates {
		if genericEmailRe.MatchString(e) {
			continue
		}
		if strings.HasPrefix(strings.ToLower(e), "info@") {
			continue
		}
		return strings.ToLower(e)
	}
	return strings.ToLower(candidates[0])
}

var addressShapeRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s matches the basic local@domain.tld shape the
// pipeline requires before surfacing an email on a lead.
func ValidEmail(s string) bool {
	return addressShapeRe.MatchString(s)
}
