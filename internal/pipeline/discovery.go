package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/leadflow/leadflow-server/internal/extract"
	"github.com/leadflow/leadflow-server/internal/model"
	"github.com/leadflow/leadflow-server/pkg/gemini"
	"github.com/leadflow/leadflow-server/pkg/serp"
)

// Discoverer produces the initial candidate set for a run. Returns at most
// limit candidates; a discovery failure is fatal to the whole run.
type Discoverer interface {
	Discover(ctx context.Context, keywords, locations string, limit int) ([]model.Candidate, error)

	// Method identifies how discovery was performed, recorded in each
	// lead's first provenance entry.
	Method() model.SourceMethod
}

// GeminiDiscoverer finds businesses with a grounded Gemini search call.
type GeminiDiscoverer struct {
	client gemini.Client
}

func NewGeminiDiscoverer(client gemini.Client) *GeminiDiscoverer {
	return &GeminiDiscoverer{client: client}
}

func (d *GeminiDiscoverer) Discover(ctx context.Context, keywords, locations string, limit int) ([]model.Candidate, error) {
	resp, err := d.client.DiscoverBusinesses(ctx, keywords, locations, limit)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: discover businesses")
	}

	candidates := make([]model.Candidate, 0, len(resp.Leads))
	for _, l := range resp.Leads {
		if l.Name == "" {
			continue
		}
		candidates = append(candidates, model.Candidate{
			Name:    l.Name,
			Website: l.Website,
			Phone:   l.Phone,
			Address: l.Address,
		})
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (d *GeminiDiscoverer) Method() model.SourceMethod {
	return model.MethodGemini
}

// SerpDiscoverer finds businesses through organic search results. Candidate
// names come from result titles, so they are noisier than the Gemini path.
type SerpDiscoverer struct {
	client serp.Client
}

func NewSerpDiscoverer(client serp.Client) *SerpDiscoverer {
	return &SerpDiscoverer{client: client}
}

func (d *SerpDiscoverer) Discover(ctx context.Context, keywords, locations string, limit int) ([]model.Candidate, error) {
	results, err := d.client.Search(ctx, keywords, locations, limit)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: search discovery")
	}

	parsed := make([]extract.SearchResult, 0, len(results))
	for _, r := range results {
		parsed = append(parsed, extract.SearchResult{Title: r.Title, Link: r.Link})
	}
	return extract.ParseSearchResults(parsed, limit), nil
}

func (d *SerpDiscoverer) Method() model.SourceMethod {
	return model.MethodSerpAPI
}
