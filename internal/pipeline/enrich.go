package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/leadflow/leadflow-server/internal/extract"
	"github.com/leadflow/leadflow-server/internal/model"
	"github.com/leadflow/leadflow-server/internal/notify"
	"github.com/leadflow/leadflow-server/internal/scrape"
	"github.com/leadflow/leadflow-server/pkg/abr"
	"github.com/leadflow/leadflow-server/pkg/gemini"
)

// enrichCandidate runs stages 2-4 for one candidate, in order, absorbing
// stage failures. The returned lead always has a non-empty provenance list
// whose first entry records discovery.
func (p *Pipeline) enrichCandidate(ctx context.Context, cand model.Candidate, limiter *rate.Limiter, em Emitter) model.Lead {
	provenance := []model.ProvenanceEntry{{
		Source:    model.SourceAIInitial,
		Method:    p.discoverer.Method(),
		Details:   "Initial discovery",
		CreatedAt: time.Now().UTC(),
	}}

	email, contacts, websiteEntry := p.scrapeWebsite(ctx, cand, limiter)
	if websiteEntry != nil {
		provenance = append(provenance, *websiteEntry)
	}

	em.Status(model.ProgressEvent{
		Step:    model.StepRegistry,
		State:   model.StateStart,
		Message: fmt.Sprintf("Searching business registry for %s", cand.Name),
	})
	directors, registryEntry := p.lookupRegistry(ctx, cand, limiter)
	contacts = append(contacts, directors...)
	if registryEntry != nil {
		provenance = append(provenance, *registryEntry)
	}
	em.Status(model.ProgressEvent{
		Step:    model.StepRegistry,
		State:   model.StateDone,
		Message: fmt.Sprintf("Registry lookup processed for %s", cand.Name),
	})
	p.notifier.Notify(ctx, notify.EventRegistryChecked, map[string]any{
		"name":      cand.Name,
		"directors": len(directors),
	})

	em.Status(model.ProgressEvent{
		Step:    model.StepNetwork,
		State:   model.StateStart,
		Message: fmt.Sprintf("Scanning professional network for %s", cand.Name),
	})
	makers, networkEntry := p.lookupNetwork(ctx, cand, limiter)
	contacts = append(contacts, makers...)
	if networkEntry != nil {
		provenance = append(provenance, *networkEntry)
	}
	em.Status(model.ProgressEvent{
		Step:    model.StepNetwork,
		State:   model.StateDone,
		Message: fmt.Sprintf("Network enrichment processed for %s", cand.Name),
	})
	p.notifier.Notify(ctx, notify.EventNetworkChecked, map[string]any{
		"name":           cand.Name,
		"decisionMakers": len(makers),
	})

	// Invalid addresses are dropped, not surfaced as errors.
	if email != "" && !extract.ValidEmail(email) {
		email = ""
	}
	if contacts == nil {
		contacts = []model.ContactPerson{}
	}

	return model.Lead{
		Name:     cand.Name,
		Website:  cand.Website,
		Phone:    cand.Phone,
		Address:  cand.Address,
		Email:    email,
		Contacts: contacts,
		Status:   model.LeadStatusNew,
		Sources:  provenance,
	}
}

// scrapeWebsite runs stage 2. The Gemini scrape call is primary; when it
// fails and a local scraper is configured, the page is fetched directly and
// mined for addresses (recorded as http_fetch). Candidates without a
// website skip the stage entirely.
func (p *Pipeline) scrapeWebsite(ctx context.Context, cand model.Candidate, limiter *rate.Limiter) (string, []model.ContactPerson, *model.ProvenanceEntry) {
	if cand.Website == "" {
		return "", nil, nil
	}

	if err := limiter.Wait(ctx); err != nil {
		return "", nil, nil
	}

	resp, ok := attempt(ctx, "website", cand.Name, func(ctx context.Context) (*gemini.WebsiteScrapeResponse, error) {
		return p.gemini.ScrapeWebsite(ctx, cand.Website)
	})
	if ok {
		contacts := make([]model.ContactPerson, 0, len(resp.Contacts))
		for _, c := range resp.Contacts {
			contacts = append(contacts, model.ContactPerson{FullName: c.FullName, Title: c.Title, Email: c.Email})
		}
		entry := &model.ProvenanceEntry{
			Source:    model.SourceWebsite,
			Method:    model.MethodGemini,
			Details:   cand.Website,
			CreatedAt: time.Now().UTC(),
		}
		p.notifier.Notify(ctx, notify.EventWebsiteScraped, map[string]any{
			"name":    cand.Name,
			"website": cand.Website,
		})
		return resp.Email, contacts, entry
	}

	if p.scraper == nil {
		return "", nil, nil
	}
	info, ok := attempt(ctx, "website_fallback", cand.Name, func(ctx context.Context) (*scrape.ContactInfo, error) {
		return p.scraper.ScrapeContacts(ctx, cand.Website)
	})
	if !ok || info.Email == "" {
		return "", nil, nil
	}
	entry := &model.ProvenanceEntry{
		Source:    model.SourceWebsite,
		Method:    model.MethodHTTPFetch,
		Details:   cand.Website,
		CreatedAt: time.Now().UTC(),
	}
	p.notifier.Notify(ctx, notify.EventWebsiteScraped, map[string]any{
		"name":    cand.Name,
		"website": cand.Website,
	})
	return info.Email, nil, entry
}

// lookupRegistry runs stage 3. Gemini's grounded registry search supplies
// director names; when a registry API client is configured, the business
// name is additionally resolved against it and an active registration
// upgrades the provenance method to registry_api. Provenance is appended
// only when at least one director was found.
func (p *Pipeline) lookupRegistry(ctx context.Context, cand model.Candidate, limiter *rate.Limiter) ([]model.ContactPerson, *model.ProvenanceEntry) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, nil
	}

	resp, ok := attempt(ctx, "registry", cand.Name, func(ctx context.Context) (*gemini.RegistryResponse, error) {
		return p.gemini.LookupRegistry(ctx, cand.Name)
	})
	if !ok || len(resp.Directors) == 0 {
		return nil, nil
	}

	contacts := make([]model.ContactPerson, 0, len(resp.Directors))
	for _, d := range resp.Directors {
		contacts = append(contacts, model.ContactPerson{FullName: d.FullName, Title: d.Role})
	}

	entry := &model.ProvenanceEntry{
		Source:    model.SourcePublicRegistry,
		Method:    model.MethodGemini,
		Details:   "Registry search",
		CreatedAt: time.Now().UTC(),
	}

	if p.registry != nil {
		if match, ok := attempt(ctx, "registry_verify", cand.Name, func(ctx context.Context) (*abr.NameMatch, error) {
			matches, err := p.registry.MatchName(ctx, cand.Name, 1)
			if err != nil {
				return nil, err
			}
			return abr.FirstMatch(matches), nil
		}); ok && match != nil {
			details, ok := attempt(ctx, "registry_verify", cand.Name, func(ctx context.Context) (*abr.EntityDetails, error) {
				return p.registry.GetEntityDetails(ctx, match.Abn)
			})
			if ok && details.IsActive() {
				entry.Method = model.MethodRegistryAPI
				entry.Details = fmt.Sprintf("ABN %s (Active)", details.Abn)
			}
		}
	}

	return contacts, entry
}

// lookupNetwork runs stage 4: decision-maker search on the professional
// network. Provenance is appended only when at least one person was found.
func (p *Pipeline) lookupNetwork(ctx context.Context, cand model.Candidate, limiter *rate.Limiter) ([]model.ContactPerson, *model.ProvenanceEntry) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, nil
	}

	resp, ok := attempt(ctx, "network", cand.Name, func(ctx context.Context) (*gemini.NetworkResponse, error) {
		return p.gemini.LookupDecisionMakers(ctx, cand.Name)
	})
	if !ok || len(resp.DecisionMakers) == 0 {
		return nil, nil
	}

	contacts := make([]model.ContactPerson, 0, len(resp.DecisionMakers))
	for _, d := range resp.DecisionMakers {
		contacts = append(contacts, model.ContactPerson{FullName: d.FullName, Title: d.Title})
	}
	entry := &model.ProvenanceEntry{
		Source:    model.SourceProfessionalNetwork,
		Method:    model.MethodGemini,
		Details:   "Professional network search",
		CreatedAt: time.Now().UTC(),
	}
	return contacts, entry
}
