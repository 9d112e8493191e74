// Package pipeline runs the four-stage lead enrichment flow: AI discovery,
// website scrape, public-registry lookup, and professional-network lookup.
// Discovery failure aborts the run; every later stage is fail-soft per
// candidate, so a lead always keeps whatever was gathered before a failure
// plus the provenance of each successful call.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/leadflow/leadflow-server/internal/model"
	"github.com/leadflow/leadflow-server/internal/notify"
	"github.com/leadflow/leadflow-server/internal/scrape"
	"github.com/leadflow/leadflow-server/internal/store"
	"github.com/leadflow/leadflow-server/pkg/abr"
	"github.com/leadflow/leadflow-server/pkg/gemini"
)

// MaxLimit caps the candidate count per run.
const MaxLimit = 50

// ValidationError marks a request rejected before any enrichment work
// started. Transport layers map it to a client error rather than a server
// fault.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// Request is one enrichment invocation.
type Request struct {
	UserID    string `json:"userId"`
	Keywords  string `json:"keywords"`
	Locations string `json:"locations"`
	Limit     int    `json:"limit"`
}

// SiteScraper fetches a page directly and extracts contact data. Fallback
// for the website stage when the Gemini scrape call fails.
type SiteScraper interface {
	ScrapeContacts(ctx context.Context, siteURL string) (*scrape.ContactInfo, error)
}

// Config tunes pipeline execution.
type Config struct {
	// MaxConcurrentCandidates bounds concurrent per-candidate enrichment.
	// Stage order within a candidate is always preserved.
	MaxConcurrentCandidates int

	// RatePerSecond caps external-call throughput within one run.
	RatePerSecond float64

	// DefaultLimit applies when a request omits its limit.
	DefaultLimit int
}

// Deps are the pipeline's collaborators. Discoverer and Gemini are
// required; Scraper, Registry, Store, and Notifier are optional.
type Deps struct {
	Discoverer Discoverer
	Gemini     gemini.Client
	Scraper    SiteScraper
	Registry   abr.Client
	Store      store.Store
	Notifier   notify.Notifier
	Config     Config
}

// Pipeline executes enrichment runs.
type Pipeline struct {
	discoverer Discoverer
	gemini     gemini.Client
	scraper    SiteScraper
	registry   abr.Client
	store      store.Store
	notifier   notify.Notifier
	cfg        Config
}

// New creates a Pipeline from its dependencies.
func New(d Deps) *Pipeline {
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Config.MaxConcurrentCandidates <= 0 {
		d.Config.MaxConcurrentCandidates = 3
	}
	if d.Config.RatePerSecond <= 0 {
		d.Config.RatePerSecond = 2.0
	}
	if d.Config.DefaultLimit <= 0 {
		d.Config.DefaultLimit = 5
	}
	return &Pipeline{
		discoverer: d.Discoverer,
		gemini:     d.Gemini,
		scraper:    d.Scraper,
		registry:   d.Registry,
		store:      d.Store,
		notifier:   d.Notifier,
		cfg:        d.Config,
	}
}

// normalize validates the request in place and applies limit defaulting and
// clamping to [1, MaxLimit].
func (p *Pipeline) normalize(req *Request) error {
	req.UserID = strings.TrimSpace(req.UserID)
	req.Keywords = strings.TrimSpace(req.Keywords)
	req.Locations = strings.TrimSpace(req.Locations)

	if req.UserID == "" {
		return &ValidationError{msg: "pipeline: userId is required"}
	}
	if req.Keywords == "" {
		return &ValidationError{msg: "pipeline: keywords is required"}
	}
	if req.Locations == "" {
		return &ValidationError{msg: "pipeline: locations is required"}
	}

	if req.Limit == 0 {
		req.Limit = p.cfg.DefaultLimit
	}
	if req.Limit < 1 {
		req.Limit = 1
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	return nil
}

// Run executes the pipeline once and persists the result. Persistence
// failure is fatal here: the caller gets either a stored run or an error.
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.Run, error) {
	if p.store == nil {
		return nil, eris.New("pipeline: no store configured")
	}
	if err := p.normalize(&req); err != nil {
		return nil, err
	}

	run, err := p.execute(ctx, req, nopEmitter{})
	if err != nil {
		return nil, err
	}

	id, err := p.store.SaveRun(ctx, req.UserID, run)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: persist run")
	}
	run.ID = id

	p.notifier.Notify(ctx, notify.EventRunCompleted, map[string]any{
		"runId":     run.ID,
		"leadCount": run.LeadCount,
	})
	return run, nil
}

// Stream executes the pipeline, reporting progress through em and always
// ending with exactly one terminal event. Persistence is best-effort: a
// save failure (or absent store) downgrades to a warning and the completed
// event still carries the leads.
func (p *Pipeline) Stream(ctx context.Context, req Request, em Emitter) {
	if err := p.normalize(&req); err != nil {
		em.Error(err.Error())
		return
	}

	run, err := p.execute(ctx, req, em)
	if err != nil {
		em.Error(err.Error())
		return
	}

	runID := "local-dev"
	if p.store != nil {
		id, saveErr := p.store.SaveRun(ctx, req.UserID, run)
		if saveErr != nil {
			zap.L().Warn("run persistence failed, streaming result anyway",
				zap.String("userId", req.UserID),
				zap.Error(saveErr),
			)
		} else {
			runID = id
		}
	}
	run.ID = runID

	em.Completed(model.CompletedPayload{
		RunID:     runID,
		LeadCount: run.LeadCount,
		Leads:     run.Leads,
	})
	p.notifier.Notify(ctx, notify.EventRunCompleted, map[string]any{
		"runId":     runID,
		"leadCount": run.LeadCount,
	})
}

// execute is the shared core: discovery, bounded-concurrency enrichment,
// aggregation. It emits status events but never a terminal event.
func (p *Pipeline) execute(ctx context.Context, req Request, em Emitter) (*model.Run, error) {
	em.Status(model.ProgressEvent{Step: model.StepInit, Message: "Starting lead run"})

	p.notifier.Notify(ctx, notify.EventRunStarted, map[string]any{
		"userId":    req.UserID,
		"keywords":  req.Keywords,
		"locations": req.Locations,
		"limit":     req.Limit,
	})

	em.Status(model.ProgressEvent{Step: model.StepDiscovery, State: model.StateStart, Message: "Discovering businesses"})
	candidates, err := p.discoverer.Discover(ctx, req.Keywords, req.Locations, req.Limit)
	if err != nil {
		return nil, err
	}
	if len(candidates) > req.Limit {
		candidates = candidates[:req.Limit]
	}
	em.Status(model.ProgressEvent{
		Step:    model.StepDiscovery,
		State:   model.StateDone,
		Message: fmt.Sprintf("Found %d candidates", len(candidates)),
	})

	em.Status(model.ProgressEvent{Step: model.StepWebsite, State: model.StateStart, Message: "Scraping websites for contacts"})

	limiter := rate.NewLimiter(rate.Limit(p.cfg.RatePerSecond), 1)
	leads := make([]model.Lead, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxConcurrentCandidates)
	for i, cand := range candidates {
		g.Go(func() error {
			leads[i] = p.enrichCandidate(gctx, cand, limiter, em)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: enrichment interrupted")
	}

	em.Status(model.ProgressEvent{Step: model.StepWebsite, State: model.StateDone, Message: "Website scrape completed"})

	return &model.Run{
		UserID:    req.UserID,
		Date:      time.Now().UTC(),
		Keywords:  req.Keywords,
		Locations: req.Locations,
		LeadCount: len(leads),
		Leads:     leads,
	}, nil
}
