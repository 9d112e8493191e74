package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/leadflow/leadflow-server/internal/notify"
	"github.com/leadflow/leadflow-server/internal/pipeline"
	"github.com/leadflow/leadflow-server/internal/scrape"
	"github.com/leadflow/leadflow-server/internal/store"
	"github.com/leadflow/leadflow-server/pkg/abr"
	"github.com/leadflow/leadflow-server/pkg/gemini"
	"github.com/leadflow/leadflow-server/pkg/serp"
)

// pipelineEnv holds the initialized store and pipeline shared by the run
// and serve commands.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite", "":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadflow.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store and API clients and builds the Pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	prompts, err := cfg.Gemini.LoadPrompts()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	geminiClient, err := gemini.NewClient(ctx, cfg.Gemini.Key,
		gemini.WithModel(cfg.Gemini.Model),
		gemini.WithPrompts(prompts),
	)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	var discoverer pipeline.Discoverer
	switch cfg.Pipeline.DiscoverySource {
	case "serp":
		discoverer = pipeline.NewSerpDiscoverer(serp.NewClient(cfg.Serp.Key, serp.WithBaseURL(cfg.Serp.BaseURL)))
	default:
		discoverer = pipeline.NewGeminiDiscoverer(geminiClient)
	}

	var registry abr.Client
	if cfg.ABR.GUID != "" {
		registry = abr.NewClient(cfg.ABR.GUID, abr.WithBaseURL(cfg.ABR.BaseURL))
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Notify.WebhookURL != "" {
		notifier = notify.NewWebhook(notify.WebhookConfig{
			URL:         cfg.Notify.WebhookURL,
			BasicUser:   cfg.Notify.BasicUser,
			BasicPass:   cfg.Notify.BasicPass,
			HeaderName:  cfg.Notify.HeaderName,
			HeaderValue: cfg.Notify.HeaderValue,
		})
	}

	p := pipeline.New(pipeline.Deps{
		Discoverer: discoverer,
		Gemini:     geminiClient,
		Scraper: scrape.NewWebsiteScraper(
			scrape.WithTimeout(time.Duration(cfg.Scrape.TimeoutSecs)*time.Second),
			scrape.WithUserAgent(cfg.Scrape.UserAgent),
		),
		Registry: registry,
		Store:    st,
		Notifier: notifier,
		Config: pipeline.Config{
			MaxConcurrentCandidates: cfg.Pipeline.MaxConcurrentCandidates,
			RatePerSecond:           cfg.Pipeline.RatePerSecond,
			DefaultLimit:            cfg.Pipeline.DefaultLimit,
		},
	})

	return &pipelineEnv{Store: st, Pipeline: p}, nil
}
