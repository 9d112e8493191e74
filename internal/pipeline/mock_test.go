package pipeline

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/leadflow/leadflow-server/internal/model"
	"github.com/leadflow/leadflow-server/internal/scrape"
	"github.com/leadflow/leadflow-server/internal/store"
	"github.com/leadflow/leadflow-server/pkg/abr"
	"github.com/leadflow/leadflow-server/pkg/gemini"
	"github.com/leadflow/leadflow-server/pkg/serp"
)

// --- Gemini Mock ---

type mockGeminiClient struct {
	mock.Mock
}

func (m *mockGeminiClient) DiscoverBusinesses(ctx context.Context, keywords, locations string, limit int) (*gemini.DiscoveryResponse, error) {
	args := m.Called(ctx, keywords, locations, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.DiscoveryResponse), args.Error(1)
}

func (m *mockGeminiClient) ScrapeWebsite(ctx context.Context, websiteURL string) (*gemini.WebsiteScrapeResponse, error) {
	args := m.Called(ctx, websiteURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.WebsiteScrapeResponse), args.Error(1)
}

func (m *mockGeminiClient) LookupRegistry(ctx context.Context, businessName string) (*gemini.RegistryResponse, error) {
	args := m.Called(ctx, businessName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.RegistryResponse), args.Error(1)
}

func (m *mockGeminiClient) LookupDecisionMakers(ctx context.Context, businessName string) (*gemini.NetworkResponse, error) {
	args := m.Called(ctx, businessName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.NetworkResponse), args.Error(1)
}

// --- Registry Mock ---

type mockRegistryClient struct {
	mock.Mock
}

func (m *mockRegistryClient) MatchName(ctx context.Context, name string, maxResults int) ([]abr.NameMatch, error) {
	args := m.Called(ctx, name, maxResults)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]abr.NameMatch), args.Error(1)
}

func (m *mockRegistryClient) GetEntityDetails(ctx context.Context, abn string) (*abr.EntityDetails, error) {
	args := m.Called(ctx, abn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*abr.EntityDetails), args.Error(1)
}

// --- Serp Mock ---

type mockSerpClient struct {
	mock.Mock
}

func (m *mockSerpClient) Search(ctx context.Context, query, location string, num int) ([]serp.Result, error) {
	args := m.Called(ctx, query, location, num)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]serp.Result), args.Error(1)
}

// --- Site Scraper Mock ---

type mockSiteScraper struct {
	mock.Mock
}

func (m *mockSiteScraper) ScrapeContacts(ctx context.Context, siteURL string) (*scrape.ContactInfo, error) {
	args := m.Called(ctx, siteURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scrape.ContactInfo), args.Error(1)
}

// --- Store Mock ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveRun(ctx context.Context, userID string, run *model.Run) (string, error) {
	args := m.Called(ctx, userID, run)
	return args.String(0), args.Error(1)
}

func (m *mockStore) GetRun(ctx context.Context, userID, runID string) (*model.Run, error) {
	args := m.Called(ctx, userID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, userID string, filter store.RunFilter) ([]model.RunSummary, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.RunSummary), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

// --- Emitter Recorder ---

// recordingEmitter captures the event sequence thread-safely; enrichment
// goroutines emit concurrently.
type recordingEmitter struct {
	mu        sync.Mutex
	statuses  []model.ProgressEvent
	completed []model.CompletedPayload
	errors    []string
}

func (r *recordingEmitter) Status(ev model.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, ev)
}

func (r *recordingEmitter) Completed(p model.CompletedPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, p)
}

func (r *recordingEmitter) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}

// --- Notifier Recorder ---

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingNotifier) Notify(_ context.Context, event string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}
