package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow-server/internal/model"
	"github.com/leadflow/leadflow-server/internal/pipeline"
	"github.com/leadflow/leadflow-server/internal/store"
	"github.com/leadflow/leadflow-server/pkg/gemini"
)

// stubGemini returns canned responses for every stage call.
type stubGemini struct {
	leads []gemini.BusinessLead
}

func (s *stubGemini) DiscoverBusinesses(context.Context, string, string, int) (*gemini.DiscoveryResponse, error) {
	return &gemini.DiscoveryResponse{Leads: s.leads}, nil
}

func (s *stubGemini) ScrapeWebsite(context.Context, string) (*gemini.WebsiteScrapeResponse, error) {
	return &gemini.WebsiteScrapeResponse{Email: "sales@acme.example"}, nil
}

func (s *stubGemini) LookupRegistry(context.Context, string) (*gemini.RegistryResponse, error) {
	return &gemini.RegistryResponse{}, nil
}

func (s *stubGemini) LookupDecisionMakers(context.Context, string) (*gemini.NetworkResponse, error) {
	return &gemini.NetworkResponse{}, nil
}

func newTestEnv(t *testing.T) *pipelineEnv {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	g := &stubGemini{leads: []gemini.BusinessLead{{Name: "Acme Plumbing", Website: "https://acme.example"}}}
	p := pipeline.New(pipeline.Deps{
		Discoverer: pipeline.NewGeminiDiscoverer(g),
		Gemini:     g,
		Store:      st,
		Config:     pipeline.Config{MaxConcurrentCandidates: 1, RatePerSecond: 10000, DefaultLimit: 5},
	})
	return &pipelineEnv{Store: st, Pipeline: p}
}

func TestRouter_Health(t *testing.T) {
	r := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_OneShotRun(t *testing.T) {
	r := newRouter(newTestEnv(t))

	payload := map[string]any{
		"userId":    "user-1",
		"keywords":  "plumbers",
		"locations": "Sydney",
		"limit":     1,
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/run", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		RunID     string       `json:"runId"`
		LeadCount int          `json:"leadCount"`
		Leads     []model.Lead `json:"leads"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, 1, resp.LeadCount)
	require.Len(t, resp.Leads, 1)
	assert.Equal(t, "Acme Plumbing", resp.Leads[0].Name)
	assert.Equal(t, "sales@acme.example", resp.Leads[0].Email)
}

func TestRouter_OneShotRun_InvalidBody(t *testing.T) {
	r := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_OneShotRun_MissingFields(t *testing.T) {
	r := newRouter(newTestEnv(t))

	req := httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(`{"userId":"u"}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "error")
}

// brokenStore fails every write so handler status mapping can be exercised.
type brokenStore struct{ store.Store }

func (brokenStore) SaveRun(context.Context, string, *model.Run) (string, error) {
	return "", errors.New("store: disk full")
}
func (brokenStore) Close() error { return nil }

func TestRouter_OneShotRun_PersistFailureIsServerError(t *testing.T) {
	g := &stubGemini{leads: []gemini.BusinessLead{{Name: "Acme Plumbing"}}}
	p := pipeline.New(pipeline.Deps{
		Discoverer: pipeline.NewGeminiDiscoverer(g),
		Gemini:     g,
		Store:      brokenStore{},
		Config:     pipeline.Config{MaxConcurrentCandidates: 1, RatePerSecond: 10000, DefaultLimit: 5},
	})
	r := newRouter(&pipelineEnv{Store: brokenStore{}, Pipeline: p})

	body, _ := json.Marshal(pipeline.Request{UserID: "u", Keywords: "plumbers", Locations: "Sydney"})
	req := httptest.NewRequest(http.MethodPost, "/api/run", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "persist run")
}

func TestRouter_RunsListAndGet(t *testing.T) {
	env := newTestEnv(t)
	r := newRouter(env)

	id, err := env.Store.SaveRun(context.Background(), "user-1", &model.Run{
		Keywords:  "plumbers",
		Locations: "Sydney",
		Leads:     []model.Lead{{Name: "Acme Plumbing"}},
	})
	require.NoError(t, err)

	// List requires userId.
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs?userId=user-1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Runs []model.RunSummary `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, id, list.Runs[0].ID)

	// Detail is scoped to the owning user.
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs/"+id+"?userId=user-1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var run model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
	assert.Equal(t, "plumbers", run.Keywords)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs/"+id+"?userId=intruder", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRouter_StreamEndpoint(t *testing.T) {
	srv := httptest.NewServer(newRouter(newTestEnv(t)))
	defer srv.Close()

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(srv.URL + "/api/run/stream?userId=user-1&keywords=plumbers&locations=Sydney&limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "event: status")
	assert.Contains(t, text, `"step":"init"`)
	assert.Contains(t, text, `"step":"discovery"`)
	assert.Contains(t, text, "event: completed")
	assert.Contains(t, text, `"leadCount":1`)
	// Terminal event is last on the wire.
	assert.Greater(t, strings.LastIndex(text, "event: completed"), strings.LastIndex(text, "event: status"))
}

func TestRouter_StreamEndpoint_InvalidQuery(t *testing.T) {
	r := newRouter(newTestEnv(t))

	// Missing limit.
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/run/stream?userId=u&keywords=k&locations=l", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Missing userId.
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/run/stream?keywords=k&locations=l&limit=5", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
