package serp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow-server/internal/resilience"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "plumbers", r.URL.Query().Get("q"))
		assert.Equal(t, "Sydney", r.URL.Query().Get("location"))
		assert.Equal(t, "k", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{"organic_results":[{"title":"A Plumbing","link":"https://a.com"},{"title":"B Plumbing","link":"https://b.com"}]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	results, err := c.Search(context.Background(), "plumbers", "Sydney", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "A Plumbing", results[0].Title)
	assert.Equal(t, "https://b.com", results[1].Link)
}

func TestSearch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Invalid API key"}`))
	}))
	defer srv.Close()

	c := NewClient("bad", WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), "plumbers", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestSearch_RetriesRateLimit(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 2 {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"organic_results":[{"title":"A Plumbing","link":"https://a.com"}]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithRetry(resilience.Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}))
	results, err := c.Search(context.Background(), "plumbers", "", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, calls)
}
