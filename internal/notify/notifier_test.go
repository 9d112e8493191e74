package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhook_PostsEnvelope(t *testing.T) {
	var got envelope
	var gotAuth, gotHeader string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotHeader = r.Header.Get("X-Webhook-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(WebhookConfig{
		URL:         srv.URL,
		BasicUser:   "user",
		BasicPass:   "pass",
		HeaderName:  "X-Webhook-Token",
		HeaderValue: "secret",
	})
	w.Notify(context.Background(), EventRunStarted, map[string]string{"keywords": "plumbers"})

	assert.Equal(t, EventRunStarted, got.Event)
	assert.False(t, got.TS.IsZero())
	assert.Equal(t, "Basic dXNlcjpwYXNz", gotAuth)
	assert.Equal(t, "secret", gotHeader)
}

func TestWebhook_FailuresAreSwallowed(t *testing.T) {
	// Unreachable URL: Notify must not panic or surface anything.
	w := NewWebhook(WebhookConfig{URL: "http://127.0.0.1:1/nothing"})
	w.Notify(context.Background(), EventRunCompleted, nil)
}

func TestWebhook_RejectionIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no thanks", http.StatusForbidden)
	}))
	defer srv.Close()

	w := NewWebhook(WebhookConfig{URL: srv.URL})
	w.Notify(context.Background(), EventRegistryChecked, map[string]int{"found": 2})
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	n.Notify(context.Background(), EventRunStarted, nil)
}
