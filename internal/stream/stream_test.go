package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadflow/leadflow-server/internal/model"
)

func drain(ch *Channel) []Event {
	var out []Event
	for ev := range ch.Events() {
		out = append(out, ev)
	}
	return out
}

func TestChannel_OrderAndTerminal(t *testing.T) {
	ch := NewChannel()

	ch.Status(model.ProgressEvent{Step: model.StepInit, Message: "Starting lead run"})
	ch.Status(model.ProgressEvent{Step: model.StepDiscovery, State: model.StateStart, Message: "Discovering businesses"})
	ch.Completed(model.CompletedPayload{RunID: "r1", LeadCount: 2})

	events := drain(ch)
	require.Len(t, events, 3)
	assert.Equal(t, EventStatus, events[0].Name)
	assert.Equal(t, model.StepInit, events[0].Data.(model.ProgressEvent).Step)
	assert.Equal(t, EventCompleted, events[2].Name)
	assert.Equal(t, 2, events[2].Data.(model.CompletedPayload).LeadCount)
}

func TestChannel_NothingAfterTerminal(t *testing.T) {
	ch := NewChannel()

	ch.Error("boom")
	ch.Status(model.ProgressEvent{Step: model.StepWebsite, Message: "ignored"})
	ch.Completed(model.CompletedPayload{RunID: "r2"})

	events := drain(ch)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Name)
	assert.Equal(t, "boom", events[0].Data.(model.ErrorPayload).Message)
}

func TestChannel_TerminalLandsWhenBufferFull(t *testing.T) {
	ch := NewChannel()

	// Nobody draining: overflow the buffer with status events, then finish.
	for i := 0; i < defaultBuffer+10; i++ {
		ch.Status(model.ProgressEvent{Step: model.StepWebsite, Message: "working"})
	}
	ch.Completed(model.CompletedPayload{RunID: "r3", LeadCount: 1})

	events := drain(ch)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, EventCompleted, last.Name)
	assert.Equal(t, "r3", last.Data.(model.CompletedPayload).RunID)
}

func TestServeSSE_WritesNamedEvents(t *testing.T) {
	ch := NewChannel()
	ch.Status(model.ProgressEvent{Step: model.StepInit, Message: "Starting lead run"})
	ch.Completed(model.CompletedPayload{RunID: "run-1", LeadCount: 1})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/run/stream", nil)

	err := ServeSSE(rec, req, ch, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-transform", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: status\n")
	assert.Contains(t, body, `"step":"init"`)
	assert.Contains(t, body, "event: completed\n")
	assert.Contains(t, body, `"runId":"run-1"`)

	// Terminal event is last.
	assert.True(t, strings.Index(body, "event: status") < strings.Index(body, "event: completed"))
}

func TestServeSSE_Heartbeat(t *testing.T) {
	ch := NewChannel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/run/stream", nil)

	go func() {
		time.Sleep(80 * time.Millisecond)
		ch.Completed(model.CompletedPayload{RunID: "r"})
	}()

	err := ServeSSE(rec, req, ch, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Contains(t, rec.Body.String(), ": heartbeat\n\n")
}

func TestServeSSE_SubscriberDisconnect(t *testing.T) {
	ch := NewChannel()

	ctx, cancel := context.WithCancel(context.Background())
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/run/stream", nil).WithContext(ctx)

	done := make(chan error, 1)
	go func() { done <- ServeSSE(rec, req, ch, time.Hour) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ServeSSE did not return after disconnect")
	}
}
