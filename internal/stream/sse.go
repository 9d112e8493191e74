package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultHeartbeat is the keep-alive interval between comment lines.
const DefaultHeartbeat = 15 * time.Second

// ServeSSE drains the channel onto w as a text/event-stream, emitting a
// comment line every heartbeat interval to hold idle connections open.
// Returns when the channel closes (terminal event sent) or the request
// context is cancelled (subscriber disconnect).
func ServeSSE(w http.ResponseWriter, r *http.Request, ch *Channel, heartbeat time.Duration) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return eris.New("stream: response writer does not support flushing")
	}
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return nil

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return eris.Wrap(err, "stream: write heartbeat")
			}
			flusher.Flush()

		case ev, open := <-ch.Events():
			if !open {
				return nil
			}
			data, err := json.Marshal(ev.Data)
			if err != nil {
				return eris.Wrapf(err, "stream: marshal %s event", ev.Name)
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
				return eris.Wrapf(err, "stream: write %s event", ev.Name)
			}
			flusher.Flush()
		}
	}
}
