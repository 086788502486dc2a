package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/hacxweb/internal/domain"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type chatRequest struct {
	Message string `json:"message"`
}

// sseStream serialises event writes from the handler and its keepalive loop.
type sseStream struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
}

func (s *sseStream) send(event, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeSSE(s.w, event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Chat handles POST /api/chat. Each transcript snapshot is streamed as an SSE
// "snapshot" event followed by one "done" event. The stream is cancelled when
// the client goes away.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	key := keyFromRequest(r)
	if key.ClientID == "" {
		Error(w, http.StatusUnauthorized, "missing client identity")
		return
	}
	if !h.rateLimiter.Allow(key.ClientID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req chatRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	orch, release, ok := h.acquire(w, r)
	if !ok {
		return
	}
	defer release()

	reqID := chiMiddleware.GetReqID(r.Context())
	h.logger.Info("Chat request",
		"client_id", key.ClientID,
		"session_id", key.SessionID,
		"request_id", reqID,
		"message_length", len(req.Message),
	)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	stream := &sseStream{w: w, flusher: flusher}
	stop := h.keepalive(stream)
	defer stop()

	ctx := r.Context()
	snapshots := 0
	for snap := range orch.Send(ctx, req.Message) {
		data, err := json.Marshal(snap)
		if err != nil {
			h.logger.Warn("failed to marshal transcript snapshot", "error", err)
			_ = stream.send("error", `{"error":"failed to serialize response"}`)
			return
		}
		if err := stream.send("snapshot", string(data)); err != nil {
			h.logger.Debug("Chat client went away", "error", err, "request_id", reqID)
			return
		}
		snapshots++
	}

	done, _ := json.Marshal(doneEvent(orch.Transcript(), snapshots))
	if err := stream.send("done", string(done)); err != nil {
		h.logger.Debug("failed to write SSE done event", "error", err)
	}
}

func doneEvent(t domain.Transcript, snapshots int) map[string]int {
	return map[string]int{"turns": t.Len(), "snapshots": snapshots}
}

// keepalive emits ping events until the returned func is called.
func (h *Handler) keepalive(stream *sseStream) func() {
	ticker := time.NewTicker(h.opts.KeepaliveInterval)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := stream.send("ping", `{"status":"alive"}`); err != nil {
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
