package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/ashureev/hacxweb/internal/chat"
	"github.com/ashureev/hacxweb/internal/domain"
	"github.com/coder/websocket"
)

// wsMessage is the client to server frame.
type wsMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// wsEvent is the server to client frame.
type wsEvent struct {
	Type  string             `json:"type"`
	Turns *domain.Transcript `json:"turns,omitempty"`
	Error string             `json:"error,omitempty"`
}

// ChatSocket handles GET /ws/chat, a WebSocket variant of POST /api/chat.
// Each "chat" frame produces "snapshot" frames and a final "done".
func (h *Handler) ChatSocket(w http.ResponseWriter, r *http.Request) {
	key := keyFromRequest(r)
	h.logger.Info("WebSocket connection request", "client_id", key.ClientID, "session_id", key.SessionID, "ip", r.RemoteAddr)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     originPatterns(h.opts.AllowedOrigins),
		InsecureSkipVerify: h.opts.IsDev,
	})
	if err != nil {
		h.logger.Warn("Failed to accept WebSocket", "error", err, "client_id", key.ClientID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "client_id", key.ClientID)
		}
	}()
	ws.SetReadLimit(h.opts.MaxRequestBodySize)

	ctx := r.Context()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				h.logger.Debug("WebSocket closed by client", "client_id", key.ClientID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "client_id", key.ClientID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := writeWS(ctx, ws, wsEvent{Type: "error", Error: "invalid message"}); err != nil {
				return
			}
			continue
		}

		switch msg.Type {
		case "ping":
			err = writeWS(ctx, ws, wsEvent{Type: "pong"})
		case "chat":
			err = h.socketChat(ctx, ws, key, msg.Message)
		default:
			err = writeWS(ctx, ws, wsEvent{Type: "error", Error: "unknown message type"})
		}
		if err != nil {
			h.logger.Debug("WebSocket write failed", "error", err, "client_id", key.ClientID)
			return
		}
	}
}

func (h *Handler) socketChat(ctx context.Context, ws *websocket.Conn, key chat.Key, message string) error {
	if !h.rateLimiter.Allow(key.ClientID) {
		return writeWS(ctx, ws, wsEvent{Type: "error", Error: "rate limit exceeded"})
	}

	orch, release, err := h.manager.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, chat.ErrBusy) {
			return writeWS(ctx, ws, wsEvent{Type: "error", Error: "session_busy"})
		}
		return writeWS(ctx, ws, wsEvent{Type: "error", Error: "failed to load session"})
	}
	defer release()

	for snap := range orch.Send(ctx, message) {
		if err := writeWS(ctx, ws, wsEvent{Type: "snapshot", Turns: &snap}); err != nil {
			return err
		}
	}
	final := orch.Transcript()
	return writeWS(ctx, ws, wsEvent{Type: "done", Turns: &final})
}

func writeWS(ctx context.Context, ws *websocket.Conn, v wsEvent) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

// originPatterns converts configured origins to the host patterns the
// websocket library matches against. Same-host requests are always allowed.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
