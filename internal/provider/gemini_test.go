package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ashureev/hacxweb/internal/domain"
)

// geminiServer serves the parts of the Gemini REST API a session uses.
type geminiServer struct {
	chunks  []string
	failMsg string

	mu       sync.Mutex
	requests []geminiRequest
	gets     int
}

type geminiRequest struct {
	Contents []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	SystemInstruction *struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"systemInstruction"`
}

func (g *geminiServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1beta/models/"):
		g.mu.Lock()
		g.gets++
		g.mu.Unlock()
		if r.Header.Get("x-goog-api-key") == "bad-key" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"name":"models/gemini-flash","displayName":"Gemini Flash"}`)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":streamGenerateContent"):
		var req geminiRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		g.mu.Lock()
		g.requests = append(g.requests, req)
		g.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		for i, chunk := range g.chunks {
			candidate := map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]string{{"text": chunk}},
				},
			}
			if i == len(g.chunks)-1 && g.failMsg == "" {
				candidate["finishReason"] = "STOP"
			}
			payload, _ := json.Marshal(map[string]any{"candidates": []any{candidate}})
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		if g.failMsg != "" {
			fmt.Fprintf(w, `{"error":{"code":500,"message":%q,"status":"INTERNAL"}}`+"\n\n", g.failMsg)
		}
	default:
		http.NotFound(w, r)
	}
}

func (g *geminiServer) userTurns(i int) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, c := range g.requests[i].Contents {
		if c.Role == "user" && len(c.Parts) > 0 {
			out = append(out, c.Parts[0].Text)
		}
	}
	return out
}

func newGeminiTestSession(t *testing.T, srv *geminiServer, key string, opts Options) (*GeminiSession, error) {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	opts.HTTPClient = ts.Client()
	p := domain.ProviderConfig{ID: "gemini", Kind: domain.KindGemini, BaseURL: ts.URL + "/"}
	return NewGeminiSession(context.Background(), p, key, "gemini-flash", opts, slog.Default())
}

func TestGeminiSessionStreamsFragments(t *testing.T) {
	t.Parallel()

	srv := &geminiServer{chunks: []string{"Hel", "lo"}}
	s, err := newGeminiTestSession(t, srv, "key", Options{SystemPrompt: "be brief"})
	if err != nil {
		t.Fatalf("NewGeminiSession failed: %v", err)
	}

	got, err := collect(t, s, "hi")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if strings.Join(got, "|") != "Hel|lo" {
		t.Errorf("fragments = %q", got)
	}

	srv.mu.Lock()
	sys := srv.requests[0].SystemInstruction
	srv.mu.Unlock()
	if sys == nil || len(sys.Parts) == 0 || sys.Parts[0].Text != "be brief" {
		t.Errorf("system instruction not sent: %+v", sys)
	}
}

func TestGeminiSessionKeepsHistoryAndResets(t *testing.T) {
	t.Parallel()

	srv := &geminiServer{chunks: []string{"ok"}}
	s, err := newGeminiTestSession(t, srv, "key", Options{})
	if err != nil {
		t.Fatalf("NewGeminiSession failed: %v", err)
	}

	for _, msg := range []string{"first", "second"} {
		if _, err := collect(t, s, msg); err != nil {
			t.Fatalf("Chat(%q) failed: %v", msg, err)
		}
	}
	if got := srv.userTurns(1); strings.Join(got, ",") != "first,second" {
		t.Errorf("second request user turns = %q", got)
	}

	s.Reset()
	if _, err := collect(t, s, "third"); err != nil {
		t.Fatalf("Chat after reset failed: %v", err)
	}
	if got := srv.userTurns(2); strings.Join(got, ",") != "third" {
		t.Errorf("after reset user turns = %q, want only third", got)
	}
}

func TestGeminiSessionStreamError(t *testing.T) {
	t.Parallel()

	srv := &geminiServer{chunks: []string{"Par"}, failMsg: "backend exploded"}
	s, err := newGeminiTestSession(t, srv, "key", Options{})
	if err != nil {
		t.Fatalf("NewGeminiSession failed: %v", err)
	}

	got, err := collect(t, s, "hi")
	if err == nil {
		t.Fatal("expected stream error")
	}
	if !strings.Contains(err.Error(), "gemini stream error") || !strings.Contains(err.Error(), "backend exploded") {
		t.Errorf("error = %v", err)
	}
	if strings.Join(got, "") != "Par" {
		t.Errorf("fragments before error = %q", got)
	}
}

func TestGeminiSessionVerify(t *testing.T) {
	t.Parallel()

	srv := &geminiServer{chunks: []string{"x"}}
	if _, err := newGeminiTestSession(t, srv, "key", Options{Verify: true}); err != nil {
		t.Fatalf("verify with good key failed: %v", err)
	}
	if _, err := newGeminiTestSession(t, srv, "bad-key", Options{Verify: true}); err == nil {
		t.Fatal("expected verify to reject a bad key")
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.gets != 2 {
		t.Errorf("model lookups = %d, want 2", srv.gets)
	}
}

func TestFactoryConnectsGeminiKind(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(&geminiServer{chunks: []string{"x"}})
	t.Cleanup(ts.Close)

	f := NewFactory(Options{HTTPClient: ts.Client()}, nil)
	sess, err := f.Connect(context.Background(),
		domain.ProviderConfig{ID: "gemini", Kind: domain.KindGemini, BaseURL: ts.URL + "/"}, "key", "gemini-flash")
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if _, ok := sess.(*GeminiSession); !ok {
		t.Fatalf("expected *GeminiSession, got %T", sess)
	}
}
