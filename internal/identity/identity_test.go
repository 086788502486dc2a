package identity

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func captureIdentity(t *testing.T, req *http.Request) (clientID, sessionID string, rec *httptest.ResponseRecorder) {
	t.Helper()
	rec = httptest.NewRecorder()
	h := Middleware(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID = ClientIDFromContext(r.Context())
		sessionID = SessionIDFromContext(r.Context())
	}))
	h.ServeHTTP(rec, req)
	return clientID, sessionID, rec
}

func TestMiddlewareIssuesClientCookie(t *testing.T) {
	t.Parallel()

	clientID, sessionID, rec := captureIdentity(t, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if _, err := uuid.Parse(clientID); err != nil {
		t.Fatalf("client id %q is not a uuid: %v", clientID, err)
	}
	if sessionID != DefaultSessionIDValue {
		t.Errorf("session id = %q, want default", sessionID)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != ClientCookieName || cookies[0].Value != clientID {
		t.Fatalf("unexpected cookies: %+v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Error("client cookie should be HttpOnly")
	}
}

func TestMiddlewareReusesValidCookie(t *testing.T) {
	t.Parallel()

	existing := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: existing})
	req.Header.Set(SessionHeaderName, "tab-42")

	clientID, sessionID, _ := captureIdentity(t, req)
	if clientID != existing {
		t.Errorf("client id = %q, want %q", clientID, existing)
	}
	if sessionID != "tab-42" {
		t.Errorf("session id = %q, want tab-42", sessionID)
	}
}

func TestMiddlewareReplacesForgedCookie(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: "../../etc/passwd"})

	clientID, _, _ := captureIdentity(t, req)
	if clientID == "../../etc/passwd" {
		t.Fatal("forged client id accepted")
	}
}

func TestSessionIDFromQueryAndSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		target string
		want   string
	}{
		{"/ws/chat?session_id=abc.1", "abc.1"},
		{"/ws/chat?session_id=has%20space", DefaultSessionIDValue},
		{"/ws/chat", DefaultSessionIDValue},
	}
	for _, tt := range tests {
		_, got, _ := captureIdentity(t, httptest.NewRequest(http.MethodGet, tt.target, nil))
		if got != tt.want {
			t.Errorf("%s: session id = %q, want %q", tt.target, got, tt.want)
		}
	}
}

func TestIPFromRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	if got := IPFromRequest(req); got != "10.0.0.7" {
		t.Errorf("IPFromRequest = %q", got)
	}
}

func TestClientCookieSecureOnlyOverTLS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		tls        bool
		proto      string
		trustProxy bool
		want       bool
	}{
		{"plain http", false, "", false, false},
		{"plain http trusted proxy", false, "", true, false},
		{"tls", true, "", false, true},
		{"forwarded https trusted", false, "https", true, true},
		{"forwarded https untrusted", false, "https", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if !tt.tls {
				req.TLS = nil
			} else if req.TLS == nil {
				req.TLS = &tls.ConnectionState{}
			}
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			rec := httptest.NewRecorder()
			Middleware(tt.trustProxy)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rec, req)

			cookies := rec.Result().Cookies()
			if len(cookies) != 1 {
				t.Fatalf("cookies = %+v", cookies)
			}
			if cookies[0].Secure != tt.want {
				t.Errorf("Secure = %v, want %v", cookies[0].Secure, tt.want)
			}
		})
	}
}
