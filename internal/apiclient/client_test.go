package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tradeatlas/tradechat-go/internal/auth"
	"github.com/tradeatlas/tradechat-go/internal/domain"
)

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func okEnvelope(data any) envelope {
	raw, _ := json.Marshal(data)
	return envelope{Success: envelopeSuccess, Data: raw}
}

// chatBackend is a scripted fake of the service for request-layer tests.
type chatBackend struct {
	mu           sync.Mutex
	validToken   string
	refreshCalls int32
	refreshDelay time.Duration
	refreshFail  bool
}

func (b *chatBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.refreshCalls, 1)
		if b.refreshDelay > 0 {
			time.Sleep(b.refreshDelay)
		}
		if b.refreshFail {
			writeEnvelope(w, http.StatusUnauthorized, envelope{Success: envelopeError, Message: "refresh token expired"})
			return
		}
		b.mu.Lock()
		b.validToken = "tok_" + time.Now().Format("150405.000000000")
		token := b.validToken
		b.mu.Unlock()
		writeEnvelope(w, http.StatusOK, okEnvelope(map[string]string{"accessToken": token}))
	})
	mux.HandleFunc("GET /profile", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		valid := b.validToken
		b.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+valid || valid == "" {
			writeEnvelope(w, http.StatusUnauthorized, envelope{Success: envelopeError, Message: "token expired", ErrorCode: "AUTH_EXPIRED"})
			return
		}
		writeEnvelope(w, http.StatusOK, okEnvelope(map[string]string{"name": "tester"}))
	})
	return mux
}

func newTestClient(t *testing.T, b *chatBackend, opts ...ClientOption) (*Client, *auth.TokenStore) {
	t.Helper()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	store := auth.NewTokenStore()
	store.SetRefreshToken("refresh_secret")
	opts = append([]ClientOption{WithBaseURL(srv.URL)}, opts...)
	return NewClient(store, opts...), store
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeEnvelope(w, http.StatusOK, okEnvelope(map[string]string{"ok": "yes"}))
	}))
	defer srv.Close()

	store := auth.NewTokenStore()
	store.SetAccessToken("tok_abc")
	c := NewClient(store, WithBaseURL(srv.URL))

	var out map[string]string
	if err := c.Get(context.Background(), "/anything", &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gotAuth != "Bearer tok_abc" {
		t.Errorf("Authorization = %q, want Bearer tok_abc", gotAuth)
	}
}

func TestClient_EnvelopeErrorBecomesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnprocessableEntity, envelope{
			Success:   envelopeError,
			Message:   "unknown HS code",
			ErrorCode: "HSCODE_INVALID",
		})
	}))
	defer srv.Close()

	c := NewClient(auth.NewTokenStore(), WithBaseURL(srv.URL))
	err := c.Get(context.Background(), "/codes/xx", nil)

	var httpErr *domain.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want HTTPError", err)
	}
	if httpErr.StatusCode != http.StatusUnprocessableEntity || httpErr.ErrorCode != "HSCODE_INVALID" {
		t.Errorf("HTTPError = %+v", httpErr)
	}
	if httpErr.IsAuthError {
		t.Error("IsAuthError = true for a 422")
	}
}

func TestClient_RefreshAndRetryOnce(t *testing.T) {
	b := &chatBackend{}
	c, store := newTestClient(t, b)
	store.SetAccessToken("tok_stale")

	var out map[string]string
	if err := c.Get(context.Background(), "/profile", &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if out["name"] != "tester" {
		t.Errorf("profile = %+v", out)
	}
	if n := atomic.LoadInt32(&b.refreshCalls); n != 1 {
		t.Errorf("refresh called %d times, want 1", n)
	}
	if store.AccessToken() == "tok_stale" {
		t.Error("access token not superseded by refresh")
	}
}

func TestClient_ConcurrentRequestsShareOneRefresh(t *testing.T) {
	b := &chatBackend{refreshDelay: 50 * time.Millisecond}
	c, store := newTestClient(t, b)
	store.SetAccessToken("tok_stale")

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var out map[string]string
			errs[i] = c.Get(context.Background(), "/profile", &out)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d failed: %v", i, err)
		}
	}
	if n := atomic.LoadInt32(&b.refreshCalls); n != 1 {
		t.Errorf("refresh called %d times for %d concurrent 401s, want exactly 1", n, workers)
	}
}

type countingFailureHandler struct {
	calls int32
}

func (h *countingFailureHandler) Handle() { atomic.AddInt32(&h.calls, 1) }

func TestClient_RefreshFailurePropagatesAuthError(t *testing.T) {
	b := &chatBackend{refreshFail: true}
	failures := &countingFailureHandler{}
	c, store := newTestClient(t, b, WithAuthFailureHandler(failures))
	store.SetAccessToken("tok_stale")

	err := c.Get(context.Background(), "/profile", nil)

	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want AuthError", err)
	}
	if store.Authenticated() {
		t.Error("access token not cleared after failed refresh")
	}
	if n := atomic.LoadInt32(&failures.calls); n != 1 {
		t.Errorf("failure handler called %d times, want 1", n)
	}
}

func TestClient_NeverRetriesTwice(t *testing.T) {
	var profileCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/auth/refresh") {
			writeEnvelope(w, http.StatusOK, okEnvelope(map[string]string{"accessToken": "tok_new"}))
			return
		}
		atomic.AddInt32(&profileCalls, 1)
		// Reject even the refreshed token.
		writeEnvelope(w, http.StatusUnauthorized, envelope{Success: envelopeError, Message: "nope"})
	}))
	defer srv.Close()

	store := auth.NewTokenStore()
	store.SetAccessToken("tok_stale")
	store.SetRefreshToken("refresh_secret")
	c := NewClient(store, WithBaseURL(srv.URL))

	err := c.Get(context.Background(), "/profile", nil)

	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want AuthError", err)
	}
	if n := atomic.LoadInt32(&profileCalls); n != 2 {
		t.Errorf("original request sent %d times, want exactly 2 (initial + one retry)", n)
	}
}

func TestClient_TransportErrorTyped(t *testing.T) {
	c := NewClient(auth.NewTokenStore(), WithBaseURL("http://127.0.0.1:1"))

	err := c.Get(context.Background(), "/profile", nil)
	var transport *domain.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("error = %v, want TransportError", err)
	}
}
