// Package sim is a local stand-in for the trade-chat backend. It speaks the
// same SSE protocol and token-refresh endpoint as the real service, with
// scripted exchanges and deterministic token rotation, so the client stack
// can be exercised end to end without the production backend.
package sim

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tradeatlas/tradechat-go/internal/domain"
	"github.com/tradeatlas/tradechat-go/internal/protocol"
)

const refreshTokenHeader = "X-Refresh-Token"

// Server simulates the backend. Access tokens are minted in sequence and
// optionally expire after a fixed number of uses, forcing clients through
// the refresh protocol.
type Server struct {
	Router *chi.Mux

	logger     *slog.Logger
	script     ScriptFunc
	frameDelay time.Duration

	mu           sync.Mutex
	seq          int
	accessToken  string
	refreshToken string
	usesLeft     int
	tokenTTL     int
}

// Option configures the simulator.
type Option func(*Server)

// WithScript replaces the exchange script.
func WithScript(fn ScriptFunc) Option {
	return func(s *Server) { s.script = fn }
}

// WithFrameDelay inserts a pause between SSE frames to approximate real
// streaming pacing.
func WithFrameDelay(d time.Duration) Option {
	return func(s *Server) { s.frameDelay = d }
}

// WithTokenTTL expires each access token after n authenticated requests.
// Zero means tokens never expire.
func WithTokenTTL(n int) Option {
	return func(s *Server) { s.tokenTTL = n }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New builds a simulator with its routes mounted under /api.
func New(opts ...Option) *Server {
	s := &Server{
		logger:       slog.Default(),
		script:       DefaultScript,
		refreshToken: "sim-refresh-" + uuid.New().String(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/refresh", s.handleRefresh)
		r.Post("/chat/stream", s.handleChatStream)
		r.Get("/health", s.handleHealth)
	})

	s.Router = r
	return s
}

// Issue mints a fresh credential pair, the way a login would. The returned
// refresh token stays valid across rotations.
func (s *Server) Issue() (accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotateLocked()
	return s.accessToken, s.refreshToken
}

// ExpireAccessToken invalidates the current access token immediately.
func (s *Server) ExpireAccessToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
}

// RefreshCount reports how many access tokens have been minted.
func (s *Server) RefreshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func (s *Server) rotateLocked() {
	s.seq++
	s.accessToken = fmt.Sprintf("sim-access-%d", s.seq)
	s.usesLeft = s.tokenTTL
}

// authorize validates the bearer credential. Requests without one are
// served as guest sessions.
func (s *Server) authorize(r *http.Request) (member, ok bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return false, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken == "" || header != "Bearer "+s.accessToken {
		return true, false
	}
	if s.tokenTTL > 0 {
		s.usesLeft--
		if s.usesLeft <= 0 {
			s.accessToken = ""
		}
	}
	return true, true
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	valid := r.Header.Get(refreshTokenHeader) == s.refreshToken
	if valid {
		s.rotateLocked()
	}
	token := s.accessToken
	s.mu.Unlock()

	if !valid {
		writeError(w, http.StatusUnauthorized, "AUTH_REFRESH_REJECTED", "invalid refresh token")
		return
	}
	writeSuccess(w, map[string]string{"accessToken": token})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]string{"status": "ok"})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid chat request")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "EMPTY_MESSAGE", "message must not be empty")
		return
	}

	member, ok := s.authorize(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "AUTH_EXPIRED", "access token expired")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "sess_" + uuid.New().String()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	for _, ev := range s.script(&req, sessionID, member) {
		name, data, err := protocol.EncodeEvent(ev)
		if err != nil {
			s.logger.Error("failed to encode event", slog.String("error", err.Error()))
			break
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
			return
		}
		flusher.Flush()

		if s.frameDelay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(s.frameDelay):
			}
		}
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type envelope struct {
	Success   string `json:"success"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

func writeSuccess(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(envelope{Success: "SUCCESS", Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Success: "ERROR", Message: message, ErrorCode: code})
}
