package auth

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// defaultCooldown suppresses re-entrant failure handling so a burst of
// concurrent 401s triggers the redirect side effect once.
const defaultCooldown = 3 * time.Second

// FailureHandler runs the global auth-failure side effect: clear the
// credential, remember where the user was for a post-login redirect, and
// notify the application. Handle is idempotent within the cool-down window.
type FailureHandler struct {
	mu           sync.Mutex
	handled      bool
	lastLocation string

	cooldown  time.Duration
	store     *TokenStore
	location  func() string
	onFailure func(savedLocation string)
	logger    *slog.Logger
}

// NewFailureHandler creates a failure handler. location reports the user's
// current position (route, view) at failure time; onFailure is invoked once
// per burst with the saved location and may be nil.
func NewFailureHandler(store *TokenStore, location func() string, onFailure func(string), logger *slog.Logger) *FailureHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FailureHandler{
		cooldown:  defaultCooldown,
		store:     store,
		location:  location,
		onFailure: onFailure,
		logger:    logger,
	}
}

// SetCooldown overrides the suppression window. Useful in tests.
func (h *FailureHandler) SetCooldown(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cooldown = d
}

// Handle performs the auth-failure side effect unless one already ran within
// the cool-down window.
func (h *FailureHandler) Handle() {
	h.mu.Lock()
	if h.handled {
		h.mu.Unlock()
		return
	}
	h.handled = true

	h.store.Clear()

	if h.location != nil {
		// Never redirect back into the auth flow itself.
		if loc := h.location(); loc != "" && !strings.HasPrefix(loc, "/auth/") {
			h.lastLocation = loc
		}
	}

	cb := h.onFailure
	loc := h.lastLocation
	cooldown := h.cooldown
	h.mu.Unlock()

	h.logger.Info("auth failure handled", slog.String("saved_location", loc))

	if cb != nil {
		cb(loc)
	}

	time.AfterFunc(cooldown, func() {
		h.mu.Lock()
		h.handled = false
		h.mu.Unlock()
	})
}

// LastLocation returns the location saved by the most recent handled
// failure, or "" if none.
func (h *FailureHandler) LastLocation() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastLocation
}
