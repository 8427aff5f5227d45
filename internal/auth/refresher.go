package auth

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// RefreshFunc performs the network refresh call and returns the new access
// token. It authorizes itself with the store's refresh credential.
type RefreshFunc func(ctx context.Context) (string, error)

// Refresher guarantees at most one in-flight refresh operation across all
// concurrent callers; callers that arrive while a refresh is running share
// its outcome.
type Refresher struct {
	group   singleflight.Group
	store   *TokenStore
	refresh RefreshFunc
	logger  *slog.Logger
}

// refreshKey is the single key all callers collapse onto.
const refreshKey = "token-refresh"

// NewRefresher creates a refresher that writes refreshed tokens into store.
func NewRefresher(store *TokenStore, refresh RefreshFunc, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{store: store, refresh: refresh, logger: logger}
}

// Refresh runs the refresh protocol, or joins the one already in flight.
// On success the store holds the new token; on failure the store is cleared
// and every waiter receives the same error.
//
// The context of the caller that starts the flight governs the network call;
// late joiners share its result regardless of their own deadlines.
func (r *Refresher) Refresh(ctx context.Context) error {
	_, err, shared := r.group.Do(refreshKey, func() (any, error) {
		r.logger.Debug("starting token refresh")
		token, err := r.refresh(ctx)
		if err != nil {
			r.store.Clear()
			return nil, err
		}
		r.store.SetAccessToken(token)
		return token, nil
	})
	if err != nil {
		r.logger.Warn("token refresh failed",
			slog.Bool("shared", shared),
			slog.String("error", err.Error()),
		)
		return err
	}
	r.logger.Debug("token refresh succeeded", slog.Bool("shared", shared))
	return nil
}
