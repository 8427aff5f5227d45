// Package auth holds the process-wide credential state and the single-flight
// refresh protocol that guards it.
package auth

import "sync"

// TokenStore is the process-wide holder of the short-lived access credential.
// The long-lived refresh credential that authorizes the refresh call itself
// lives here too; token acquisition (login) is out of scope.
//
// The access token is superseded atomically on refresh and absent after
// Clear. TokenStore performs no I/O.
type TokenStore struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// AccessToken returns the current access token, or "" if absent.
func (s *TokenStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// SetAccessToken atomically replaces the access token.
func (s *TokenStore) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token
}

// RefreshToken returns the ambient long-lived credential.
func (s *TokenStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// SetRefreshToken installs the ambient long-lived credential.
func (s *TokenStore) SetRefreshToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshToken = token
}

// Clear drops the access token. The refresh credential is left in place so a
// later refresh can still succeed.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
}

// Authenticated reports whether an access token is currently held.
func (s *TokenStore) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != ""
}
