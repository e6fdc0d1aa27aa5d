package shiphero

import (
	"context"
	"errors"
	"sync"
	"time"
)

// RefreshFunc exchanges a refresh credential for a new access token and its
// lifetime.
type RefreshFunc func(ctx context.Context, refreshToken string) (string, time.Duration, error)

// PersistFunc receives a freshly refreshed token so callers can store it
// outside the process (env file, secret store) before the next run.
type PersistFunc func(accessToken string, expiresAt time.Time) error

// CredentialStore holds the access token + expiry + refresh token for the
// warehouse API. It replaces what used to be process-global credential
// state: the client reads through Current, which refreshes on expiry.
type CredentialStore struct {
	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time

	refresh RefreshFunc
	persist PersistFunc
	now     func() time.Time
}

func NewCredentialStore(accessToken, refreshToken string, expiresAt time.Time) *CredentialStore {
	return &CredentialStore{
		accessToken:  accessToken,
		refreshToken: refreshToken,
		expiresAt:    expiresAt,
		now:          time.Now,
	}
}

// OnRefresh registers a persistence hook invoked after every successful
// token refresh.
func (s *CredentialStore) OnRefresh(persist PersistFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persist = persist
}

func (s *CredentialStore) expired() bool {
	if s.expiresAt.IsZero() {
		return s.accessToken == ""
	}
	return !s.now().Before(s.expiresAt)
}

// Current returns a valid access token, refreshing first when the stored
// one has expired.
func (s *CredentialStore) Current(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.expired() {
		return s.accessToken, nil
	}
	return s.refreshLocked(ctx)
}

// Refresh forces a token exchange regardless of expiry.
func (s *CredentialStore) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *CredentialStore) refreshLocked(ctx context.Context) (string, error) {
	if s.refresh == nil {
		return "", errors.New("credential store has no refresh function")
	}
	if s.refreshToken == "" {
		return "", errors.New("refresh token is empty")
	}

	token, lifetime, err := s.refresh(ctx, s.refreshToken)
	if err != nil {
		return "", err
	}

	s.accessToken = token
	s.expiresAt = s.now().Add(lifetime)
	if s.persist != nil {
		if err := s.persist(token, s.expiresAt); err != nil {
			return "", err
		}
	}
	return token, nil
}

// ExpiresAt exposes the current expiry, mainly for diagnostics.
func (s *CredentialStore) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}
