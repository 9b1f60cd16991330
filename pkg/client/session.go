package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Credentials log a session in. Without a Password the client's existing
// tokens are reused and Email only names the fallback profile.
type Credentials struct {
	Email    string
	Password string
}

// Session is an authenticated client whose tokens are kept fresh in the
// background until Close.
type Session struct {
	client   *Client
	interval time.Duration

	mu         sync.RWMutex
	profile    Profile
	fallback   bool
	reason     string
	perms      []string
	advertised int
	lastErr    error
	onError    func(error)

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// SessionOption customises StartSession.
type SessionOption func(*Session)

// WithErrorHandler receives background refresh failures.
func WithErrorHandler(fn func(error)) SessionOption {
	return func(s *Session) { s.onError = fn }
}

// StartSession performs the initial session check: it logs in (or reuses the
// configured token), loads the profile with a bounded wait, and starts the
// token refresher. A slow or failing profile fetch never fails the session;
// the default profile is used instead.
func StartSession(ctx context.Context, c *Client, creds Credentials, opts ...SessionOption) (*Session, error) {
	s := &Session{
		client: c,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	email := creds.Email
	advertised := 0
	switch {
	case creds.Password != "":
		res, err := c.Login(ctx, creds.Email, creds.Password)
		if err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
		advertised = res.RefreshInterval
		if res.Profile != nil {
			email = res.Profile.Email
		}
	case c.Token() == "":
		return nil, ErrNotAuthenticated
	}

	if err := s.loadProfile(ctx, email); err != nil {
		return nil, err
	}
	if advertised == 0 {
		s.mu.RLock()
		advertised = s.advertised
		s.mu.RUnlock()
	}
	s.interval = refreshInterval(c.cfg.RefreshInterval, advertised)

	if c.RefreshToken() == "" {
		// Nothing to rotate with a bare access token.
		close(s.done)
		return s, nil
	}
	go s.refreshLoop()
	return s, nil
}

// loadProfile races the session check against the profile timeout. A
// rejected access token is refreshed once before the check is retried; only
// a failed refresh is returned, every other failure falls back.
func (s *Session) loadProfile(ctx context.Context, email string) error {
	state, err := s.checkSession(ctx)
	if IsStatus(err, http.StatusUnauthorized) && s.client.RefreshToken() != "" {
		res, rerr := s.client.Refresh(ctx)
		if rerr != nil {
			return fmt.Errorf("session expired: %w", rerr)
		}
		if res.Profile != nil && email == "" {
			email = res.Profile.Email
		}
		s.mu.Lock()
		s.advertised = res.RefreshInterval
		s.mu.Unlock()
		state, err = s.checkSession(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		s.profile, s.fallback, s.reason = DefaultProfile(email), true, "profile_timeout"
	case err != nil:
		s.profile, s.fallback, s.reason = DefaultProfile(email), true, "profile_error"
		s.lastErr = err
	case state.Profile == nil:
		s.profile, s.fallback, s.reason = DefaultProfile(email), true, "profile_missing"
	default:
		s.profile = *state.Profile
		s.fallback, s.reason = state.Fallback, state.FallbackReason
		s.perms = state.Permissions
		if state.RefreshInterval > 0 {
			s.advertised = state.RefreshInterval
		}
	}
	return nil
}

func (s *Session) checkSession(ctx context.Context) (*SessionState, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.client.cfg.ProfileTimeout)
	defer cancel()
	state, err := s.client.Bootstrap(fetchCtx)
	if err != nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
		return nil, context.DeadlineExceeded
	}
	return state, err
}

func refreshInterval(configured time.Duration, advertisedSeconds int) time.Duration {
	switch {
	case configured > 0:
		return configured
	case advertisedSeconds > 0:
		return time.Duration(advertisedSeconds) * time.Second
	default:
		return DefaultRefreshInterval
	}
}

func (s *Session) refreshLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.refreshOnce()
		}
	}
}

func (s *Session) refreshOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	// Close cancels an in-flight refresh.
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	res, err := s.client.Refresh(ctx)
	s.mu.Lock()
	s.lastErr = err
	if err == nil && res.Profile != nil && !s.fallback {
		s.profile = *res.Profile
	}
	handler := s.onError
	s.mu.Unlock()

	if err != nil && handler != nil {
		handler(err)
	}
}

// Client returns the underlying API client.
func (s *Session) Client() *Client { return s.client }

// Token returns the current access token.
func (s *Session) Token() string { return s.client.Token() }

// Profile returns the loaded profile, or the default one after a fallback.
func (s *Session) Profile() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Fallback reports whether Profile is the default profile and why.
func (s *Session) Fallback() (bool, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback, s.reason
}

// Permissions returns the actions the server granted this session.
func (s *Session) Permissions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.perms...)
}

// RefreshInterval is the period of the background refresher.
func (s *Session) RefreshInterval() time.Duration { return s.interval }

// Err returns the last profile or refresh error, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Close stops the refresher and waits for it to exit. It is safe to call
// more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.stop) })
	<-s.done
}
