package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"campusconnect/internal/auth"
	"campusconnect/internal/models"
	"campusconnect/internal/observability"
	"campusconnect/internal/repository"
	"campusconnect/internal/validation"
)

// Token is the access token half of the session service's dependencies.
type Token interface {
	IssueAccessToken(p *models.Profile) (string, *auth.Claims, error)
	TTL() time.Duration
}

// RefreshTokens issues and rotates opaque refresh tokens.
type RefreshTokens interface {
	Issue(ctx context.Context, userID uint) (string, error)
	Rotate(ctx context.Context, token string) (uint, string, error)
	Revoke(ctx context.Context, token string) error
}

// Revoker blacklists access tokens by jti.
type Revoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
}

// SessionConfig tunes session timing.
type SessionConfig struct {
	// ProfileTimeout bounds the profile lookup during Bootstrap.
	ProfileTimeout time.Duration
	// RefreshInterval is advertised to clients as the token refresh period.
	RefreshInterval time.Duration
	// AdminEmail, when set, signs up as admin instead of student.
	AdminEmail string
}

// SessionService owns signup, login, token refresh, logout and the session bootstrap.
type SessionService struct {
	profiles  repository.ProfileRepository
	tokens    Token
	refresh   RefreshTokens
	blacklist Revoker
	cfg       SessionConfig
	now       func() time.Time
}

// SignupInput is the self-registration payload.
type SignupInput struct {
	Email         string
	Password      string
	FullName      string
	Department    string
	StudentNumber string
	YearOfStudy   int
}

// AuthResult is returned by every operation that issues tokens.
type AuthResult struct {
	AccessToken     string          `json:"access_token"`
	RefreshToken    string          `json:"refresh_token"`
	TokenType       string          `json:"token_type"`
	ExpiresAt       time.Time       `json:"expires_at"`
	ExpiresIn       int             `json:"expires_in"`
	RefreshInterval int             `json:"refresh_interval"`
	Profile         *models.Profile `json:"profile"`
}

// SessionState is the result of the initial session check.
type SessionState struct {
	Profile *models.Profile `json:"profile"`
	// Fallback is true when Profile is the default profile because the stored
	// one could not be loaded in time.
	Fallback             bool          `json:"fallback"`
	FallbackReason       string        `json:"fallback_reason,omitempty"`
	Permissions          []auth.Action `json:"permissions"`
	ServerTime           time.Time     `json:"server_time"`
	AccessTokenExpiresAt time.Time     `json:"access_token_expires_at,omitempty"`
	RefreshInterval      int           `json:"refresh_interval"`
}

// NewSessionService wires the session service.
func NewSessionService(
	profiles repository.ProfileRepository,
	tokens Token,
	refresh RefreshTokens,
	blacklist Revoker,
	cfg SessionConfig,
) *SessionService {
	if cfg.ProfileTimeout <= 0 {
		cfg.ProfileTimeout = 3 * time.Second
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = tokens.TTL() * 2 / 3
	}
	return &SessionService{
		profiles:  profiles,
		tokens:    tokens,
		refresh:   refresh,
		blacklist: blacklist,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Signup creates a student profile, or an admin for the configured admin
// email, and logs it in.
func (s *SessionService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	studentNumber := validation.NormalizeStudentNumber(in.StudentNumber)

	if err := validation.Required("Email", email); err != nil {
		return nil, invalid(err)
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, invalid(err)
	}
	if err := validation.ValidatePasswordFor(in.Password, email); err != nil {
		return nil, invalid(err)
	}
	if err := firstErr(
		validation.RequiredMax("Full name", in.FullName, 100),
		validation.MaxLength("Department", in.Department, 100),
		validation.ValidateYearOfStudy(in.YearOfStudy),
	); err != nil {
		return nil, invalid(err)
	}
	if studentNumber != "" {
		if err := validation.ValidateStudentNumber(studentNumber); err != nil {
			return nil, invalid(err)
		}
	}

	existing, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("An account with this email already exists")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	role := models.RoleStudent
	if s.cfg.AdminEmail != "" && strings.EqualFold(s.cfg.AdminEmail, email) {
		role = models.RoleAdmin
	}

	profile := &models.Profile{
		Email:       email,
		Password:    hash,
		FullName:    strings.TrimSpace(in.FullName),
		Role:        role,
		Department:  strings.TrimSpace(in.Department),
		YearOfStudy: in.YearOfStudy,
	}
	if studentNumber != "" {
		profile.StudentNumber = &studentNumber
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		return nil, err
	}

	return s.issue(ctx, profile)
}

// Login checks the password and issues a fresh token pair. Unknown emails and
// wrong passwords fail the same way.
func (s *SessionService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if profile == nil || !auth.CheckPassword(profile.Password, password) {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}

	return s.issue(ctx, profile)
}

// Refresh rotates refreshToken. A reused token revokes the whole session family.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, models.NewValidationError("Refresh token is required")
	}

	userID, next, err := s.refresh.Rotate(ctx, refreshToken)
	switch {
	case errors.Is(err, auth.ErrRefreshTokenReused):
		observability.CaptureMessage(ctx, "refresh token reuse detected")
		return nil, models.NewUnauthorizedError("Refresh token has already been used")
	case errors.Is(err, auth.ErrRefreshTokenInvalid):
		return nil, models.NewUnauthorizedError("Invalid or expired refresh token")
	case errors.Is(err, auth.ErrStoreUnavailable):
		return nil, models.NewUnavailableError("Session store unavailable", err)
	case err != nil:
		return nil, models.NewInternalError(err)
	}

	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			_ = s.refresh.Revoke(ctx, next)
			return nil, models.NewUnauthorizedError("Account no longer exists")
		}
		return nil, err
	}

	access, claims, err := s.tokens.IssueAccessToken(profile)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.result(profile, access, next, claims), nil
}

// Logout revokes refreshToken and blacklists the current access token until it expires.
func (s *SessionService) Logout(ctx context.Context, refreshToken string, claims *auth.Claims) error {
	if refreshToken != "" {
		if err := s.refresh.Revoke(ctx, refreshToken); err != nil && !errors.Is(err, auth.ErrRefreshTokenInvalid) {
			observability.CaptureError(ctx, err, slog.String("op", "logout.revoke_refresh"))
		}
	}
	if claims != nil && claims.ID != "" && s.blacklist != nil {
		if ttl := claims.Remaining(s.now()); ttl > 0 {
			if err := s.blacklist.Revoke(ctx, claims.ID, ttl); err != nil {
				return models.NewUnavailableError("Could not revoke session", err)
			}
		}
	}
	return nil
}

type profileResult struct {
	profile *models.Profile
	err     error
}

// Bootstrap performs the initial session check for an authenticated caller.
// The profile lookup is raced against the configured timeout; on timeout or
// failure the default profile is returned with Fallback set. It never waits
// longer than the timeout and never fails because of the profile lookup.
func (s *SessionService) Bootstrap(ctx context.Context, userID uint, email string) (*SessionState, error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Not authenticated")
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.ProfileTimeout)
	defer cancel()

	// Buffered so the lookup goroutine can always finish after a timeout.
	done := make(chan profileResult, 1)
	go func() {
		p, err := s.profiles.GetByID(lookupCtx, userID)
		done <- profileResult{profile: p, err: err}
	}()

	var (
		profile *models.Profile
		reason  string
		failure error
	)
	select {
	case r := <-done:
		var appErr *models.AppError
		switch {
		case errors.As(r.err, &appErr) && appErr.Code == models.CodeNotFound:
			reason, failure = "profile_missing", r.err
		case r.err != nil:
			reason, failure = "profile_error", r.err
		case r.profile == nil:
			reason, failure = "profile_missing", models.NewNotFoundError("Profile", userID)
		default:
			profile = r.profile
		}
	case <-lookupCtx.Done():
		reason, failure = "profile_timeout", lookupCtx.Err()
	}

	state := &SessionState{
		ServerTime:      s.now().UTC(),
		RefreshInterval: int(s.cfg.RefreshInterval / time.Second),
	}
	if profile != nil {
		observability.SessionBootstraps.WithLabelValues("ok").Inc()
		state.Profile = profile
	} else {
		observability.SessionBootstraps.WithLabelValues("fallback").Inc()
		observability.CaptureError(ctx, failure,
			slog.String("op", "session.bootstrap"),
			slog.String("reason", reason),
			slog.Uint64("user_id", uint64(userID)),
		)
		state.Profile = models.DefaultProfile(userID, email)
		state.Fallback = true
		state.FallbackReason = reason
	}
	state.Permissions = auth.Permissions(state.Profile.Role)
	return state, nil
}

func (s *SessionService) issue(ctx context.Context, profile *models.Profile) (*AuthResult, error) {
	access, claims, err := s.tokens.IssueAccessToken(profile)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	refresh, err := s.refresh.Issue(ctx, profile.ID)
	if err != nil {
		if errors.Is(err, auth.ErrStoreUnavailable) {
			return nil, models.NewUnavailableError("Session store unavailable", err)
		}
		return nil, models.NewInternalError(err)
	}
	return s.result(profile, access, refresh, claims), nil
}

func (s *SessionService) result(profile *models.Profile, access, refresh string, claims *auth.Claims) *AuthResult {
	res := &AuthResult{
		AccessToken:     access,
		RefreshToken:    refresh,
		TokenType:       "Bearer",
		ExpiresIn:       int(s.tokens.TTL() / time.Second),
		RefreshInterval: int(s.cfg.RefreshInterval / time.Second),
		Profile:         profile,
	}
	if claims != nil && claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Time
	}
	return res
}
