package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shuttletrack/api/internal/model"
)

// Session owns the client-side authentication state: the access token and
// the user snapshot, kept in memory and mirrored to the Store as a pair.
// All methods are safe for concurrent use.
type Session struct {
	mu    sync.Mutex
	api   *API
	store Store
	token string
	user  *model.SafeUser
	now   func() time.Time
}

// NewSession restores any persisted session from the store. A corrupt or
// absent snapshot just starts the session logged out. Callers validate the
// restored state with Start before trusting it.
func NewSession(api *API, store Store) *Session {
	s := &Session{api: api, store: store, now: func() time.Time { return time.Now().UTC() }}
	if snap, err := store.Load(); err == nil {
		s.token = snap.Token
		user := snap.User
		s.user = &user
	}
	return s
}

// Start is the process-start validation step: a restored token may have
// expired while the client was away, so the session is refreshed against
// the server before any routing happens. Ends logged out (nil user) when
// the token is expired or the server rejects it; a logged-out session is
// a no-op.
func (s *Session) Start(ctx context.Context) (*model.SafeUser, error) {
	return s.RefreshUserData(ctx)
}

// Register creates an account and signs the session in with the returned
// token.
func (s *Session) Register(ctx context.Context, req RegisterRequest) (model.SafeUser, error) {
	snap, err := s.api.Register(ctx, req)
	if err != nil {
		return model.SafeUser{}, err
	}
	return s.adopt(snap)
}

// Login authenticates with email and password. A failed attempt leaves any
// existing session untouched.
func (s *Session) Login(ctx context.Context, email, password string) (model.SafeUser, error) {
	snap, err := s.api.Login(ctx, email, password)
	if err != nil {
		return model.SafeUser{}, err
	}
	return s.adopt(snap)
}

// LoginGoogle signs in with a decoded Google assertion. ErrRegistrationRequired
// means the account does not exist yet and the caller should send the user to
// registration.
func (s *Session) LoginGoogle(ctx context.Context, req GoogleRequest) (model.SafeUser, error) {
	snap, err := s.api.Google(ctx, req)
	if err != nil {
		return model.SafeUser{}, err
	}
	return s.adopt(snap)
}

// LoginGoogleCredential decodes a raw Google ID token (the credential string
// handed over by the sign-in widget) and signs in with it. The decode is
// unverified; the server decides whether the identity is acceptable.
func (s *Session) LoginGoogleCredential(ctx context.Context, credential string) (model.SafeUser, error) {
	req, err := decodeGoogleCredential(credential)
	if err != nil {
		return model.SafeUser{}, err
	}
	return s.LoginGoogle(ctx, req)
}

// Logout drops the session unconditionally. It is idempotent and never
// contacts the server; tokens simply age out.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	_ = s.store.Clear()
}

// IsAuthenticated reports whether the session holds a token that has not
// expired locally, together with its user snapshot.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && s.user != nil && !tokenExpired(s.token, s.now())
}

// CurrentUser returns a copy of the cached user snapshot, or nil when logged
// out.
func (s *Session) CurrentUser() *model.SafeUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	user := *s.user
	return &user
}

// Token returns the raw access token, or empty when logged out.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// RefreshUserData re-fetches the profile from the server and re-persists the
// pair. An expired token or a failed fetch ends the session: the snapshot is
// cleared and the caller sees a nil user.
func (s *Session) RefreshUserData(ctx context.Context) (*model.SafeUser, error) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token == "" {
		return nil, nil
	}
	if tokenExpired(token, s.now()) {
		s.Logout()
		return nil, nil
	}

	user, err := s.api.Me(ctx, token)
	if err != nil {
		s.Logout()
		return nil, fmt.Errorf("refresh user: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// A logout may have raced the fetch; do not resurrect the session.
	if s.token != token {
		return nil, nil
	}
	s.user = &user
	_ = s.store.Save(Snapshot{Token: s.token, User: user})
	out := user
	return &out, nil
}

// UpdateProfile pushes a partial profile update and refreshes the cached
// snapshot with the server's response.
func (s *Session) UpdateProfile(ctx context.Context, req ProfileRequest) (model.SafeUser, error) {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()

	if token == "" {
		return model.SafeUser{}, errors.New("client: not logged in")
	}

	user, err := s.api.UpdateProfile(ctx, token, req)
	if err != nil {
		return model.SafeUser{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == token {
		s.user = &user
		_ = s.store.Save(Snapshot{Token: s.token, User: user})
	}
	return user, nil
}

// Guard returns the session's current guard state for route decisions.
func (s *Session) Guard() GuardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := GuardState{Resolved: true}
	if s.token != "" && s.user != nil && !tokenExpired(s.token, s.now()) {
		state.Authenticated = true
		state.Role = s.user.Role
	}
	return state
}

// adopt installs a fresh token/user pair and persists it.
func (s *Session) adopt(snap Snapshot) (model.SafeUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = snap.Token
	user := snap.User
	s.user = &user
	if err := s.store.Save(snap); err != nil {
		return user, fmt.Errorf("persist session: %w", err)
	}
	return user, nil
}

// decodeGoogleCredential lifts the profile claims out of a Google ID token
// without verifying it.
func decodeGoogleCredential(credential string) (GoogleRequest, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(credential, claims); err != nil {
		return GoogleRequest{}, fmt.Errorf("decode google credential: %w", err)
	}
	req := GoogleRequest{
		GoogleID:      stringClaim(claims, "sub"),
		Name:          stringClaim(claims, "name"),
		Email:         stringClaim(claims, "email"),
		Picture:       stringClaim(claims, "picture"),
		EmailVerified: boolClaim(claims, "email_verified"),
	}
	if req.GoogleID == "" {
		return GoogleRequest{}, errors.New("google credential has no subject")
	}
	return req, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	v, _ := claims[key].(string)
	return v
}

func boolClaim(claims jwt.MapClaims, key string) bool {
	switch v := claims[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}
