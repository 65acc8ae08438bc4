// Package service implements identity reconciliation: it resolves every
// login or registration attempt, password or federated, to exactly one
// credential store record, and is the only layer that touches plaintext
// passwords or issues tokens. Nothing above it ever sees a password hash;
// all user data leaves as model.SafeUser.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shuttletrack/api/internal/config"
	"github.com/shuttletrack/api/internal/model"
	"github.com/shuttletrack/api/internal/repository"
	"github.com/shuttletrack/api/internal/utils"
)

var (
	// ErrValidation wraps malformed input, including missing role-conditional
	// fields. The wrapped message is safe to show to clients.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials covers unknown email, password-less account and
	// wrong password alike, so a caller cannot probe which emails exist.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrAccountDeactivated is returned when the record exists and the
	// credentials check out but is_active is false.
	ErrAccountDeactivated = errors.New("account is deactivated")
	// ErrRegistrationRequired is returned on federated login when no record
	// matches the provider id or the email. Accounts are never created
	// implicitly from a federated assertion: the role-conditional fields
	// (bus number, mobile number) are unknown at that point.
	ErrRegistrationRequired = errors.New("registration required")
)

var (
	emailRx  = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)
	mobileRx = regexp.MustCompile(`^[0-9]{10}$`)
)

// UserStore is the slice of the repository the service needs. Satisfied by
// *repository.UserRepo; tests substitute an in-memory fake.
type UserStore interface {
	Create(ctx context.Context, u model.User) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (model.User, error)
	UpdateProfile(ctx context.Context, id uint64, upd repository.ProfileUpdate) error
	TouchLastLogin(ctx context.Context, id uint64, at time.Time) error
	SyncGoogle(ctx context.Context, id uint64, link repository.GoogleLink) error
	SetActive(ctx context.Context, id uint64, active bool) error
}

// EventSink receives auth domain events. Implementations must be
// fire-and-forget: a broker outage never fails a login.
type EventSink interface {
	UserRegistered(user model.SafeUser)
	UserLoggedIn(user model.SafeUser, method string)
}

// AuthService reconciles identities against the credential store.
type AuthService struct {
	users  UserStore
	events EventSink
	cfg    config.Config
	now    func() time.Time // injectable for tests
}

func NewAuthService(users UserStore, events EventSink, cfg config.Config) *AuthService {
	return &AuthService{users: users, events: events, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// RegisterInput is the payload for a password registration. Role defaults to
// driver when empty, matching the store default.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	Role            string
	BusNumber       string
	MobileNumber    string
	CurrentLocation string
}

// GoogleAssertion holds the claims asserted by the federated provider after
// the transport layer has verified the assertion. The service trusts these
// for account linking and profile refresh only.
type GoogleAssertion struct {
	GoogleID      string
	Name          string
	Email         string
	EmailVerified bool
	Picture       string
}

// AuthResult is what every successful authentication returns: a bearer
// token and the safe view of the record.
type AuthResult struct {
	Token utils.AccessToken
	User  model.SafeUser
}

// Register creates a credential store record, hashes the password (exactly
// once, here), and issues a token. Duplicate emails fail with
// repository.ErrEmailExists; the store's unique index decides races.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.BusNumber = strings.TrimSpace(in.BusNumber)
	in.MobileNumber = strings.TrimSpace(in.MobileNumber)
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = model.RoleDriver
	}

	if err := validateRegistration(in, role); err != nil {
		return AuthResult{}, err
	}

	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	location := in.CurrentLocation
	if location == "" {
		location = model.LocationCampus
	}

	now := s.now()
	u := model.User{
		Name:            in.Name,
		Email:           in.Email,
		PasswordHash:    &hash,
		Role:            role,
		CurrentLocation: location,
		IsActive:        true,
		LastLogin:       now,
	}
	if role == model.RoleDriver {
		bus, mobile := in.BusNumber, in.MobileNumber
		u.BusNumber, u.MobileNumber = &bus, &mobile
	}

	id, err := s.users.Create(ctx, u)
	if err != nil {
		return AuthResult{}, err
	}
	created, err := s.users.GetByID(ctx, id)
	if err != nil {
		return AuthResult{}, err
	}

	res, err := s.issue(created)
	if err != nil {
		return AuthResult{}, err
	}
	if s.events != nil {
		s.events.UserRegistered(res.User)
	}
	return res, nil
}

// AuthenticatePassword resolves an email/password pair. Unknown email, a
// record without password authentication, and a failed verification are
// deliberately indistinguishable.
func (s *AuthService) AuthenticatePassword(ctx context.Context, email, password string) (AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return AuthResult{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}
	if !u.HasPassword() || !utils.VerifyPassword(*u.PasswordHash, password) {
		return AuthResult{}, ErrInvalidCredentials
	}
	if !u.IsActive {
		return AuthResult{}, ErrAccountDeactivated
	}

	u.LastLogin = s.now()
	if err := s.users.TouchLastLogin(ctx, u.ID, u.LastLogin); err != nil {
		return AuthResult{}, err
	}

	res, err := s.issue(u)
	if err != nil {
		return AuthResult{}, err
	}
	if s.events != nil {
		s.events.UserLoggedIn(res.User, "password")
	}
	return res, nil
}

// AuthenticateGoogle resolves a federated assertion: by provider id first,
// then by email. An email match with no linked provider id links the
// accounts instead of creating a duplicate. No match at all means the caller
// must register first.
func (s *AuthService) AuthenticateGoogle(ctx context.Context, a GoogleAssertion) (AuthResult, error) {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if a.GoogleID == "" {
		return AuthResult{}, fmt.Errorf("%w: google id is required", ErrValidation)
	}

	u, err := s.users.GetByGoogleID(ctx, a.GoogleID)
	if errors.Is(err, repository.ErrNotFound) {
		if a.Email == "" {
			return AuthResult{}, ErrRegistrationRequired
		}
		u, err = s.users.GetByEmail(ctx, a.Email)
		if errors.Is(err, repository.ErrNotFound) {
			return AuthResult{}, ErrRegistrationRequired
		}
		if err == nil && u.GoogleID != nil && *u.GoogleID != a.GoogleID {
			// The email's record belongs to a different federated identity;
			// refusing beats silently re-linking.
			return AuthResult{}, ErrRegistrationRequired
		}
	}
	if err != nil {
		return AuthResult{}, err
	}
	if !u.IsActive {
		return AuthResult{}, ErrAccountDeactivated
	}

	link := repository.GoogleLink{GoogleID: a.GoogleID, EmailVerified: a.EmailVerified}
	if a.Picture != "" {
		link.ProfilePicture = &a.Picture
	}
	if err := s.users.SyncGoogle(ctx, u.ID, link); err != nil {
		return AuthResult{}, err
	}
	if err := s.users.TouchLastLogin(ctx, u.ID, s.now()); err != nil {
		return AuthResult{}, err
	}

	u, err = s.users.GetByID(ctx, u.ID)
	if err != nil {
		return AuthResult{}, err
	}
	res, err := s.issue(u)
	if err != nil {
		return AuthResult{}, err
	}
	if s.events != nil {
		s.events.UserLoggedIn(res.User, "google")
	}
	return res, nil
}

// SafeProfile returns the redacted record for an identity.
func (s *AuthService) SafeProfile(ctx context.Context, id uint64) (model.SafeUser, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.SafeUser{}, err
	}
	return u.Safe(), nil
}

// UpdateProfile applies a partial update and re-validates role-conditional
// constraints against the record that would result.
func (s *AuthService) UpdateProfile(ctx context.Context, id uint64, upd repository.ProfileUpdate) (model.SafeUser, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.SafeUser{}, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" || len(name) > 50 {
			return model.SafeUser{}, fmt.Errorf("%w: name must be 1-50 characters", ErrValidation)
		}
		upd.Name = &name
	}
	if upd.CurrentLocation != nil && !validLocation(*upd.CurrentLocation) {
		return model.SafeUser{}, fmt.Errorf("%w: unknown location %q", ErrValidation, *upd.CurrentLocation)
	}
	if u.Role == model.RoleDriver {
		bus := effective(upd.BusNumber, u.BusNumber)
		if bus == "" {
			return model.SafeUser{}, fmt.Errorf("%w: bus number is required for drivers", ErrValidation)
		}
		mobile := effective(upd.MobileNumber, u.MobileNumber)
		if !mobileRx.MatchString(mobile) {
			return model.SafeUser{}, fmt.Errorf("%w: mobile number must be 10 digits", ErrValidation)
		}
	}

	if err := s.users.UpdateProfile(ctx, id, upd); err != nil {
		return model.SafeUser{}, err
	}
	u, err = s.users.GetByID(ctx, id)
	if err != nil {
		return model.SafeUser{}, err
	}
	return u.Safe(), nil
}

// SetUserActive toggles the deactivation flag. Deactivation takes effect on
// the next authentication attempt; already-issued tokens run out naturally.
func (s *AuthService) SetUserActive(ctx context.Context, id uint64, active bool) (model.SafeUser, error) {
	if _, err := s.users.GetByID(ctx, id); err != nil {
		return model.SafeUser{}, err
	}
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return model.SafeUser{}, err
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return model.SafeUser{}, err
	}
	return u.Safe(), nil
}

func (s *AuthService) issue(u model.User) (AuthResult, error) {
	tok, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{Token: tok, User: u.Safe()}, nil
}

func validateRegistration(in RegisterInput, role string) error {
	switch {
	case in.Name == "" || len(in.Name) > 50:
		return fmt.Errorf("%w: name must be 1-50 characters", ErrValidation)
	case !emailRx.MatchString(in.Email):
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	case len(in.Password) < 6:
		return fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	switch role {
	case model.RoleDriver:
		if strings.TrimSpace(in.BusNumber) == "" {
			return fmt.Errorf("%w: bus number is required for drivers", ErrValidation)
		}
		if !mobileRx.MatchString(in.MobileNumber) {
			return fmt.Errorf("%w: mobile number must be 10 digits", ErrValidation)
		}
	case model.RoleStudent:
		// no extra fields
	default:
		// admin accounts are provisioned out of band, never self-registered
		return fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if in.CurrentLocation != "" && !validLocation(in.CurrentLocation) {
		return fmt.Errorf("%w: unknown location %q", ErrValidation, in.CurrentLocation)
	}
	return nil
}

func validLocation(loc string) bool {
	switch loc {
	case model.LocationCampus, model.LocationHostel, model.LocationOnTheWay:
		return true
	}
	return false
}

func effective(updated, current *string) string {
	if updated != nil {
		return strings.TrimSpace(*updated)
	}
	if current != nil {
		return *current
	}
	return ""
}
