package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shuttletrack/api/internal/model"
)

// ErrRegistrationRequired is returned by Google when the assertion matched
// no existing account. Callers route the user to the registration flow.
var ErrRegistrationRequired = errors.New("client: registration required")

// APIError is any non-2xx response from the server, carrying the envelope's
// message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// API is a thin client over the auth endpoints. The zero HTTPClient gets a
// sane timeout.
type API struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewAPI(baseURL string) *API {
	return &API{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// RegisterRequest mirrors the register endpoint body.
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	Role            string `json:"role,omitempty"`
	BusNumber       string `json:"busNumber,omitempty"`
	MobileNumber    string `json:"mobileNumber,omitempty"`
	CurrentLocation string `json:"currentLocation,omitempty"`
}

// GoogleRequest carries the fields decoded from a Google ID token.
type GoogleRequest struct {
	GoogleID      string `json:"googleId"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Picture       string `json:"picture,omitempty"`
	EmailVerified bool   `json:"email_verified"`
}

// ProfileRequest is a partial profile update; nil fields stay untouched.
type ProfileRequest struct {
	Name            *string `json:"name,omitempty"`
	BusNumber       *string `json:"busNumber,omitempty"`
	MobileNumber    *string `json:"mobileNumber,omitempty"`
	CurrentLocation *string `json:"currentLocation,omitempty"`
	ProfilePicture  *string `json:"profilePicture,omitempty"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type authPayload struct {
	Token string         `json:"token"`
	User  model.SafeUser `json:"user"`
}

type userPayload struct {
	User model.SafeUser `json:"user"`
}

func (a *API) Register(ctx context.Context, req RegisterRequest) (Snapshot, error) {
	var out authPayload
	if err := a.do(ctx, http.MethodPost, "/api/auth/register", "", req, &out); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Token: out.Token, User: out.User}, nil
}

func (a *API) Login(ctx context.Context, email, password string) (Snapshot, error) {
	body := map[string]string{"email": email, "password": password}
	var out authPayload
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", "", body, &out); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Token: out.Token, User: out.User}, nil
}

func (a *API) Google(ctx context.Context, req GoogleRequest) (Snapshot, error) {
	var out authPayload
	err := a.do(ctx, http.MethodPost, "/api/auth/google", "", req, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return Snapshot{}, ErrRegistrationRequired
	}
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Token: out.Token, User: out.User}, nil
}

func (a *API) Me(ctx context.Context, token string) (model.SafeUser, error) {
	var out userPayload
	if err := a.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &out); err != nil {
		return model.SafeUser{}, err
	}
	return out.User, nil
}

func (a *API) UpdateProfile(ctx context.Context, token string, req ProfileRequest) (model.SafeUser, error) {
	var out userPayload
	if err := a.do(ctx, http.MethodPut, "/api/auth/profile", token, req, &out); err != nil {
		return model.SafeUser{}, err
	}
	return out.User, nil
}

func (a *API) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	httpClient := a.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: "malformed response"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
