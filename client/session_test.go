package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shuttletrack/api/internal/model"
	"github.com/shuttletrack/api/internal/utils"
)

const sessionTestSecret = "client-test-secret"

func freshToken(t *testing.T, ttlMin int) string {
	t.Helper()
	tok, err := utils.NewAccessToken(sessionTestSecret, 1, model.RoleDriver, ttlMin)
	require.NoError(t, err)
	return tok.Token
}

func sampleUser() model.SafeUser {
	return model.SafeUser{ID: 1, Name: "Asha", Email: "asha@example.com", Role: model.RoleDriver, IsActive: true}
}

// authServer fakes the API: /login answers with the given token/user,
// /me answers meStatus (200 returns the user).
func authServer(t *testing.T, token string, user model.SafeUser, meStatus int, meCalls *int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"token": token, "user": user},
		})
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if meCalls != nil {
			atomic.AddInt64(meCalls, 1)
		}
		if meStatus != http.StatusOK {
			w.WriteHeader(meStatus)
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "invalid token"})
			return
		}
		require.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    map[string]interface{}{"user": user},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestSession(t *testing.T, srv *httptest.Server) (*Session, *FileStore) {
	t.Helper()
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	return NewSession(NewAPI(srv.URL), store), store
}

func TestLoginPersistsTokenAndUserTogether(t *testing.T) {
	token := freshToken(t, 60)
	srv := authServer(t, token, sampleUser(), http.StatusOK, nil)
	sess, store := newTestSession(t, srv)

	user, err := sess.Login(context.Background(), "asha@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), user.ID)
	assert.True(t, sess.IsAuthenticated())

	snap, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, token, snap.Token)
	assert.Equal(t, user.ID, snap.User.ID)
}

func TestSessionRestoresFromStore(t *testing.T) {
	token := freshToken(t, 60)
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, store.Save(Snapshot{Token: token, User: sampleUser()}))

	sess := NewSession(NewAPI("http://unused"), store)
	assert.True(t, sess.IsAuthenticated())
	require.NotNil(t, sess.CurrentUser())
	assert.Equal(t, model.RoleDriver, sess.CurrentUser().Role)
}

func TestStartValidatesRestoredSession(t *testing.T) {
	token := freshToken(t, 60)
	srv := authServer(t, token, sampleUser(), http.StatusOK, nil)

	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, store.Save(Snapshot{Token: token, User: sampleUser()}))

	sess := NewSession(NewAPI(srv.URL), store)
	user, err := sess.Start(context.Background())
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, sess.IsAuthenticated())
}

func TestStartEndsStaleSessionWithoutNetwork(t *testing.T) {
	var meCalls int64
	expired := freshToken(t, -1)
	srv := authServer(t, expired, sampleUser(), http.StatusOK, &meCalls)

	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, store.Save(Snapshot{Token: expired, User: sampleUser()}))

	sess := NewSession(NewAPI(srv.URL), store)
	user, err := sess.Start(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.False(t, sess.IsAuthenticated())
	assert.Zero(t, atomic.LoadInt64(&meCalls))

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestStartOnLoggedOutSessionIsNoOp(t *testing.T) {
	sess := NewSession(NewAPI("http://unused"), NewFileStore(filepath.Join(t.TempDir(), "session.json")))

	user, err := sess.Start(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestLogoutIsIdempotent(t *testing.T) {
	token := freshToken(t, 60)
	srv := authServer(t, token, sampleUser(), http.StatusOK, nil)
	sess, store := newTestSession(t, srv)

	_, err := sess.Login(context.Background(), "asha@example.com", "secret123")
	require.NoError(t, err)

	sess.Logout()
	sess.Logout()

	assert.False(t, sess.IsAuthenticated())
	assert.Nil(t, sess.CurrentUser())
	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRefreshSkipsNetworkWhenTokenExpired(t *testing.T) {
	var meCalls int64
	expired := freshToken(t, -1)
	srv := authServer(t, expired, sampleUser(), http.StatusOK, &meCalls)

	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, store.Save(Snapshot{Token: expired, User: sampleUser()}))
	sess := NewSession(NewAPI(srv.URL), store)

	user, err := sess.RefreshUserData(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
	assert.False(t, sess.IsAuthenticated())
	assert.Zero(t, atomic.LoadInt64(&meCalls), "an expired token must not hit the network")

	_, err = store.Load()
	assert.ErrorIs(t, err, ErrNoSession, "expiry clears the stored pair")
}

func TestRefreshLogsOutWhenServerRejects(t *testing.T) {
	token := freshToken(t, 60)
	srv := authServer(t, token, sampleUser(), http.StatusUnauthorized, nil)

	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, store.Save(Snapshot{Token: token, User: sampleUser()}))
	sess := NewSession(NewAPI(srv.URL), store)

	user, err := sess.RefreshUserData(context.Background())
	assert.Error(t, err)
	assert.Nil(t, user)
	assert.False(t, sess.IsAuthenticated())
}

func TestRefreshUpdatesSnapshot(t *testing.T) {
	token := freshToken(t, 60)
	updated := sampleUser()
	updated.CurrentLocation = model.LocationOnTheWay
	srv := authServer(t, token, updated, http.StatusOK, nil)

	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	stale := sampleUser()
	stale.CurrentLocation = model.LocationCampus
	require.NoError(t, store.Save(Snapshot{Token: token, User: stale}))
	sess := NewSession(NewAPI(srv.URL), store)

	user, err := sess.RefreshUserData(context.Background())
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, model.LocationOnTheWay, user.CurrentLocation)

	snap, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, model.LocationOnTheWay, snap.User.CurrentLocation)
}

func TestFailedLoginLeavesExistingSessionIntact(t *testing.T) {
	token := freshToken(t, 60)
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, store.Save(Snapshot{Token: token, User: sampleUser()}))

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "invalid email or password"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sess := NewSession(NewAPI(srv.URL), store)
	_, err := sess.Login(context.Background(), "asha@example.com", "wrong")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.True(t, sess.IsAuthenticated(), "a failed attempt must not end the current session")
}

func TestGoogleLoginUnknownAccount(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/google", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "message": "registration required"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	sess, _ := newTestSession(t, srv)
	_, err := sess.LoginGoogle(context.Background(), GoogleRequest{GoogleID: "uid-1", Email: "new@example.com"})
	assert.ErrorIs(t, err, ErrRegistrationRequired)
	assert.False(t, sess.IsAuthenticated())
}

func TestGuardReflectsSessionState(t *testing.T) {
	token := freshToken(t, 60)
	srv := authServer(t, token, sampleUser(), http.StatusOK, nil)
	sess, _ := newTestSession(t, srv)

	state := sess.Guard()
	assert.True(t, state.Resolved)
	assert.False(t, state.Authenticated)

	_, err := sess.Login(context.Background(), "asha@example.com", "secret123")
	require.NoError(t, err)

	state = sess.Guard()
	assert.True(t, state.Authenticated)
	assert.Equal(t, model.RoleDriver, state.Role)
	assert.Equal(t, RouteDecision{Allow: true}, GuardRoute(state, model.RoleDriver))
}
