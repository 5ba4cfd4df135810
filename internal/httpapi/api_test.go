package httpapi_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/httpapi"
	"github.com/gatehouse/gatehouse/internal/invite"
	"github.com/gatehouse/gatehouse/internal/service"
	"github.com/gatehouse/gatehouse/internal/session"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/store/file"
	"github.com/gatehouse/gatehouse/pkg/authclient"
)

// newTestServer spins up the full router on an in-process listener with a
// flat-file store in a temp dir.
func newTestServer(t *testing.T, registration bool, invites *invite.List) (*httptest.Server, store.UserStore) {
	t.Helper()

	st, err := file.Open(filepath.Join(t.TempDir(), "users.yaml"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewRegistry(time.Hour)

	router := httpapi.NewRouter(
		authclient.DefaultCookieName,
		time.Hour,
		"test",
		st,
		logger,
	)
	router.AuthService = &service.AuthService{Store: st, Sessions: sessions}
	router.RegistrationService = &service.RegistrationService{
		Store:       st,
		Enabled:     registration,
		Invitations: invites,
	}
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, st
}

func TestForwardAuthFlow(t *testing.T) {
	srv, st := newTestServer(t, false, nil)
	ctx := t.Context()

	require.NoError(t, st.AddUser(ctx, "alice", "wonderland", nil))
	require.NoError(t, st.AddUser(ctx, "bob", "builder", []string{"admin"}))

	client := authclient.NewClient(srv.URL)

	// No session at all: the decision endpoint answers 401.
	resp, err := srv.Client().Get(srv.URL + "/auth")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Alice holds the implicit default privilege only.
	alice, err := client.Login(ctx, "alice", "wonderland")
	require.NoError(t, err)
	require.Equal(t, "alice", alice.User())

	require.NoError(t, alice.Check(ctx))
	err = alice.Check(ctx, "admin")
	require.True(t, authclient.IsForbidden(err), "got %v", err)

	// Bob holds admin but not default.
	bob, err := client.Login(ctx, "bob", "builder")
	require.NoError(t, err)

	require.NoError(t, bob.Check(ctx, "admin"))
	err = bob.Check(ctx)
	require.True(t, authclient.IsForbidden(err), "got %v", err)

	// Multi-privilege checks require all of them.
	err = bob.Check(ctx, "admin", "ops")
	require.True(t, authclient.IsForbidden(err), "got %v", err)
}

func TestTokenTransports(t *testing.T) {
	srv, st := newTestServer(t, false, nil)
	ctx := t.Context()

	require.NoError(t, st.AddUser(ctx, "alice", "pw", nil))

	client := authclient.NewClient(srv.URL)
	sess, err := client.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	// Token inside the proxied original URI, no cookie.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/auth", nil)
	require.NoError(t, err)
	req.Header.Set("X-Original-URI", "/app/page?"+authclient.DefaultCookieName+"="+sess.Token())

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The cookie takes precedence over the original URI parameter: a dead
	// cookie is not rescued by a live parameter.
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/auth", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: authclient.DefaultCookieName, Value: "bogus"})
	req.Header.Set("X-Original-URI", "/app?"+authclient.DefaultCookieName+"="+sess.Token())

	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRejections(t *testing.T) {
	srv, st := newTestServer(t, false, nil)
	ctx := t.Context()

	require.NoError(t, st.AddUser(ctx, "alice", "pw", nil))

	client := authclient.NewClient(srv.URL)

	// Wrong password answers 403, not 401, so the proxy can tell a failed
	// login from a missing session.
	_, err := client.Login(ctx, "alice", "wrong")
	require.True(t, authclient.IsForbidden(err), "got %v", err)

	_, err = client.Login(ctx, "nobody", "pw")
	require.True(t, authclient.IsForbidden(err), "got %v", err)

	// Missing fields are a 400.
	resp, err := srv.Client().PostForm(srv.URL+"/login", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionStatusProbe(t *testing.T) {
	srv, st := newTestServer(t, false, nil)
	ctx := t.Context()

	require.NoError(t, st.AddUser(ctx, "alice", "pw", nil))

	client := authclient.NewClient(srv.URL)

	// Probe without a session.
	resp, err := srv.Client().Get(srv.URL + "/login")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	sess, err := client.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	status, err := sess.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", status.Status)
	require.Equal(t, "alice", status.User)
}

func TestChangePasswordEndpoint(t *testing.T) {
	srv, st := newTestServer(t, false, nil)
	ctx := t.Context()

	require.NoError(t, st.AddUser(ctx, "alice", "oldpw", nil))

	client := authclient.NewClient(srv.URL)
	sess, err := client.Login(ctx, "alice", "oldpw")
	require.NoError(t, err)

	// Wrong current password.
	err = sess.ChangePassword(ctx, "wrong", "newpw")
	require.True(t, authclient.IsForbidden(err), "got %v", err)

	require.NoError(t, sess.ChangePassword(ctx, "oldpw", "newpw"))

	_, err = client.Login(ctx, "alice", "oldpw")
	require.True(t, authclient.IsForbidden(err), "got %v", err)
	_, err = client.Login(ctx, "alice", "newpw")
	require.NoError(t, err)
}

func TestLogoutEndpoint(t *testing.T) {
	srv, st := newTestServer(t, false, nil)
	ctx := t.Context()

	require.NoError(t, st.AddUser(ctx, "alice", "pw", nil))

	client := authclient.NewClient(srv.URL)
	sess, err := client.Login(ctx, "alice", "pw")
	require.NoError(t, err)
	require.NoError(t, sess.Check(ctx))

	require.NoError(t, sess.Logout(ctx))

	err = sess.Check(ctx)
	require.True(t, authclient.IsUnauthenticated(err), "got %v", err)

	// Logging out again still answers 200.
	require.NoError(t, sess.Logout(ctx))
}

func TestRegisterDisabledLooksAbsent(t *testing.T) {
	srv, _ := newTestServer(t, false, nil)

	client := authclient.NewClient(srv.URL)
	err := client.Register(t.Context(), "alice", "pw", "")

	apiErr, ok := err.(*authclient.APIError)
	require.True(t, ok, "got %v", err)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestRegisterEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, true, nil)
	ctx := t.Context()

	client := authclient.NewClient(srv.URL)

	require.NoError(t, client.Register(ctx, "alice", "pw", ""))

	// The fresh account can log in straight away.
	_, err := client.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	// Duplicate and invalid names map to 409 and 400.
	err = client.Register(ctx, "alice", "pw2", "")
	apiErr, ok := err.(*authclient.APIError)
	require.True(t, ok, "got %v", err)
	require.Equal(t, http.StatusConflict, apiErr.StatusCode)

	err = client.Register(ctx, "9lives", "pw", "")
	apiErr, ok = err.(*authclient.APIError)
	require.True(t, ok, "got %v", err)
	require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, false, nil)
	ctx := t.Context()

	client := authclient.NewClient(srv.URL)

	live, err := client.Livez(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)

	ready, err := client.Readyz(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Store)
}
