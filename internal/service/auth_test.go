package service_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/service"
	"github.com/gatehouse/gatehouse/internal/session"
	"github.com/gatehouse/gatehouse/internal/store/file"
)

func newAuthService(t *testing.T) (*service.AuthService, *session.Registry) {
	t.Helper()
	st, err := file.Open(filepath.Join(t.TempDir(), "users.yaml"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	sessions := session.NewRegistry(time.Hour)
	return &service.AuthService{Store: st, Sessions: sessions}, sessions
}

func TestLoginIssuesWorkingToken(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := t.Context()

	require.NoError(t, svc.Store.AddUser(ctx, "alice", "wonderland", nil))

	token, err := svc.Login(ctx, "alice", "wonderland", "192.0.2.1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// The fresh token authorizes against the implicit default privilege.
	require.NoError(t, svc.Authorize(ctx, token, nil))

	// Login bookkeeping was recorded.
	users, err := svc.Store.ListUsers(ctx, "alice", "")
	require.NoError(t, err)
	require.Equal(t, "192.0.2.1", users[0].LastLoginIP)
	require.False(t, users[0].LastLoginAt.IsZero())
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := t.Context()

	require.NoError(t, svc.Store.AddUser(ctx, "alice", "wonderland", nil))

	// Wrong password and unknown user fail with the same error.
	_, err := svc.Login(ctx, "alice", "wrong", "192.0.2.1")
	require.ErrorIs(t, err, service.ErrUnauthorized)

	_, err = svc.Login(ctx, "nobody", "whatever", "192.0.2.1")
	require.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestLoginIsCaseInsensitive(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := t.Context()

	require.NoError(t, svc.Store.AddUser(ctx, "alice", "wonderland", nil))

	token, err := svc.Login(ctx, "ALICE", "wonderland", "192.0.2.1")
	require.NoError(t, err)
	require.NoError(t, svc.Authorize(ctx, token, nil))
}

func TestAuthorizeNeverIssuedToken(t *testing.T) {
	svc, _ := newAuthService(t)

	err := svc.Authorize(t.Context(), "never-issued", nil)
	require.ErrorIs(t, err, service.ErrUnauthenticated)

	err = svc.Authorize(t.Context(), "", nil)
	require.ErrorIs(t, err, service.ErrUnauthenticated)
}

func TestAuthorizePrivilegeChecks(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := t.Context()

	require.NoError(t, svc.Store.AddUser(ctx, "bob", "builder", []string{"admin"}))

	token, err := svc.Login(ctx, "bob", "builder", "192.0.2.1")
	require.NoError(t, err)

	// Bob holds admin but not the implicit default.
	require.NoError(t, svc.Authorize(ctx, token, []string{"admin"}))
	require.ErrorIs(t, svc.Authorize(ctx, token, nil), service.ErrForbidden)
	require.ErrorIs(t, svc.Authorize(ctx, token, []string{"admin", "ops"}), service.ErrForbidden)

	// Privilege tags are case-folded.
	require.NoError(t, svc.Authorize(ctx, token, []string{"ADMIN"}))
}

func TestAuthorizeExpiredToken(t *testing.T) {
	svc, sessions := newAuthService(t)
	ctx := t.Context()

	require.NoError(t, svc.Store.AddUser(ctx, "alice", "pw", nil))

	now := time.Now()
	sessions.SetClock(func() time.Time { return now })

	token, err := svc.Login(ctx, "alice", "pw", "192.0.2.1")
	require.NoError(t, err)
	require.NoError(t, svc.Authorize(ctx, token, nil))

	now = now.Add(2 * time.Hour)
	require.ErrorIs(t, svc.Authorize(ctx, token, nil), service.ErrUnauthenticated)
}

func TestAuthorizeAfterUserDeleted(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := t.Context()

	require.NoError(t, svc.Store.AddUser(ctx, "alice", "pw", nil))

	token, err := svc.Login(ctx, "alice", "pw", "192.0.2.1")
	require.NoError(t, err)

	require.NoError(t, svc.Store.DeleteUser(ctx, "alice"))

	// The orphaned session is treated as unauthenticated and dropped.
	require.ErrorIs(t, svc.Authorize(ctx, token, nil), service.ErrUnauthenticated)
	_, ok := svc.Sessions.Lookup(token)
	require.False(t, ok)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := t.Context()

	require.NoError(t, svc.Store.AddUser(ctx, "alice", "pw", nil))

	token, err := svc.Login(ctx, "alice", "pw", "192.0.2.1")
	require.NoError(t, err)

	svc.Logout(ctx, token)
	require.ErrorIs(t, svc.Authorize(ctx, token, nil), service.ErrUnauthenticated)

	// Logging out twice, or with garbage, is fine.
	svc.Logout(ctx, token)
	svc.Logout(ctx, "never-issued")
}

func TestChangePassword(t *testing.T) {
	svc, _ := newAuthService(t)
	ctx := t.Context()

	require.NoError(t, svc.Store.AddUser(ctx, "alice", "oldpw", nil))

	token, err := svc.Login(ctx, "alice", "oldpw", "192.0.2.1")
	require.NoError(t, err)

	// No session: unauthenticated.
	err = svc.ChangePassword(ctx, "never-issued", "oldpw", "newpw")
	require.ErrorIs(t, err, service.ErrUnauthenticated)

	// Wrong current password: unauthorized, stored hash untouched.
	err = svc.ChangePassword(ctx, token, "wrong", "newpw")
	require.ErrorIs(t, err, service.ErrUnauthorized)
	ok, err := svc.Store.VerifyPassword(ctx, "alice", "oldpw")
	require.NoError(t, err)
	require.True(t, ok)

	// Correct current password: the new one takes effect.
	require.NoError(t, svc.ChangePassword(ctx, token, "oldpw", "newpw"))

	_, err = svc.Login(ctx, "alice", "oldpw", "192.0.2.1")
	require.ErrorIs(t, err, service.ErrUnauthorized)

	_, err = svc.Login(ctx, "alice", "newpw", "192.0.2.1")
	require.NoError(t, err)
}
