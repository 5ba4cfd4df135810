package sqlite_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/internal/store/sqlite"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestAddAndVerifyUser(t *testing.T) {
	st := openStore(t)
	ctx := t.Context()

	require.NoError(t, st.AddUser(ctx, "alice", "wonderland", nil))

	exists, err := st.HasUser(ctx, "alice")
	require.NoError(t, err)
	require.True(t, exists)

	ok, err := st.VerifyPassword(ctx, "alice", "wonderland")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = st.VerifyPassword(ctx, "alice", "nope")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = st.VerifyPassword(ctx, "nobody", "pw")
	require.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestDuplicateUserHitsUniqueConstraint(t *testing.T) {
	st := openStore(t)
	ctx := t.Context()

	require.NoError(t, st.AddUser(ctx, "alice", "pw", nil))

	err := st.AddUser(ctx, "alice", "pw2", nil)
	require.ErrorIs(t, err, store.ErrUserExists)

	// Case folding makes mixed case the same row.
	err = st.AddUser(ctx, "ALICE", "pw3", nil)
	require.ErrorIs(t, err, store.ErrUserExists)
}

func TestAddUserInvalidName(t *testing.T) {
	st := openStore(t)

	require.ErrorIs(t, st.AddUser(t.Context(), "9lives", "pw", nil), store.ErrInvalidName)
}

func TestDeleteUser(t *testing.T) {
	st := openStore(t)
	ctx := t.Context()

	require.NoError(t, st.AddUser(ctx, "bob", "pw", nil))
	require.NoError(t, st.DeleteUser(ctx, "bob"))
	require.ErrorIs(t, st.DeleteUser(ctx, "bob"), store.ErrUserNotFound)
}

func TestChangePassword(t *testing.T) {
	st := openStore(t)
	ctx := t.Context()

	require.NoError(t, st.AddUser(ctx, "carol", "oldpw", nil))
	require.NoError(t, st.ChangePassword(ctx, "carol", "newpw"))

	ok, err := st.VerifyPassword(ctx, "carol", "oldpw")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = st.VerifyPassword(ctx, "carol", "newpw")
	require.NoError(t, err)
	require.True(t, ok)

	require.ErrorIs(t, st.ChangePassword(ctx, "nobody", "pw"), store.ErrUserNotFound)
}

func TestUpdateLoginInfo(t *testing.T) {
	st := openStore(t)
	ctx := t.Context()

	require.NoError(t, st.AddUser(ctx, "dave", "pw", nil))

	at := time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)
	require.NoError(t, st.UpdateLoginInfo(ctx, "dave", "192.0.2.7", at))

	users, err := st.ListUsers(ctx, "dave", "")
	require.NoError(t, err)
	require.Equal(t, "192.0.2.7", users[0].LastLoginIP)
	require.Equal(t, at.Unix(), users[0].LastLoginAt.Unix())
}

func TestPrivilegeOperations(t *testing.T) {
	st := openStore(t)
	ctx := t.Context()

	require.NoError(t, st.AddUser(ctx, "erin", "pw", []string{"Admin", "staff"}))

	privs, err := st.Privileges(ctx, "erin")
	require.NoError(t, err)
	require.Equal(t, []string{"admin", "staff"}, privs)

	require.NoError(t, st.AddPrivileges(ctx, "erin", []string{"ops", "admin"}))
	privs, err = st.Privileges(ctx, "erin")
	require.NoError(t, err)
	require.Equal(t, []string{"admin", "staff", "ops"}, privs)

	require.NoError(t, st.RemovePrivileges(ctx, "erin", []string{"staff"}))
	ok, err := st.VerifyPrivileges(ctx, "erin", []string{"staff"})
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = st.VerifyPrivileges(ctx, "erin", []string{"admin", "ops"})
	require.NoError(t, err)
	require.True(t, ok)

	// Removing every privilege falls back to the implicit default.
	require.NoError(t, st.SetPrivileges(ctx, "erin", nil))
	ok, err = st.VerifyPrivileges(ctx, "erin", nil)
	require.NoError(t, err)
	require.True(t, ok)

	require.ErrorIs(t, st.SetPrivileges(ctx, "nobody", []string{"x"}), store.ErrUserNotFound)
	require.ErrorIs(t, st.AddPrivileges(ctx, "nobody", []string{"x"}), store.ErrUserNotFound)
}

func TestListUsersPattern(t *testing.T) {
	st := openStore(t)
	ctx := t.Context()

	for _, name := range []string{"alice", "albert", "bob"} {
		require.NoError(t, st.AddUser(ctx, name, "pw", nil))
	}

	users, err := st.ListUsers(ctx, "", "al*")
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "albert", users[0].Name)
	require.Equal(t, "alice", users[1].Name)

	users, err = st.ListUsers(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, users, 3)

	_, err = st.ListUsers(ctx, "nobody", "")
	require.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestPing(t *testing.T) {
	st := openStore(t)
	require.NoError(t, st.Ping(t.Context()))
}
