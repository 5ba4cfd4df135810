package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/session"
)

func TestIssueAndLookup(t *testing.T) {
	r := session.NewRegistry(time.Hour)

	token, err := r.Issue("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sess, ok := r.Lookup(token)
	require.True(t, ok)
	require.Equal(t, "alice", sess.User)
	require.Equal(t, token, sess.Token)
}

func TestLookupUnknownToken(t *testing.T) {
	r := session.NewRegistry(time.Hour)

	_, ok := r.Lookup("never-issued")
	require.False(t, ok)

	_, ok = r.Lookup("")
	require.False(t, ok)
}

func TestTokensAreUniquePerIssue(t *testing.T) {
	r := session.NewRegistry(time.Hour)

	seen := make(map[string]struct{})
	for range 64 {
		token, err := r.Issue("alice")
		require.NoError(t, err)
		_, dup := seen[token]
		require.False(t, dup)
		seen[token] = struct{}{}
	}
	require.Equal(t, 64, r.Len())
}

func TestExpiredSessionIsEvicted(t *testing.T) {
	r := session.NewRegistry(time.Hour)

	now := time.Now()
	r.SetClock(func() time.Time { return now })

	token, err := r.Issue("alice")
	require.NoError(t, err)

	// Just inside the lifetime.
	now = now.Add(time.Hour - time.Second)
	_, ok := r.Lookup(token)
	require.True(t, ok)

	// At the lifetime boundary the session is dead and evicted.
	now = now.Add(time.Second)
	_, ok = r.Lookup(token)
	require.False(t, ok)
	require.Equal(t, 0, r.Len())

	// Still dead on a second try.
	_, ok = r.Lookup(token)
	require.False(t, ok)
}

func TestRevokeIsIdempotent(t *testing.T) {
	r := session.NewRegistry(time.Hour)

	token, err := r.Issue("alice")
	require.NoError(t, err)

	r.Revoke(token)
	_, ok := r.Lookup(token)
	require.False(t, ok)

	// Second revoke is a no-op.
	r.Revoke(token)
	r.Revoke("never-issued")
}

func TestSessionsAreIndependent(t *testing.T) {
	r := session.NewRegistry(time.Hour)

	first, err := r.Issue("alice")
	require.NoError(t, err)
	second, err := r.Issue("alice")
	require.NoError(t, err)

	// Revoking one login leaves the other alone.
	r.Revoke(first)
	_, ok := r.Lookup(second)
	require.True(t, ok)
}
