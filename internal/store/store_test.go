package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/store"
)

func TestValidateName(t *testing.T) {
	valid := []string{"alice", "Bob", "user_2", "a", "x9_"}
	for _, name := range valid {
		require.NoError(t, store.ValidateName(store.NormalizeName(name)), "name %q", name)
	}

	invalid := []string{"", "9lives", "_alice", "al ice", "al-ice", "al.ice", "al/ice"}
	for _, name := range invalid {
		err := store.ValidateName(store.NormalizeName(name))
		require.ErrorIs(t, err, store.ErrInvalidName, "name %q", name)
	}
}

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "alice", store.NormalizeName("Alice"))
	require.Equal(t, "alice", store.NormalizeName("  ALICE  "))
}

func TestNormalizePrivileges(t *testing.T) {
	// Empty input means the implicit default privilege.
	require.Equal(t, []string{"default"}, store.NormalizePrivileges(nil))
	require.Equal(t, []string{"default"}, store.NormalizePrivileges([]string{"", "  "}))

	// Lowercased, trimmed, deduplicated in first-seen order.
	got := store.NormalizePrivileges([]string{"Admin", "admin", " staff ", "admin"})
	require.Equal(t, []string{"admin", "staff"}, got)
}

func TestCompileGlob(t *testing.T) {
	re, err := store.CompileGlob("al*")
	require.NoError(t, err)
	require.True(t, re.MatchString("alice"))
	require.True(t, re.MatchString("al"))
	require.False(t, re.MatchString("bob"))
	require.False(t, re.MatchString("xalice"))

	// '*' alone matches everything.
	re, err = store.CompileGlob("*")
	require.NoError(t, err)
	require.True(t, re.MatchString("anything"))
	require.True(t, re.MatchString(""))

	// Regex metacharacters in the pattern are literals.
	re, err = store.CompileGlob("a.c")
	require.NoError(t, err)
	require.True(t, re.MatchString("a.c"))
	require.False(t, re.MatchString("abc"))

	// Without a wildcard the pattern is an exact match.
	re, err = store.CompileGlob("alice")
	require.NoError(t, err)
	require.True(t, re.MatchString("alice"))
	require.False(t, re.MatchString("alice2"))
}
