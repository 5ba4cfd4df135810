// Package store defines the polymorphic user store interface implemented
// by the flat-file and sqlite backends.
package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/gatehouse/gatehouse/internal/domain"
)

var (
	// ErrUserNotFound is returned when the named user does not exist.
	ErrUserNotFound = errors.New("store: user not found")
	// ErrUserExists is returned when adding a user whose name is taken.
	ErrUserExists = errors.New("store: user already exists")
	// ErrInvalidName is returned when a user name fails validation.
	ErrInvalidName = errors.New("store: invalid user name")
	// ErrUnavailable wraps backend I/O or connection failures.
	ErrUnavailable = errors.New("store: backend unavailable")
)

// UserStore is the uniform contract over user storage backends. User names
// and privilege tags are case-folded to lowercase on every read and write,
// so callers may pass mixed-case input. A user always holds at least the
// implicit "default" privilege.
type UserStore interface {
	// HasUser reports whether the named user exists.
	HasUser(ctx context.Context, name string) (bool, error)

	// AddUser creates a new user with a freshly salted password hash and
	// zeroed login history. Empty privileges default to ["default"].
	// Fails with ErrUserExists or ErrInvalidName.
	AddUser(ctx context.Context, name, password string, privileges []string) error

	// DeleteUser removes the named user. Fails with ErrUserNotFound.
	DeleteUser(ctx context.Context, name string) error

	// ListUsers returns user records. An exact name filter takes precedence
	// over the glob pattern filter ('*' matches any sequence); with both
	// empty, all users are returned sorted by name. An exact name filter
	// that misses fails with ErrUserNotFound.
	ListUsers(ctx context.Context, name, pattern string) ([]domain.User, error)

	// VerifyPassword checks a candidate password against the stored salted
	// hash. Fails with ErrUserNotFound.
	VerifyPassword(ctx context.Context, name, password string) (bool, error)

	// ChangePassword re-salts and re-hashes the user's password.
	// Fails with ErrUserNotFound.
	ChangePassword(ctx context.Context, name, newPassword string) error

	// UpdateLoginInfo records the last login IP and timestamp.
	// Fails with ErrUserNotFound.
	UpdateLoginInfo(ctx context.Context, name, ip string, at time.Time) error

	// Privileges returns the user's privilege set. Fails with ErrUserNotFound.
	Privileges(ctx context.Context, name string) ([]string, error)

	// SetPrivileges replaces the user's privilege set.
	SetPrivileges(ctx context.Context, name string, privileges []string) error

	// AddPrivileges grants privileges the user does not already hold.
	AddPrivileges(ctx context.Context, name string, privileges []string) error

	// RemovePrivileges revokes the given privileges where held.
	RemovePrivileges(ctx context.Context, name string, privileges []string) error

	// VerifyPrivileges reports whether the user holds every required
	// privilege. An empty requirement means ["default"]. Fails with
	// ErrUserNotFound.
	VerifyPrivileges(ctx context.Context, name string, required []string) (bool, error)

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases any underlying resources.
	Close() error
}

// namePattern accepts names starting with a letter followed by letters,
// digits, or underscores.
var namePattern = regexp.MustCompile(`^[a-zA-Z]\w*$`)

// NormalizeName case-folds a user name for storage and comparison.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateName checks a user name against the accepted pattern.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return ErrInvalidName
	}
	return nil
}

// NormalizePrivileges case-folds and deduplicates privilege tags,
// preserving first-seen order. Empty input yields the implicit default set.
func NormalizePrivileges(privileges []string) []string {
	out := make([]string, 0, len(privileges))
	seen := make(map[string]struct{}, len(privileges))
	for _, p := range privileges {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	if len(out) == 0 {
		return []string{domain.DefaultPrivilege}
	}
	return out
}

// CompileGlob converts a '*' wildcard pattern into a full-string regular
// expression. All other characters match literally.
func CompileGlob(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	return regexp.Compile("^" + strings.Join(quoted, ".*") + "$")
}
