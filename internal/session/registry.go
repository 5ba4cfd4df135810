// Package session holds the in-memory registry of live session tokens.
//
// Sessions are deliberately not persisted: a process restart logs everyone
// out. Expiry is lazy; an expired entry is evicted at the moment a lookup
// observes it, so no background sweeper runs.
package session

import (
	"sync"
	"time"

	"github.com/gatehouse/gatehouse/internal/domain"
	"github.com/gatehouse/gatehouse/pkg/cryptox"
)

// Registry maps opaque tokens to live sessions. Safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	lifetime time.Duration

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewRegistry creates a registry whose sessions live for the given
// duration after issue.
func NewRegistry(lifetime time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]domain.Session),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Issue creates a session for the user and returns its token: 256 bits of
// entropy, base64url-encoded. A token colliding with a live session is
// regenerated rather than overwriting it.
func (r *Registry) Issue(user string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		token, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return "", err
		}
		if _, taken := r.sessions[token]; taken {
			continue
		}
		r.sessions[token] = domain.Session{
			User:     user,
			Token:    token,
			IssuedAt: r.now(),
		}
		return token, nil
	}
}

// Lookup returns the live session for token. Unknown tokens report false;
// a session past its lifetime is evicted and reported false.
func (r *Registry) Lookup(token string) (domain.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[token]
	if !ok {
		return domain.Session{}, false
	}
	if r.now().Sub(sess.IssuedAt) >= r.lifetime {
		delete(r.sessions, token)
		return domain.Session{}, false
	}
	return sess, true
}

// Revoke removes the session for token. Revoking an unknown or already
// revoked token is a no-op.
func (r *Registry) Revoke(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, token)
}

// Len reports the number of stored sessions, including any that have
// expired but have not yet been observed by a lookup.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// SetClock replaces the registry's time source. Tests use this to simulate
// the passage of time.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.now = now
}
