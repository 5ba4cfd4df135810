package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gatehouse/gatehouse/internal/session"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/pkg/cryptox"
	"github.com/gatehouse/gatehouse/pkg/slogx"
)

var (
	// ErrUnauthorized covers bad credentials on login and a wrong old
	// password on change. It never distinguishes an unknown user from a
	// wrong password.
	ErrUnauthorized = errors.New("service: invalid credentials")

	// ErrUnauthenticated covers a missing, unknown, or expired session token.
	ErrUnauthenticated = errors.New("service: no valid session")

	// ErrForbidden means the session is valid but the user lacks a
	// required privilege.
	ErrForbidden = errors.New("service: insufficient privileges")
)

// AuthService composes the user store and the session registry into the
// login / authorize / change-password / logout decisions.
type AuthService struct {
	Store    store.UserStore
	Sessions *session.Registry
}

// dummy credential material used to equalize the work done for unknown
// users, so login timing does not reveal whether an account exists.
var (
	dummyOnce   sync.Once
	dummySalt   string
	dummyDigest string
)

func dummyCredential() (string, string) {
	dummyOnce.Do(func() {
		var err error
		dummySalt, dummyDigest, err = cryptox.HashPassword("not-a-real-password")
		if err != nil {
			// rand failure; verification against empty material still burns
			// a digest computation.
			dummySalt, dummyDigest = "", ""
		}
	})
	return dummySalt, dummyDigest
}

// Login validates credentials and issues a session token. On success the
// user's last-login bookkeeping is updated (best effort). Unknown users
// and wrong passwords both fail with ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, name, password, clientIP string) (string, error) {
	log := slogx.FromContext(ctx)
	name = store.NormalizeName(name)

	// 1. Verify the password. Unknown users burn a digest computation
	// against dummy material so both failure paths cost the same.
	ok, err := s.Store.VerifyPassword(ctx, name, password)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			salt, digest := dummyCredential()
			cryptox.VerifyPassword(password, salt, digest)
			log.Info("failed login attempt", slog.String("user", name), slog.String("ip", clientIP))
			return "", ErrUnauthorized
		}
		log.Error("password verification failed", slog.Any("error", err))
		return "", err
	}
	if !ok {
		log.Info("failed login attempt", slog.String("user", name), slog.String("ip", clientIP))
		return "", ErrUnauthorized
	}

	// 2. Record login bookkeeping. A bookkeeping failure does not fail
	// the login.
	if err := s.Store.UpdateLoginInfo(ctx, name, clientIP, time.Now()); err != nil {
		log.Warn("failed to record login info",
			slog.String("user", name),
			slog.Any("error", err),
		)
	}

	// 3. Issue the session token.
	token, err := s.Sessions.Issue(name)
	if err != nil {
		log.Error("failed to issue session token", slog.Any("error", err))
		return "", err
	}

	log.Info("user logged in", slog.String("user", name), slog.String("ip", clientIP))
	return token, nil
}

// Authorize checks that token names a live session whose user holds every
// required privilege. Empty requirements mean the implicit "default"
// privilege. Returns nil when allowed, ErrUnauthenticated for a dead
// token, ErrForbidden for a live session lacking privileges.
func (s *AuthService) Authorize(ctx context.Context, token string, required []string) error {
	log := slogx.FromContext(ctx)

	// 1. Resolve the session; expired entries are evicted by the lookup.
	sess, ok := s.Sessions.Lookup(token)
	if !ok {
		return ErrUnauthenticated
	}

	// 2. Check privilege membership against the store.
	allowed, err := s.Store.VerifyPrivileges(ctx, sess.User, required)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			// The account was deleted while the session was live. The
			// session no longer names a valid identity; drop it.
			s.Sessions.Revoke(token)
			log.Warn("session for deleted user revoked", slog.String("user", sess.User))
			return ErrUnauthenticated
		}
		log.Error("privilege check failed", slog.Any("error", err))
		return err
	}
	if !allowed {
		log.Info("privilege check denied",
			slog.String("user", sess.User),
			slog.Any("required", required),
		)
		return ErrForbidden
	}
	return nil
}

// ChangePassword requires a live session and the current password.
// A dead token fails ErrUnauthenticated; a wrong old password fails
// ErrUnauthorized and leaves the stored hash unchanged.
func (s *AuthService) ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error {
	log := slogx.FromContext(ctx)

	// 1. The caller must hold a live session.
	sess, ok := s.Sessions.Lookup(token)
	if !ok {
		return ErrUnauthenticated
	}

	// 2. Re-verify the current password before accepting the new one.
	verified, err := s.Store.VerifyPassword(ctx, sess.User, oldPassword)
	if err != nil {
		return err
	}
	if !verified {
		log.Info("password change rejected", slog.String("user", sess.User))
		return ErrUnauthorized
	}

	// 3. Store the re-salted hash.
	if err := s.Store.ChangePassword(ctx, sess.User, newPassword); err != nil {
		return err
	}

	log.Info("password changed", slog.String("user", sess.User))
	return nil
}

// Logout revokes the session for token. Always succeeds; revoking an
// already dead token is a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) {
	if sess, ok := s.Sessions.Lookup(token); ok {
		slogx.FromContext(ctx).Info("user logged out", slog.String("user", sess.User))
	}
	s.Sessions.Revoke(token)
}
