package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gatehouse/gatehouse/internal/invite"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/pkg/slogx"
)

var (
	// ErrRegistrationDisabled is returned when self-registration is off.
	ErrRegistrationDisabled = errors.New("service: registration disabled")

	// ErrInvalidInvitation is returned when the supplied invitation code
	// is not on the configured list.
	ErrInvalidInvitation = errors.New("service: invalid invitation code")
)

// RegistrationService creates accounts via self-registration, optionally
// gated behind single-use invitation codes.
type RegistrationService struct {
	Store   store.UserStore
	Enabled bool

	// Invitations is nil when registration does not require a code.
	Invitations *invite.List
}

// Register creates a new account. Fails with ErrRegistrationDisabled,
// ErrInvalidInvitation, store.ErrUserExists, or store.ErrInvalidName.
// On success a required invitation code is consumed from the list.
func (s *RegistrationService) Register(ctx context.Context, name, password, invitation string) error {
	log := slogx.FromContext(ctx)

	// 1. Registration must be enabled at all.
	if !s.Enabled {
		return ErrRegistrationDisabled
	}

	// 2. When codes are required, the supplied one must be on the list.
	if s.Invitations != nil && !s.Invitations.Contains(invitation) {
		log.Info("registration rejected: bad invitation code")
		return ErrInvalidInvitation
	}

	// 3. Create the account with the implicit default privilege.
	if err := s.Store.AddUser(ctx, name, password, nil); err != nil {
		return err
	}

	// 4. Burn the invitation code. A concurrent registration may have
	// consumed it first; the account exists either way, so only log it.
	if s.Invitations != nil {
		if err := s.Invitations.Consume(invitation); err != nil {
			log.Warn("failed to consume invitation code", slog.Any("error", err))
		}
	}

	log.Info("user registered", slog.String("user", store.NormalizeName(name)))
	return nil
}
