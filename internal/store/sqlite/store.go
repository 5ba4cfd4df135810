// Package sqlite implements the user store on a SQLite database. All
// statements are parameterized; the UNIQUE constraint on username is the
// duplicate-account guard, so two racing registrations cannot both commit.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gatehouse/gatehouse/internal/domain"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/pkg/cryptox"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

var _ store.UserStore = (*Store)(nil)

// Open opens (or creates) the database behind dsn and enforces foreign keys.
// Callers should follow up with ApplyMigrations before first use.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent mutations.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) HasUser(ctx context.Context, name string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE username = ?`,
		store.NormalizeName(name),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: query user: %v", store.ErrUnavailable, err)
	}
	return true, nil
}

func (s *Store) AddUser(ctx context.Context, name, password string, privileges []string) error {
	name = store.NormalizeName(name)
	if err := store.ValidateName(name); err != nil {
		return err
	}

	salt, digest, err := cryptox.HashPassword(password)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO users (username, password, salt, lastlogin, ip, privileges)
VALUES (?, ?, ?, 0, '', ?)`,
		name,
		digest,
		salt,
		strings.Join(store.NormalizePrivileges(privileges), ","),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrUserExists
		}
		return fmt.Errorf("%w: insert user: %v", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM users WHERE username = ?`,
		store.NormalizeName(name),
	)
	if err != nil {
		return fmt.Errorf("%w: delete user: %v", store.ErrUnavailable, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context, name, pattern string) ([]domain.User, error) {
	if name != "" {
		u, err := s.queryUser(ctx, name)
		if err != nil {
			return nil, err
		}
		return []domain.User{u}, nil
	}

	var matcher func(string) bool
	if pattern != "" {
		re, err := store.CompileGlob(store.NormalizeName(pattern))
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
		}
		matcher = re.MatchString
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT username, password, salt, lastlogin, ip, privileges
FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", store.ErrUnavailable, err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		if matcher != nil && !matcher(u.Name) {
			continue
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list users: %v", store.ErrUnavailable, err)
	}
	return users, nil
}

func (s *Store) VerifyPassword(ctx context.Context, name, password string) (bool, error) {
	u, err := s.queryUser(ctx, name)
	if err != nil {
		return false, err
	}
	return cryptox.VerifyPassword(password, u.PasswordSalt, u.PasswordHash), nil
}

func (s *Store) ChangePassword(ctx context.Context, name, newPassword string) error {
	salt, digest, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password = ?, salt = ? WHERE username = ?`,
		digest, salt, store.NormalizeName(name),
	)
	if err != nil {
		return fmt.Errorf("%w: update password: %v", store.ErrUnavailable, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

func (s *Store) UpdateLoginInfo(ctx context.Context, name, ip string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET lastlogin = ?, ip = ? WHERE username = ?`,
		at.Unix(), ip, store.NormalizeName(name),
	)
	if err != nil {
		return fmt.Errorf("%w: update login info: %v", store.ErrUnavailable, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

func (s *Store) Privileges(ctx context.Context, name string) ([]string, error) {
	u, err := s.queryUser(ctx, name)
	if err != nil {
		return nil, err
	}
	return u.Privileges, nil
}

func (s *Store) SetPrivileges(ctx context.Context, name string, privileges []string) error {
	return s.writePrivileges(ctx, name, store.NormalizePrivileges(privileges))
}

func (s *Store) AddPrivileges(ctx context.Context, name string, privileges []string) error {
	return s.updatePrivileges(ctx, name, func(current []string) []string {
		return store.NormalizePrivileges(append(current, privileges...))
	})
}

func (s *Store) RemovePrivileges(ctx context.Context, name string, privileges []string) error {
	drop := make(map[string]struct{}, len(privileges))
	for _, p := range store.NormalizePrivileges(privileges) {
		drop[p] = struct{}{}
	}

	return s.updatePrivileges(ctx, name, func(current []string) []string {
		kept := make([]string, 0, len(current))
		for _, p := range current {
			if _, ok := drop[p]; !ok {
				kept = append(kept, p)
			}
		}
		return kept
	})
}

// updatePrivileges runs a read-modify-write of the privilege column inside
// a transaction so concurrent updates cannot interleave.
func (s *Store) updatePrivileges(ctx context.Context, name string, compute func([]string) []string) error {
	name = store.NormalizeName(name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", store.ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	var privs string
	err = tx.QueryRowContext(ctx,
		`SELECT privileges FROM users WHERE username = ?`, name,
	).Scan(&privs)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: query privileges: %v", store.ErrUnavailable, err)
	}

	next := compute(store.NormalizePrivileges(strings.Split(privs, ",")))
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET privileges = ? WHERE username = ?`,
		strings.Join(next, ","), name,
	); err != nil {
		return fmt.Errorf("%w: update privileges: %v", store.ErrUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit privileges: %v", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) VerifyPrivileges(ctx context.Context, name string, required []string) (bool, error) {
	u, err := s.queryUser(ctx, name)
	if err != nil {
		return false, err
	}
	for _, p := range store.NormalizePrivileges(required) {
		if !u.HasPrivilege(p) {
			return false, nil
		}
	}
	return true, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) queryUser(ctx context.Context, name string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT username, password, salt, lastlogin, ip, privileges
FROM users WHERE username = ?`,
		store.NormalizeName(name),
	)
	return scanUser(row)
}

func (s *Store) writePrivileges(ctx context.Context, name string, privileges []string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET privileges = ? WHERE username = ?`,
		strings.Join(privileges, ","), store.NormalizeName(name),
	)
	if err != nil {
		return fmt.Errorf("%w: update privileges: %v", store.ErrUnavailable, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

func scanUser(row interface{ Scan(dest ...any) error }) (domain.User, error) {
	var (
		u         domain.User
		lastLogin int64
		privs     string
	)
	if err := row.Scan(&u.Name, &u.PasswordHash, &u.PasswordSalt, &lastLogin, &u.LastLoginIP, &privs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, store.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("%w: scan user: %v", store.ErrUnavailable, err)
	}
	if lastLogin > 0 {
		u.LastLoginAt = time.Unix(lastLogin, 0).UTC()
	}
	u.Privileges = store.NormalizePrivileges(strings.Split(privs, ","))
	return u, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
