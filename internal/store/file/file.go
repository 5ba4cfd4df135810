// Package file implements the user store on a single YAML table file.
// The whole table is held in memory and serialized back on every mutation,
// which is fine for the single-writer, low-volume deployments this backend
// targets.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gatehouse/gatehouse/internal/domain"
	"github.com/gatehouse/gatehouse/internal/store"
	"github.com/gatehouse/gatehouse/pkg/cryptox"
	"gopkg.in/yaml.v3"
)

// record is the on-disk shape of one user entry, keyed by name.
type record struct {
	PasswordHash string    `yaml:"password_hash"`
	PasswordSalt string    `yaml:"password_salt"`
	LastLoginAt  time.Time `yaml:"last_login_timestamp"`
	LastLoginIP  string    `yaml:"last_login_ip"`
	Privileges   []string  `yaml:"privilege"`
}

type Store struct {
	mu    sync.RWMutex
	path  string
	users map[string]domain.User
}

var _ store.UserStore = (*Store)(nil)

// Open loads the user table at path into memory. A missing file is not an
// error; the table starts empty and the file is created on the first
// mutation.
func Open(path string) (*Store, error) {
	s := &Store{
		path:  path,
		users: make(map[string]domain.User),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("%w: read user table: %v", store.ErrUnavailable, err)
	}

	var table map[string]record
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse user table %s: %w", path, err)
	}

	for name, rec := range table {
		name = store.NormalizeName(name)
		s.users[name] = domain.User{
			Name:         name,
			PasswordHash: rec.PasswordHash,
			PasswordSalt: rec.PasswordSalt,
			LastLoginAt:  rec.LastLoginAt,
			LastLoginIP:  rec.LastLoginIP,
			Privileges:   store.NormalizePrivileges(rec.Privileges),
		}
	}

	return s, nil
}

func (s *Store) HasUser(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.users[store.NormalizeName(name)]
	return ok, nil
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[name]; ok {
		return store.ErrUserExists
	}

	s.users[name] = domain.User{
		Name:         name,
		PasswordHash: digest,
		PasswordSalt: salt,
		Privileges:   store.NormalizePrivileges(privileges),
	}
	return s.saveOrRollback(name, domain.User{}, false)
}

func (s *Store) DeleteUser(ctx context.Context, name string) error {
	name = store.NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.users[name]
	if !ok {
		return store.ErrUserNotFound
	}

	delete(s.users, name)
	return s.saveOrRollback(name, prev, true)
}

func (s *Store) ListUsers(ctx context.Context, name, pattern string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if name != "" {
		u, ok := s.users[store.NormalizeName(name)]
		if !ok {
			return nil, store.ErrUserNotFound
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

	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if matcher != nil && !matcher(u.Name) {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (s *Store) VerifyPassword(ctx context.Context, name, password string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[store.NormalizeName(name)]
	if !ok {
		return false, store.ErrUserNotFound
	}
	return cryptox.VerifyPassword(password, u.PasswordSalt, u.PasswordHash), nil
}

func (s *Store) ChangePassword(ctx context.Context, name, newPassword string) error {
	salt, digest, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.update(name, func(u *domain.User) {
		u.PasswordSalt = salt
		u.PasswordHash = digest
	})
}

func (s *Store) UpdateLoginInfo(ctx context.Context, name, ip string, at time.Time) error {
	return s.update(name, func(u *domain.User) {
		u.LastLoginIP = ip
		u.LastLoginAt = at
	})
}

func (s *Store) Privileges(ctx context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[store.NormalizeName(name)]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	out := make([]string, len(u.Privileges))
	copy(out, u.Privileges)
	return out, nil
}

func (s *Store) SetPrivileges(ctx context.Context, name string, privileges []string) error {
	return s.update(name, func(u *domain.User) {
		u.Privileges = store.NormalizePrivileges(privileges)
	})
}

func (s *Store) AddPrivileges(ctx context.Context, name string, privileges []string) error {
	return s.update(name, func(u *domain.User) {
		u.Privileges = store.NormalizePrivileges(append(u.Privileges, privileges...))
	})
}

func (s *Store) RemovePrivileges(ctx context.Context, name string, privileges []string) error {
	drop := make(map[string]struct{}, len(privileges))
	for _, p := range store.NormalizePrivileges(privileges) {
		drop[p] = struct{}{}
	}

	return s.update(name, func(u *domain.User) {
		kept := make([]string, 0, len(u.Privileges))
		for _, p := range u.Privileges {
			if _, ok := drop[p]; !ok {
				kept = append(kept, p)
			}
		}
		u.Privileges = kept
	})
}

func (s *Store) VerifyPrivileges(ctx context.Context, name string, required []string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[store.NormalizeName(name)]
	if !ok {
		return false, store.ErrUserNotFound
	}
	for _, p := range store.NormalizePrivileges(required) {
		if !u.HasPrivilege(p) {
			return false, nil
		}
	}
	return true, nil
}

func (s *Store) Ping(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

// update applies a mutation to the named user and persists the table.
// Callers must not hold the lock.
func (s *Store) update(name string, apply func(*domain.User)) error {
	name = store.NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.users[name]
	if !ok {
		return store.ErrUserNotFound
	}
	u := prev
	apply(&u)
	s.users[name] = u
	return s.saveOrRollback(name, prev, true)
}

// saveOrRollback serializes the table to disk. If the write fails, the
// in-memory entry for name is rolled back to its pre-mutation state so
// memory and disk do not diverge. Callers must hold the write lock.
func (s *Store) saveOrRollback(name string, prev domain.User, existed bool) error {
	err := s.save()
	if err == nil {
		return nil
	}

	if existed {
		s.users[name] = prev
	} else {
		delete(s.users, name)
	}
	return fmt.Errorf("%w: save user table: %v", store.ErrUnavailable, err)
}

// save writes the whole table atomically (temp file + rename).
// Callers must hold the lock.
func (s *Store) save() error {
	table := make(map[string]record, len(s.users))
	for name, u := range s.users {
		table[name] = record{
			PasswordHash: u.PasswordHash,
			PasswordSalt: u.PasswordSalt,
			LastLoginAt:  u.LastLoginAt,
			LastLoginIP:  u.LastLoginIP,
			Privileges:   u.Privileges,
		}
	}

	data, err := yaml.Marshal(table)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data, 0o600)
}

// writeFileAtomic writes data to a temp file in the target directory, syncs
// it, and renames it over path so readers never observe a partial table.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".usertable-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
