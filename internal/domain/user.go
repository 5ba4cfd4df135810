package domain

import "time"

// User is a local account record. Name is the unique key, stored lowercase.
type User struct {
	Name         string
	PasswordHash string // hex-encoded argon2id digest
	PasswordSalt string // hex-encoded random salt
	LastLoginAt  time.Time
	LastLoginIP  string
	Privileges   []string // lowercase tags; never empty, defaults to ["default"]
}

// DefaultPrivilege is granted implicitly when no privileges are assigned or
// required.
const DefaultPrivilege = "default"

// HasPrivilege reports whether the user holds the given (already
// case-folded) privilege tag.
func (u User) HasPrivilege(privilege string) bool {
	for _, p := range u.Privileges {
		if p == privilege {
			return true
		}
	}
	return false
}
