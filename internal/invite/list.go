// Package invite manages the registration invitation code list: a plain
// text file with one single-use code per line.
package invite

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownCode is returned when consuming a code that is not on the list.
var ErrUnknownCode = errors.New("invite: unknown code")

// List is a set of invitation codes backed by a file. Blank lines and
// lines starting with '#' are ignored on load.
type List struct {
	mu      sync.Mutex
	path    string
	codes   map[string]struct{}
	dispose bool
}

// Load reads the code file at path. When dispose is true, a consumed code
// is removed from the set and the file is rewritten without it.
func Load(path string, dispose bool) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open invitation list: %w", err)
	}
	defer f.Close()

	codes := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		codes[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read invitation list: %w", err)
	}

	return &List{path: path, codes: codes, dispose: dispose}, nil
}

// Contains reports whether code is on the list.
func (l *List) Contains(code string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.codes[code]
	return ok
}

// Consume marks code as used. With dispose enabled the code is removed
// from the set and the file; otherwise codes are reusable and Consume only
// validates membership.
func (l *List) Consume(code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.codes[code]; !ok {
		return ErrUnknownCode
	}
	if !l.dispose {
		return nil
	}

	delete(l.codes, code)
	if err := l.save(); err != nil {
		// Restore so memory and file stay in sync.
		l.codes[code] = struct{}{}
		return fmt.Errorf("rewrite invitation list: %w", err)
	}
	return nil
}

// Len reports the number of unused codes.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.codes)
}

// save rewrites the code file atomically. Callers must hold the lock.
func (l *List) save() error {
	codes := make([]string, 0, len(l.codes))
	for code := range l.codes {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	data := strings.Join(codes, "\n")
	if data != "" {
		data += "\n"
	}

	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".invites-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
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
	return os.Rename(tmpName, l.path)
}
