//go:build unix

package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const lockFile = ".lock"

// exclusive runs fn while holding an advisory lock on the store directory, so
// that processes sharing the directory see each other's read-check-write
// sequences as atomic. Callers hold fp.mu as well.
func (fp *Persistence) exclusive(fn func() error) error {
	if err := os.MkdirAll(fp.root, 0750); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(fp.root, lockFile), os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open store lock: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := flock(f, unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to lock store: %w", err)
	}
	defer func() { _ = flock(f, unix.LOCK_UN) }()

	return fn()
}

func flock(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how)
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}
