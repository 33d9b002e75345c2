package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// withFileLock runs fn while holding an exclusive flock on path. The lock
// file is created on first use and left in place afterwards.
func withFileLock(path string, fn func() error) (err error) {
	name := filepath.Base(path)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	fd := int(f.Fd())
	if err := syscall.Flock(fd, syscall.LOCK_EX); err != nil {
		return fmt.Errorf("locking %s: %w", name, err)
	}
	defer func() {
		if uerr := syscall.Flock(fd, syscall.LOCK_UN); uerr != nil && err == nil {
			err = fmt.Errorf("unlocking %s: %w", name, uerr)
		}
	}()
	return fn()
}
