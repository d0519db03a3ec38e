package executor

import (
	"os"

	"golang.org/x/sys/unix"

	givcerrors "github.com/tiiuae/ghaf-givc/internal/obs/errors"
)

// DefaultLockPath is the host-wide OTA mutual-exclusion lock file.
const DefaultLockPath = "/run/ota-update.lock"

// Lock is an exclusive advisory file lock held for the duration of a
// mutating plan run.
type Lock struct {
	file *os.File
	path string
}

// AcquireLock takes the exclusive advisory lock at path without waiting; a
// lock already held by another process is a FailedPrecondition.
func AcquireLock(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, givcerrors.Wrap(givcerrors.Internal, "open lock file "+path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, givcerrors.New(givcerrors.FailedPrecondition,
				"another ota-update instance is already running")
		}
		return nil, givcerrors.Wrap(givcerrors.Internal, "flock "+path, err)
	}
	return &Lock{file: f, path: path}, nil
}

// Release drops the lock and removes the lock file. Safe to call once on
// every exit path; errors on unlock are ignored since the process is going
// away anyway.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	_ = os.Remove(l.path)
	l.file = nil
}
