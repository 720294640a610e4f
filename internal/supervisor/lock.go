package supervisor

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/iambrandonn/graphgate/internal/protocol"
)

// acquireLock takes a non-blocking exclusive flock on the lock file,
// serializing lifecycle operations across processes. Two concurrent
// start() calls racing on the socket-existence check would otherwise
// both decide to spawn.
func (s *Supervisor) acquireLock() (func(), error) {
	file, err := os.OpenFile(s.opts.LockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", s.opts.LockPath, err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if err == unix.EWOULDBLOCK {
			return nil, protocol.ErrLockBusy
		}
		return nil, fmt.Errorf("flock %s: %w", s.opts.LockPath, err)
	}

	return func() {
		unix.Flock(int(file.Fd()), unix.LOCK_UN)
		file.Close()
	}, nil
}
