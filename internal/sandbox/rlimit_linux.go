//go:build linux

package sandbox

import (
	"os/exec"
	"sync"
	"syscall"
)

// rlimitMu serializes the brief window between setting RLIMIT_AS and
// starting the child: POSIX rlimits are inherited at fork(), so the limit
// only needs to be in effect for the parent at the instant os/exec forks,
// not for the lifetime of the child. Go's setrlimit is process-wide (shared
// across OS threads), so concurrent starts with differing memory caps must
// not race each other here.
var rlimitMu sync.Mutex

// startWithRlimit sets RLIMIT_AS (address space) to memoryMb megabytes for
// the duration of cmd.Start(), then restores the previous limit. The cap
// applies to the forked child at the moment of fork/exec and has no further
// effect on the parent process once restored.
func startWithRlimit(cmd *exec.Cmd, memoryMb int) error {
	if memoryMb <= 0 {
		return cmd.Start()
	}

	rlimitMu.Lock()
	defer rlimitMu.Unlock()

	var previous syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_AS, &previous); err != nil {
		return cmd.Start()
	}

	limitBytes := uint64(memoryMb) * 1024 * 1024
	desired := syscall.Rlimit{Cur: limitBytes, Max: previous.Max}
	if desired.Max != 0 && desired.Cur > desired.Max {
		desired.Cur = desired.Max
	}
	if err := syscall.Setrlimit(syscall.RLIMIT_AS, &desired); err != nil {
		return cmd.Start()
	}
	defer syscall.Setrlimit(syscall.RLIMIT_AS, &previous)

	return cmd.Start()
}
