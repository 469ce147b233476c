//go:build !linux

package sandbox

import "os/exec"

// startWithRlimit on non-Linux platforms starts the command without applying
// a memory rlimit; RLIMIT_AS enforcement is Linux-specific here, and these
// platforms fall back to the timeout-only guarantee (the Docker backend
// remains the portable option for a hard memory cap).
func startWithRlimit(cmd *exec.Cmd, _ int) error {
	return cmd.Start()
}
