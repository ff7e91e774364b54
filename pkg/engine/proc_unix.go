//go:build unix

package engine

import (
	"os/exec"
	"syscall"
)

// isolateProcessGroup runs cmd in its own process group. Cancelling the
// run's context sends SIGTERM to the whole group so processes spawned by a
// handler do not outlive it.
func isolateProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = terminateGracePeriod
}
