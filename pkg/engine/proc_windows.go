//go:build windows

package engine

import (
	"os"
	"os/exec"
)

// isolateProcessGroup kills only the handler process on cancellation;
// Windows has no equivalent of a Unix process group kill.
func isolateProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Kill)
	}
	cmd.WaitDelay = terminateGracePeriod
}
