//go:build darwin

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr puts the child in its own process group so
// killProcessTree can reach grandchildren.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
