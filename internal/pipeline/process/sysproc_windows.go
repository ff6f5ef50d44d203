//go:build windows

package process

import "os/exec"

// configureSysProcAttr is a no-op on Windows to keep builds portable.
func configureSysProcAttr(cmd *exec.Cmd) {}
