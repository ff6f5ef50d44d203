//go:build linux

package process

import (
	"os"
	"syscall"
)

func signalProcessTree(p *os.Process, sig syscall.Signal) error {
	return syscall.Kill(-p.Pid, sig)
}

// killProcessTree sends SIGKILL to the entire process group on Linux.
func killProcessTree(p *os.Process) error {
	return signalProcessTree(p, syscall.SIGKILL)
}

// termProcessTree sends SIGTERM to the entire process group on Linux.
func termProcessTree(p *os.Process) error {
	return signalProcessTree(p, syscall.SIGTERM)
}
