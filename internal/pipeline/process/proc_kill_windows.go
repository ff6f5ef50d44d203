//go:build windows

package process

import "os"

// killProcessTree attempts to kill the process. Windows lacks a simple
// process group SIGKILL equivalent; callers may need a more robust tree kill.
func killProcessTree(p *os.Process) error {
	return p.Kill()
}

// termProcessTree has no graceful-signal equivalent on Windows, so it kills
// directly; the runner's escalation timer becomes a no-op in practice.
func termProcessTree(p *os.Process) error {
	return p.Kill()
}
