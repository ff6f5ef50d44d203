package process

import (
	"context"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("runner tests shell out to /bin/sh")
	}
}

func TestRunSuccess(t *testing.T) {
	requireUnix(t)

	stdout, stderr, err := Run(context.Background(), Config{
		Command:         "/bin/sh",
		Args:            []string{"-c", "echo hello; echo oops >&2"},
		TimeoutSec:      10,
		MaxCaptureBytes: 12000,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", stdout)
	assert.Equal(t, "oops\n", stderr)
}

func TestRunExitError(t *testing.T) {
	requireUnix(t)

	_, _, err := Run(context.Background(), Config{
		Command:         "/bin/sh",
		Args:            []string{"-c", "echo partial; echo broken >&2; exit 3"},
		TimeoutSec:      10,
		MaxCaptureBytes: 12000,
	})
	require.Error(t, err)
	pe, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, OutcomeExitError, pe.Outcome)
	assert.Equal(t, 3, pe.ExitCode)
	assert.Equal(t, "partial\n", pe.Stdout)
	assert.Equal(t, "broken\n", pe.Stderr)
	assert.False(t, pe.Truncated)
}

func TestRunStartError(t *testing.T) {
	_, _, err := Run(context.Background(), Config{
		Command:         "/no/such/binary/anywhere",
		TimeoutSec:      10,
		MaxCaptureBytes: 12000,
	})
	require.Error(t, err)
	pe, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, OutcomeStartError, pe.Outcome)
}

func TestRunTimeout(t *testing.T) {
	requireUnix(t)

	start := time.Now()
	_, _, err := Run(context.Background(), Config{
		Command:         "/bin/sh",
		Args:            []string{"-c", "echo before; sleep 30"},
		TimeoutSec:      1,
		MaxCaptureBytes: 12000,
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	pe, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, OutcomeTimeout, pe.Outcome)
	assert.Equal(t, "before\n", pe.Stdout)
	assert.Less(t, elapsed, 10*time.Second, "timeout should not wait for the child's full sleep")
}

func TestRunCancel(t *testing.T) {
	requireUnix(t)

	cancelCh := make(chan struct{})
	go func() {
		time.Sleep(300 * time.Millisecond)
		close(cancelCh)
	}()

	start := time.Now()
	_, _, err := Run(context.Background(), Config{
		Command:         "/bin/sh",
		Args:            []string{"-c", "sleep 30"},
		TimeoutSec:      60,
		CancelCh:        cancelCh,
		MaxCaptureBytes: 12000,
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	pe, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, OutcomeCancelled, pe.Outcome)
	assert.Less(t, elapsed, 10*time.Second)
}

func TestRunAttachDetach(t *testing.T) {
	requireUnix(t)

	var attached, detached bool
	_, _, err := Run(context.Background(), Config{
		Command:         "/bin/sh",
		Args:            []string{"-c", "true"},
		TimeoutSec:      10,
		MaxCaptureBytes: 12000,
		OnAttach:        func(cmd *exec.Cmd) { attached = cmd != nil },
		OnDetach:        func() { detached = true },
	})
	require.NoError(t, err)
	assert.True(t, attached)
	assert.True(t, detached)
}

func TestRunTruncation(t *testing.T) {
	requireUnix(t)

	_, _, err := Run(context.Background(), Config{
		Command:         "/bin/sh",
		Args:            []string{"-c", "printf '%01000d' 7; exit 1"},
		TimeoutSec:      10,
		MaxCaptureBytes: 100,
	})
	require.Error(t, err)
	pe, ok := err.(*Error)
	require.True(t, ok)
	assert.Len(t, pe.Stdout, 100)
	assert.True(t, pe.Truncated)
}

// Verbose children must not deadlock the drain loop on a full pipe buffer.
func TestRunDrainsVerboseChild(t *testing.T) {
	requireUnix(t)

	stdout, _, err := Run(context.Background(), Config{
		Command:         "/bin/sh",
		Args:            []string{"-c", "i=0; while [ $i -lt 2000 ]; do echo 'a long line of output that fills the pipe buffer quickly enough'; i=$((i+1)); done"},
		TimeoutSec:      30,
		MaxCaptureBytes: 200000,
	})
	require.NoError(t, err)
	assert.Greater(t, len(stdout), 64*1024, "output must exceed a typical pipe buffer")
}
